package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"plumbing_backend/internal/emailprefs/repository"
	"plumbing_backend/internal/emailprefs/service"
	"plumbing_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testConfig struct{}

func (testConfig) GetUnsubscribeSecret() string { return "unsub-secret" }
func (testConfig) GetPublicBaseURL() string     { return "https://plumbing.example.com" }

type optOutStore struct {
	unsubscribed map[string]string
}

func (s *optOutStore) IsSuppressed(context.Context, string) (bool, string, error) {
	return false, "", nil
}
func (s *optOutStore) Suppress(context.Context, string, string) error { return nil }
func (s *optOutStore) IsUnsubscribed(_ context.Context, email string) (bool, error) {
	_, ok := s.unsubscribed[email]
	return ok, nil
}
func (s *optOutStore) Unsubscribe(_ context.Context, email, source string) error {
	s.unsubscribed[email] = source
	return nil
}
func (s *optOutStore) LogSend(context.Context, repository.SendLogEntry) error { return nil }
func (s *optOutStore) MarkOpened(context.Context, string, time.Time) (*uuid.UUID, error) {
	return nil, nil
}
func (s *optOutStore) RecipientForMessage(context.Context, string) (string, error) { return "", nil }

func setup(t *testing.T) (*gin.Engine, *optOutStore, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := &optOutStore{unsubscribed: map[string]string{}}
	svc := service.New(store, testConfig{}, logger.Nop())
	token, err := svc.Token("ann@example.com")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	router := gin.New()
	New(svc).RegisterRoutes(router.Group("/api/email"))
	return router, store, token
}

func TestUnsubscribeLinkOnlyRendersConfirmation(t *testing.T) {
	router, store, token := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/api/email/unsubscribe?token="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<form method="post">`) || !strings.Contains(body, "ann@example.com") {
		t.Fatalf("expected confirmation form, got %s", body)
	}
	if len(store.unsubscribed) != 0 {
		t.Fatalf("GET must not record an opt-out, got %v", store.unsubscribed)
	}
}

func TestUnsubscribeLinkRejectsBadToken(t *testing.T) {
	router, _, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/api/email/unsubscribe?token=nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConfirmationFormRecordsOptOut(t *testing.T) {
	router, store, token := setup(t)

	form := url.Values{"token": {token}, "source": {"page"}}
	req := httptest.NewRequest(http.MethodPost, "/api/email/unsubscribe", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "unsubscribed") {
		t.Fatalf("expected confirmation page, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.unsubscribed["ann@example.com"] != "link" {
		t.Fatalf("expected link opt-out, got %v", store.unsubscribed)
	}
}

func TestOneClickPostRecordsOptOut(t *testing.T) {
	router, store, token := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/email/unsubscribe?token="+url.QueryEscape(token),
		strings.NewReader("List-Unsubscribe=One-Click"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"unsubscribed":true`) {
		t.Fatalf("expected json ack, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.unsubscribed["ann@example.com"] != "one-click" {
		t.Fatalf("expected one-click opt-out, got %v", store.unsubscribed)
	}
}
