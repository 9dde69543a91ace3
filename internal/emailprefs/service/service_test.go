package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"plumbing_backend/internal/emailprefs/repository"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testConfig struct{}

func (testConfig) GetUnsubscribeSecret() string { return "unsub-secret" }
func (testConfig) GetPublicBaseURL() string     { return "https://plumbing.example.com/" }

type memoryStore struct {
	suppressed   map[string]string
	unsubscribed map[string]string
	logged       []repository.SendLogEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{suppressed: map[string]string{}, unsubscribed: map[string]string{}}
}

func (m *memoryStore) IsSuppressed(_ context.Context, email string) (bool, string, error) {
	reason, ok := m.suppressed[email]
	return ok, reason, nil
}
func (m *memoryStore) Suppress(_ context.Context, email, reason string) error {
	if _, ok := m.suppressed[email]; !ok {
		m.suppressed[email] = reason
	}
	return nil
}
func (m *memoryStore) IsUnsubscribed(_ context.Context, email string) (bool, error) {
	_, ok := m.unsubscribed[email]
	return ok, nil
}
func (m *memoryStore) Unsubscribe(_ context.Context, email, source string) error {
	m.unsubscribed[email] = source
	return nil
}
func (m *memoryStore) LogSend(_ context.Context, e repository.SendLogEntry) error {
	m.logged = append(m.logged, e)
	return nil
}
func (m *memoryStore) MarkOpened(context.Context, string, time.Time) (*uuid.UUID, error) {
	return nil, nil
}
func (m *memoryStore) RecipientForMessage(_ context.Context, id string) (string, error) {
	if id == "msg_1" {
		return "ann@example.com", nil
	}
	return "", nil
}

func TestUnsubscribeURLRoundTrip(t *testing.T) {
	store := newMemoryStore()
	svc := New(store, testConfig{}, logger.Nop())

	link, err := svc.UnsubscribeURL(" Ann@Example.com ")
	if err != nil {
		t.Fatalf("UnsubscribeURL returned error: %v", err)
	}
	if !strings.HasPrefix(link, "https://plumbing.example.com/api/email/unsubscribe?token=") {
		t.Fatalf("unexpected link %q", link)
	}

	token, _ := svc.Token("Ann@Example.com")
	email, err := svc.Unsubscribe(context.Background(), token, "one-click")
	if err != nil {
		t.Fatalf("Unsubscribe returned error: %v", err)
	}
	if email != "ann@example.com" || store.unsubscribed["ann@example.com"] != "one-click" {
		t.Fatalf("opt-out not recorded: %v", store.unsubscribed)
	}

	opted, _ := svc.IsOptedOut(context.Background(), "ANN@example.com")
	if !opted {
		t.Fatalf("expected opted out")
	}
}

func TestParseTokenRejectsOtherTokenTypes(t *testing.T) {
	svc := New(newMemoryStore(), testConfig{}, logger.Nop())

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a@example.com", "type": "access"})
	raw, _ := access.SignedString([]byte("unsub-secret"))
	if _, err := svc.ParseToken(raw); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request for access token, got %v", err)
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a@example.com", "type": "unsubscribe"})
	raw, _ = forged.SignedString([]byte("other"))
	if _, err := svc.ParseToken(raw); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestSuppressMessageRecipient(t *testing.T) {
	store := newMemoryStore()
	svc := New(store, testConfig{}, logger.Nop())

	if err := svc.SuppressMessageRecipient(context.Background(), "msg_1", "bounced"); err != nil {
		t.Fatalf("SuppressMessageRecipient returned error: %v", err)
	}
	if err := svc.SuppressMessageRecipient(context.Background(), "unknown", "bounced"); err != nil {
		t.Fatalf("unknown message must be a no-op: %v", err)
	}
	if store.suppressed["ann@example.com"] != "bounced" || len(store.suppressed) != 1 {
		t.Fatalf("unexpected suppression list %v", store.suppressed)
	}
}

func TestLogSendNormalizesRecipient(t *testing.T) {
	store := newMemoryStore()
	New(store, testConfig{}, logger.Nop()).LogSend(context.Background(), repository.SendLogEntry{Recipient: " A@B.com", Status: repository.SendStatusSent})
	if len(store.logged) != 1 || store.logged[0].Recipient != "a@b.com" {
		t.Fatalf("unexpected log %+v", store.logged)
	}
}
