package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type sentEmail struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Text    string            `json:"text"`
	Headers map[string]string `json:"headers"`
	Tags    []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"tags"`
}

func pointResendAt(t *testing.T, s *ResendSender, srv *httptest.Server) {
	t.Helper()
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	s.client.BaseURL = base
}

func TestResendSenderPostsHeadersAndReturnsID(t *testing.T) {
	var got sentEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	s := NewResendSender("key", "Plumbing Co", "hello@example.com")
	pointResendAt(t, s, srv)

	res, err := s.Send(context.Background(), Message{
		To:      "ann@example.com",
		Subject: "Hi",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
		Headers: map[string]string{"List-Unsubscribe": "<https://x/u>"},
		Tags:    map[string]string{"stage": "2", "campaign": "nurture"},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if res.ProviderMessageID != "msg_123" {
		t.Fatalf("unexpected id %q", res.ProviderMessageID)
	}
	if got.From != "Plumbing Co <hello@example.com>" || got.Headers["List-Unsubscribe"] == "" || got.Text != "Hi" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0].Name != "campaign" || got.Tags[1].Value != "2" {
		t.Fatalf("expected sorted tags, got %+v", got.Tags)
	}
}

func TestResendSenderReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad from", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewResendSender("key", "", "hello@example.com")
	pointResendAt(t, s, srv)
	if _, err := s.Send(context.Background(), Message{To: "a@example.com"}); err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("expected 422 error, got %v", err)
	}
}

func TestNoopSender(t *testing.T) {
	var s Sender = NoopSender{}
	if s.Configured() {
		t.Fatalf("noop sender must not report configured")
	}
	if _, err := s.Send(context.Background(), Message{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRenderBookingConfirmation(t *testing.T) {
	start := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	msg, err := RenderBookingConfirmation(BookingConfirmation{
		To: "ann@example.com", CustomerName: "Ann", Service: "Drain Cleaning", JobNumber: "J-100",
		ArrivalStart: &start, ArrivalEnd: &end, CompanyName: "Plumbing Co",
	})
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}
	if !strings.Contains(msg.HTML, "J-100") || !strings.Contains(msg.Text, "8:00 AM - 12:00 PM") {
		t.Fatalf("unexpected rendering: %q", msg.Text)
	}
}

func TestFormatUSD(t *testing.T) {
	cases := map[int64]string{2500: "$25.00", 5: "$0.05", -150: "-$1.50"}
	for in, want := range cases {
		if got := FormatUSD(in); got != want {
			t.Fatalf("FormatUSD(%d) = %q, want %q", in, got, want)
		}
	}
}
