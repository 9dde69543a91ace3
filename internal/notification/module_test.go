package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"plumbing_backend/internal/email"
	"plumbing_backend/internal/events"
	settingsservice "plumbing_backend/internal/settings/service"
	"plumbing_backend/platform/logger"

	"github.com/google/uuid"
)

type testEmailSender struct {
	configured bool
	err        error
	sent       []email.Message
}

func (s *testEmailSender) Send(_ context.Context, msg email.Message) (email.SendResult, error) {
	s.sent = append(s.sent, msg)
	return email.SendResult{ProviderMessageID: "em_1"}, s.err
}

func (s *testEmailSender) Configured() bool { return s.configured }

type testSMSSender struct {
	configured bool
	to, body   []string
}

func (s *testSMSSender) Send(_ context.Context, to, body string) (string, error) {
	s.to = append(s.to, to)
	s.body = append(s.body, body)
	return "SM1", nil
}

func (s *testSMSSender) Configured() bool { return s.configured }

type testContacts map[int64]string

func (c testContacts) EmailByCustomerID(_ context.Context, id int64) (string, error) {
	return c[id], nil
}

type testSettings struct{}

func (testSettings) Load(context.Context) (settingsservice.Settings, error) {
	return settingsservice.Settings{CompanyName: "Acme Plumbing"}, nil
}

const testReferrerID int64 = 77

func creditedEvent() events.ReferralCredited {
	id := testReferrerID
	return events.ReferralCredited{
		BaseEvent:           events.NewBaseEvent(),
		ReferralID:          uuid.New(),
		ReferrerCustomerID:  &id,
		ReferrerName:        "Jordan Lee",
		ReferrerPhone:       "5125550100",
		CreditAmountCents:   5000,
		VoucherCode:         "REF-ABC123",
		VoucherMinimumCents: 15000,
		VoucherExpiresAt:    time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestReferralCreditedSendsSMSAndVoucherEmail(t *testing.T) {
	mail := &testEmailSender{configured: true}
	text := &testSMSSender{configured: true}
	m := New(mail, text, testContacts{testReferrerID: "jordan@example.com"}, testSettings{}, "https://acme.example/", logger.Nop())

	if err := m.Handle(context.Background(), creditedEvent()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(text.to) != 1 || text.to[0] != "5125550100" {
		t.Fatalf("expected one sms to the referrer, got %v", text.to)
	}
	if !strings.Contains(text.body[0], "REF-ABC123") || !strings.Contains(text.body[0], "$50.00") {
		t.Fatalf("unexpected sms body %q", text.body[0])
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "jordan@example.com" {
		t.Fatalf("expected voucher email, got %+v", mail.sent)
	}
	if !strings.Contains(mail.sent[0].HTML, "https://acme.example/api/vouchers/REF-ABC123/qr.png") {
		t.Fatalf("voucher email should link to the QR code")
	}
}

func TestReferralCreditedWithoutProvidersIsQuiet(t *testing.T) {
	mail := &testEmailSender{}
	text := &testSMSSender{}
	m := New(mail, text, nil, testSettings{}, "", logger.Nop())

	if err := m.Handle(context.Background(), creditedEvent()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mail.sent) != 0 || len(text.to) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestBookingConfirmedSendsEmail(t *testing.T) {
	mail := &testEmailSender{configured: true}
	m := New(mail, &testSMSSender{}, nil, testSettings{}, "", logger.Nop())
	start := time.Date(2026, time.October, 20, 14, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	err := m.Handle(context.Background(), events.BookingConfirmed{
		BaseEvent:        events.NewBaseEvent(),
		JobID:            9001,
		JobNumber:        "9001",
		CustomerName:     "Pat Smith",
		CustomerEmail:    "pat@example.com",
		RequestedService: "Drain Cleaning",
		ArrivalStart:     &start,
		ArrivalEnd:       &end,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].Subject != "Your Drain Cleaning appointment is confirmed" {
		t.Fatalf("unexpected messages %+v", mail.sent)
	}
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	mail := &testEmailSender{configured: true, err: errors.New("provider down")}
	m := New(mail, &testSMSSender{}, nil, testSettings{}, "", logger.Nop())

	err := m.Handle(context.Background(), events.BookingConfirmed{CustomerEmail: "pat@example.com", RequestedService: "Leak Repair"})
	if err != nil {
		t.Fatalf("delivery failures must not propagate, got %v", err)
	}
}

func TestCreditMessageWithoutVoucher(t *testing.T) {
	got := CreditMessage(events.ReferralCredited{CreditAmountCents: 2500}, "")
	if got != "Thanks for referring a friend to us! You've earned a $25.00 credit." {
		t.Fatalf("unexpected message %q", got)
	}
}
