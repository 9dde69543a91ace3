// Package notification sends customer-facing messages in response to domain
// events. Delivery failures are logged and never fail the publishing operation.
package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"plumbing_backend/internal/email"
	"plumbing_backend/internal/events"
	"plumbing_backend/internal/notification/sms"
	settingsservice "plumbing_backend/internal/settings/service"
	"plumbing_backend/platform/logger"
)

// SettingsReader loads the company name used in messages.
type SettingsReader interface {
	Load(ctx context.Context) (settingsservice.Settings, error)
}

// ContactLookup resolves a customer's email address by customer id.
type ContactLookup interface {
	EmailByCustomerID(ctx context.Context, customerID int64) (string, error)
}

// Module handles notification events.
type Module struct {
	email         email.Sender
	sms           sms.Sender
	contacts      ContactLookup
	settings      SettingsReader
	publicBaseURL string
	log           *logger.Logger
}

// New creates the notification module. contacts may be nil.
func New(emailSender email.Sender, smsSender sms.Sender, contacts ContactLookup, settings SettingsReader, publicBaseURL string, log *logger.Logger) *Module {
	return &Module{
		email:         emailSender,
		sms:           smsSender,
		contacts:      contacts,
		settings:      settings,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
	}
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.BookingConfirmed{}.EventName(), m)
	bus.Subscribe(events.ReferralCredited{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.BookingConfirmed:
		m.handleBookingConfirmed(ctx, e)
	case events.ReferralCredited:
		m.handleReferralCredited(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
	}
	return nil
}

func (m *Module) companyName(ctx context.Context) string {
	st, err := m.settings.Load(ctx)
	if err != nil {
		m.log.Warn("notification could not load settings", "error", err)
		return ""
	}
	return st.CompanyName
}

func (m *Module) handleBookingConfirmed(ctx context.Context, e events.BookingConfirmed) {
	if strings.TrimSpace(e.CustomerEmail) == "" || !m.email.Configured() {
		return
	}
	msg, err := email.RenderBookingConfirmation(email.BookingConfirmation{
		To:           e.CustomerEmail,
		CustomerName: e.CustomerName,
		Service:      e.RequestedService,
		JobNumber:    e.JobNumber,
		ArrivalStart: e.ArrivalStart,
		ArrivalEnd:   e.ArrivalEnd,
		CompanyName:  m.companyName(ctx),
	})
	if err != nil {
		m.log.Error("failed to render booking confirmation", "error", err, "jobId", e.JobID)
		return
	}
	if _, err := m.email.Send(ctx, msg); err != nil {
		m.log.ProviderError("email", "booking confirmation", err)
		return
	}
	m.log.Info("booking confirmation sent", "jobId", e.JobID)
}

func (m *Module) handleReferralCredited(ctx context.Context, e events.ReferralCredited) {
	company := m.companyName(ctx)
	m.sendCreditSMS(ctx, e, company)
	m.sendVoucherEmail(ctx, e, company)
}

func (m *Module) sendCreditSMS(ctx context.Context, e events.ReferralCredited, company string) {
	if e.ReferrerPhone == "" || !m.sms.Configured() {
		return
	}
	sid, err := m.sms.Send(ctx, e.ReferrerPhone, CreditMessage(e, company))
	if err != nil {
		m.log.ProviderError("twilio", "referral credit sms", err)
		return
	}
	m.log.Info("referral credit sms sent", "referralId", e.ReferralID, "sid", sid)
}

func (m *Module) sendVoucherEmail(ctx context.Context, e events.ReferralCredited, company string) {
	if e.VoucherCode == "" || e.ReferrerCustomerID == nil || m.contacts == nil || !m.email.Configured() {
		return
	}
	addr, err := m.contacts.EmailByCustomerID(ctx, *e.ReferrerCustomerID)
	if err != nil {
		m.log.Warn("failed to resolve referrer email", "error", err, "referralId", e.ReferralID)
		return
	}
	if addr == "" {
		return
	}

	msg, err := email.RenderVoucherIssued(email.VoucherIssued{
		To:           addr,
		CustomerName: e.ReferrerName,
		Code:         e.VoucherCode,
		AmountCents:  e.CreditAmountCents,
		MinimumCents: e.VoucherMinimumCents,
		ExpiresAt:    e.VoucherExpiresAt,
		RedeemURL:    m.publicBaseURL + "/api/vouchers/" + url.PathEscape(e.VoucherCode) + "/qr.png",
		CompanyName:  company,
	})
	if err != nil {
		m.log.Error("failed to render voucher email", "error", err, "referralId", e.ReferralID)
		return
	}
	if _, err := m.email.Send(ctx, msg); err != nil {
		m.log.ProviderError("email", "voucher issued", err)
		return
	}
	m.log.Info("voucher email sent", "referralId", e.ReferralID)
}

// CreditMessage is the SMS text telling a referrer about their reward.
func CreditMessage(e events.ReferralCredited, company string) string {
	if company == "" {
		company = "us"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for referring a friend to %s! ", company)
	fmt.Fprintf(&b, "You've earned a %s credit.", email.FormatUSD(e.CreditAmountCents))
	if e.VoucherCode != "" {
		fmt.Fprintf(&b, " Your voucher code is %s", e.VoucherCode)
		if e.VoucherMinimumCents > 0 {
			fmt.Fprintf(&b, " (jobs of %s or more", email.FormatUSD(e.VoucherMinimumCents))
			if !e.VoucherExpiresAt.IsZero() {
				fmt.Fprintf(&b, ", use by %s", e.VoucherExpiresAt.Format("Jan 2, 2006"))
			}
			b.WriteString(")")
		} else if !e.VoucherExpiresAt.IsZero() {
			fmt.Fprintf(&b, " (use by %s)", e.VoucherExpiresAt.Format("Jan 2, 2006"))
		}
		b.WriteString(".")
	}
	return b.String()
}
