// Package email delivers transactional and drip mail through Resend or SMTP.
package email

import (
	"context"
	"errors"

	"plumbing_backend/platform/config"
)

// ErrNotConfigured is returned by NoopSender.Send.
var ErrNotConfigured = errors.New("email provider is not configured")

// Message is a fully rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Headers map[string]string
	Tags    map[string]string
}

// SendResult carries the provider's id for the accepted message.
type SendResult struct {
	ProviderMessageID string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
	// Configured reports whether a real provider sits behind the sender.
	Configured() bool
}

// NoopSender drops every message. It is used when email is disabled.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) (SendResult, error) {
	return SendResult{}, ErrNotConfigured
}

func (NoopSender) Configured() bool { return false }

// NewSender picks Resend when an API key is set, SMTP when a host is set and
// NoopSender otherwise.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetResendAPIKey() != "" {
		return NewResendSender(cfg.GetResendAPIKey(), cfg.GetEmailFromName(), cfg.GetEmailFromAddress()), nil
	}
	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName()), nil
	}
	return nil, errors.New("EMAIL_ENABLED is set but neither RESEND_API_KEY nor SMTP_HOST is configured")
}
