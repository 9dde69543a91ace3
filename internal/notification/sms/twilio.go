// Package sms sends text messages through Twilio.
package sms

import (
	"context"
	"errors"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/phone"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned by NoopSender.Send.
var ErrNotConfigured = errors.New("sms provider is not configured")

// Sender delivers a text message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
	Configured() bool
}

// messageAPI is the part of the Twilio REST client used here.
type messageAPI interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioSender sends SMS from a single Twilio number.
type TwilioSender struct {
	api  messageAPI
	from string
}

// NewSender returns a TwilioSender when Twilio is configured, NoopSender otherwise.
func NewSender(cfg config.TwilioConfig) Sender {
	if !cfg.IsTwilioEnabled() {
		return NoopSender{}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.GetTwilioAccountSID(),
		Password: cfg.GetTwilioAuthToken(),
	})
	return &TwilioSender{api: client.Api, from: phone.NormalizeE164(cfg.GetTwilioFromNumber())}
}

func (s *TwilioSender) Configured() bool { return true }

// Send formats to as E.164 and creates the message. The Twilio client has no
// context support; ctx is only checked before the call.
func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(phone.NormalizeE164(to))
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// NoopSender drops every message.
type NoopSender struct{}

func (NoopSender) Send(context.Context, string, string) (string, error) { return "", ErrNotConfigured }

func (NoopSender) Configured() bool { return false }
