package email

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers through the Resend API.
type ResendSender struct {
	fromName  string
	fromEmail string
	client    *resend.Client
}

// NewResendSender creates a Resend-backed sender.
func NewResendSender(apiKey, fromName, fromEmail string) *ResendSender {
	return &ResendSender{
		fromName:  fromName,
		fromEmail: fromEmail,
		client:    resend.NewCustomClient(&http.Client{Timeout: 10 * time.Second}, apiKey),
	}
}

func (r *ResendSender) Configured() bool { return r.client.ApiKey != "" }

// Send posts the message to Resend and returns its message id.
func (r *ResendSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	req := &resend.SendEmailRequest{
		From:    formatFrom(r.fromName, r.fromEmail),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: msg.Headers,
	}
	names := make([]string, 0, len(msg.Tags))
	for name := range msg.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req.Tags = append(req.Tags, resend.Tag{Name: name, Value: msg.Tags[name]})
	}

	sent, err := r.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}
	return SendResult{ProviderMessageID: sent.Id}, nil
}

func formatFrom(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
