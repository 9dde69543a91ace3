package sms

import (
	"context"
	"testing"

	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type recordingAPI struct {
	params *twilioapi.CreateMessageParams
}

func (r *recordingAPI) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	r.params = params
	sid := "SM123"
	return &twilioapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSenderFormatsNumbers(t *testing.T) {
	api := &recordingAPI{}
	s := &TwilioSender{api: api, from: "+15125550100"}

	sid, err := s.Send(context.Background(), "(212) 736-5000", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sid != "SM123" {
		t.Fatalf("unexpected sid %q", sid)
	}
	if *api.params.To != "+12127365000" || *api.params.From != "+15125550100" || *api.params.Body != "hello" {
		t.Fatalf("unexpected params to=%s from=%s body=%s", *api.params.To, *api.params.From, *api.params.Body)
	}
}

func TestTwilioSenderHonoursCancelledContext(t *testing.T) {
	api := &recordingAPI{}
	s := &TwilioSender{api: api}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Send(ctx, "5125550123", "hello"); err == nil {
		t.Fatalf("expected context error")
	}
	if api.params != nil {
		t.Fatalf("no request should be made")
	}
}
