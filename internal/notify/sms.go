package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type SMS struct {
	client *twilio.RestClient
	from   string // your Twilio phone number
	to     string
}

func NewSMS(sid, token, from, to string) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: sid,
		Password: token,
	})
	return &SMS{client: client, from: from, to: to}
}

func (s *SMS) params(a Alert) *openapi.CreateMessageParams {
	params := &openapi.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(a.Subject() + ": " + a.Body())
	return params
}

// MissedChat sends the alert by SMS. The twilio client has no context support.
func (s *SMS) MissedChat(_ context.Context, a Alert) error {
	if _, err := s.client.Api.CreateMessage(s.params(a)); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}
