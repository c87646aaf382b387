package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Email struct {
	client *sendgrid.Client
	from   string
	to     string
}

func NewEmail(apiKey, from, to string) *Email {
	return &Email{client: sendgrid.NewSendClient(apiKey), from: from, to: to}
}

func (e *Email) message(a Alert) *mail.SGMailV3 {
	from := mail.NewEmail("Shop support", e.from)
	to := mail.NewEmail("", e.to)
	return mail.NewSingleEmail(from, a.Subject(), to, a.Body(), "")
}

func (e *Email) MissedChat(ctx context.Context, a Alert) error {
	resp, err := e.client.SendWithContext(ctx, e.message(a))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email: status %d", resp.StatusCode)
	}
	return nil
}
