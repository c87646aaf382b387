// Package notify alerts shop staff when a conversation is escalated to missed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Alert struct {
	TenantID      string
	UserID        int64
	Name          string
	Phone         string
	LastMessageAt time.Time
}

func (a Alert) Subject() string {
	return fmt.Sprintf("Missed chat from %s", a.displayName())
}

func (a Alert) Body() string {
	return fmt.Sprintf("%s (%s) has been waiting since %s without a reply. Conversation #%d in shop %s.",
		a.displayName(), a.Phone, a.LastMessageAt.UTC().Format(time.RFC1123), a.UserID, a.TenantID)
}

func (a Alert) displayName() string {
	if a.Name == "" {
		return a.Phone
	}
	return a.Name
}

type Notifier interface {
	MissedChat(ctx context.Context, a Alert) error
}

type Nop struct{}

func (Nop) MissedChat(context.Context, Alert) error { return nil }

// Multi fans an alert out to every notifier; one failing channel does not stop the others.
type Multi []Notifier

func (m Multi) MissedChat(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.MissedChat(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
