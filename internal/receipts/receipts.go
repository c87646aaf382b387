// Package receipts records who last spoke in a conversation and when an admin last looked at it.
package receipts

import (
	"context"
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

type Store interface {
	UpdateInbound(ctx context.Context, userID int64, at time.Time, status chatstatus.Status) error
	UpdateAdminRead(ctx context.Context, userID int64, at time.Time, status chatstatus.Status) error
}

type Tracker struct {
	store Store
	now   func() time.Time
}

func New(store Store, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, now: now}
}

func (t *Tracker) With(store Store) *Tracker {
	return &Tracker{store: store, now: t.now}
}

// RecordInbound stamps a client message and returns the conversation as persisted.
func (t *Tracker) RecordInbound(ctx context.Context, c models.Conversation, at time.Time) (models.Conversation, error) {
	next, err := chatstatus.Transition(c.Status, chatstatus.ClientMessage)
	if err != nil {
		return c, err
	}
	if err := t.store.UpdateInbound(ctx, c.UserID, at, next); err != nil {
		return c, err
	}
	c.LastMessageAt = at
	c.Status = next
	c.UpdatedAt = at
	return c, nil
}

// RecordAdminRead stamps an admin view with the tracker's clock, never a caller-supplied time.
func (t *Tracker) RecordAdminRead(ctx context.Context, c models.Conversation) (models.Conversation, error) {
	next, err := chatstatus.Transition(c.Status, chatstatus.AdminRead)
	if err != nil {
		return c, err
	}
	at := t.now().UTC()
	if err := t.store.UpdateAdminRead(ctx, c.UserID, at, next); err != nil {
		return c, err
	}
	c.AdminLastReadAt = at
	c.Status = next
	c.UpdatedAt = at
	return c, nil
}

// ClientHasUnseen reports whether the last client message is newer than the last admin view.
// A conversation never read by an admin counts as read at the epoch.
func ClientHasUnseen(c models.Conversation) bool {
	if c.LastMessageAt.IsZero() {
		return false
	}
	return c.AdminLastReadAt.IsZero() || c.LastMessageAt.After(c.AdminLastReadAt)
}
