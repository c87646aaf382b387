// Package presence tracks whether a client is online from heartbeat signals.
// The escalator sweep is the only thing that clears presence for inactivity.
package presence

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

const DefaultThreshold = 70 * time.Second

type Store interface {
	SetOnline(ctx context.Context, userID int64, at time.Time) error
	SetOffline(ctx context.Context, userID int64) error
	ExpireOnline(ctx context.Context, userID int64, cutoff time.Time) (bool, error)
}

type Tracker struct {
	store     Store
	threshold time.Duration
	now       func() time.Time

	heartbeats  metric.Int64Counter
	expirations metric.Int64Counter
}

func New(store Store, threshold time.Duration, now func() time.Time) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if now == nil {
		now = time.Now
	}
	meter := otel.Meter("shopdesk/presence")
	heartbeats, _ := meter.Int64Counter("presence_heartbeats_total",
		metric.WithDescription("Total client heartbeats"))
	expirations, _ := meter.Int64Counter("presence_expirations_total",
		metric.WithDescription("Total presence expirations after the inactivity threshold"))

	return &Tracker{
		store:       store,
		threshold:   threshold,
		now:         now,
		heartbeats:  heartbeats,
		expirations: expirations,
	}
}

// With returns a copy of t writing through store, typically a transaction.
func (t *Tracker) With(store Store) *Tracker {
	c := *t
	c.store = store
	return &c
}

func (t *Tracker) Threshold() time.Duration { return t.threshold }

func (t *Tracker) Heartbeat(ctx context.Context, userID int64) error {
	if err := t.store.SetOnline(ctx, userID, t.now().UTC()); err != nil {
		return err
	}
	t.heartbeats.Add(ctx, 1)
	return nil
}

func (t *Tracker) SetOffline(ctx context.Context, userID int64) error {
	return t.store.SetOffline(ctx, userID)
}

// Expire marks the client offline when its last heartbeat is older than the threshold.
// It reports whether presence was actually cleared.
func (t *Tracker) Expire(ctx context.Context, c models.Conversation, now time.Time) (bool, error) {
	if !IsStale(c, now, t.threshold) {
		return false, nil
	}
	expired, err := t.store.ExpireOnline(ctx, c.UserID, now.Add(-t.threshold))
	if err != nil {
		return false, err
	}
	if expired {
		t.expirations.Add(ctx, 1)
	}
	return expired, nil
}

func IsStale(c models.Conversation, now time.Time, threshold time.Duration) bool {
	return c.IsOnline && now.Sub(c.LastOnlineAt) > threshold
}
