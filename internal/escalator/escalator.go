// Package escalator runs the recurring sweep that flips unanswered conversations to missed
// and clears presence for clients that stopped sending heartbeats.
package escalator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ageniuscoder/shopdesk/backend/internal/chat"
	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/notify"
	"github.com/ageniuscoder/shopdesk/backend/internal/presence"
	"github.com/ageniuscoder/shopdesk/backend/internal/receipts"
)

const (
	DefaultWindow      = 2 * time.Minute
	DefaultInterval    = 60 * time.Second
	DefaultItemTimeout = 5 * time.Second
)

type Store interface {
	presence.Store
	ListSweepCandidates(ctx context.Context) ([]models.Conversation, error)
	HasAdminReplyAfter(ctx context.Context, userID int64, after time.Time) (bool, error)
	EscalateToMissed(ctx context.Context, snapshot models.Conversation, at time.Time) (bool, error)
}

// Leader reports whether this instance currently owns the sweep.
type Leader interface {
	IsLeader() bool
}

type Publisher interface {
	Publish(ev chat.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(chat.Event) {}

type Options struct {
	Window      time.Duration
	Interval    time.Duration
	ItemTimeout time.Duration
	Now         func() time.Time
	Leader      Leader
	Publisher   Publisher
	Notifier    notify.Notifier
	Logger      *slog.Logger
}

type Result struct {
	Scanned   int
	Escalated int
	Expired   int
	Failed    int
}

type Escalator struct {
	store    Store
	presence *presence.Tracker
	opts     Options

	sweeps      metric.Int64Counter
	escalations metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

func New(store Store, tracker *presence.Tracker, opts Options) *Escalator {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultItemTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	meter := otel.Meter("shopdesk/escalator")
	sweeps, _ := meter.Int64Counter("escalator_sweeps_total")
	escalations, _ := meter.Int64Counter("escalator_escalations_total")
	failures, _ := meter.Int64Counter("escalator_failures_total")
	duration, _ := meter.Float64Histogram("escalator_sweep_duration_seconds",
		metric.WithUnit("s"))

	return &Escalator{
		store:       store,
		presence:    tracker,
		opts:        opts,
		sweeps:      sweeps,
		escalations: escalations,
		failures:    failures,
		duration:    duration,
	}
}

// Run sweeps every Interval until ctx is cancelled. Followers skip their ticks.
func (e *Escalator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	e.opts.Logger.Info("Escalator started", "interval", e.opts.Interval, "window", e.opts.Window)
	for {
		select {
		case <-ctx.Done():
			e.opts.Logger.Info("Escalator stopped")
			return
		case <-ticker.C:
			if e.opts.Leader != nil && !e.opts.Leader.IsLeader() {
				continue
			}
			res, err := e.Sweep(ctx)
			if err != nil {
				e.opts.Logger.Error("Sweep failed", "error", err)
				continue
			}
			if res.Escalated > 0 || res.Expired > 0 || res.Failed > 0 {
				e.opts.Logger.Info("Sweep finished", "scanned", res.Scanned, "escalated", res.Escalated,
					"expired", res.Expired, "failed", res.Failed)
			}
		}
	}
}

// Sweep evaluates every candidate once. A failing item is logged and counted; the rest still run.
func (e *Escalator) Sweep(ctx context.Context) (Result, error) {
	start := time.Now()
	now := e.opts.Now().UTC()

	candidates, err := e.store.ListSweepCandidates(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Scanned: len(candidates)}
	for _, c := range candidates {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		escalated, expired, err := e.sweepOne(ctx, c, now)
		if escalated {
			res.Escalated++
		}
		if expired {
			res.Expired++
		}
		if err != nil {
			res.Failed++
			e.failures.Add(ctx, 1)
			e.opts.Logger.Warn("Sweep item failed", "user_id", c.UserID, "tenant_id", c.TenantID, "error", err)
		}
	}

	e.sweeps.Add(ctx, 1)
	e.duration.Record(ctx, time.Since(start).Seconds())
	return res, nil
}

func (e *Escalator) sweepOne(parent context.Context, c models.Conversation, now time.Time) (escalated, expired bool, err error) {
	ctx, cancel := context.WithTimeout(parent, e.opts.ItemTimeout)
	defer cancel()

	escalated, escErr := e.escalate(ctx, c, now)
	// presence expiry runs even when escalation failed
	expired, expErr := e.presence.Expire(ctx, c, now)
	if expired {
		e.opts.Publisher.Publish(chat.Event{
			Type: chat.EventPresence, TenantID: c.TenantID, UserID: c.UserID,
			Payload: map[string]any{"is_online": false}, At: now,
		})
	}
	return escalated, expired, errors.Join(escErr, expErr)
}

// Overdue reports whether c is open, unseen and older than window. It does not look at admin replies.
func Overdue(c models.Conversation, now time.Time, window time.Duration) bool {
	if !c.Status.IsOpen() || c.LastMessageAt.IsZero() {
		return false
	}
	return now.Sub(c.LastMessageAt) > window && receipts.ClientHasUnseen(c)
}

func (e *Escalator) escalate(ctx context.Context, c models.Conversation, now time.Time) (bool, error) {
	if !Overdue(c, now, e.opts.Window) {
		return false, nil
	}
	// the read receipt may lag behind a reply that was already sent
	replied, err := e.store.HasAdminReplyAfter(ctx, c.UserID, c.LastMessageAt)
	if err != nil {
		return false, err
	}
	if replied {
		return false, nil
	}
	next, err := chatstatus.Transition(c.Status, chatstatus.Escalate)
	if err != nil {
		return false, err
	}
	ok, err := e.store.EscalateToMissed(ctx, c, now)
	if err != nil || !ok {
		return false, err
	}

	e.escalations.Add(ctx, 1, metric.WithAttributes(attribute.String("tenant_id", c.TenantID)))
	e.opts.Logger.Info("Conversation escalated", "user_id", c.UserID, "tenant_id", c.TenantID,
		"from", c.Status, "last_message_at", c.LastMessageAt)
	e.opts.Publisher.Publish(chat.Event{
		Type: chat.EventStatus, TenantID: c.TenantID, UserID: c.UserID,
		Payload: map[string]any{"status": next, "previous": c.Status}, At: now,
	})
	alert := notify.Alert{TenantID: c.TenantID, UserID: c.UserID, Name: c.UserName, Phone: c.Phone, LastMessageAt: c.LastMessageAt}
	if err := e.opts.Notifier.MissedChat(ctx, alert); err != nil {
		// the status change already happened; a lost alert is not a failed item
		e.opts.Logger.Warn("Missed-chat alert failed", "user_id", c.UserID, "error", err)
	}
	return true, nil
}
