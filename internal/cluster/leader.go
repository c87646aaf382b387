package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	LeaderBucket = "SHOPDESK_LEADER"
	SweepKey     = "escalator"
)

// LeaderElection owns one key in a TTL'd bucket. The instance whose id is
// stored under the key leads; it keeps the key alive by rewriting it at its
// current revision every interval.
type LeaderElection struct {
	kv       jetstream.KeyValue
	id       string
	key      string
	interval time.Duration
	logger   *slog.Logger

	leading  atomic.Bool
	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewLeaderElection(ctx context.Context, js jetstream.JetStream, bucket, key string, ttl, interval time.Duration) (*LeaderElection, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	return newLeaderElection(kv, key, interval), nil
}

func newLeaderElection(kv jetstream.KeyValue, key string, interval time.Duration) *LeaderElection {
	return &LeaderElection{
		kv:       kv,
		id:       uuid.NewString(),
		key:      key,
		interval: interval,
		logger:   slog.Default().With("component", "leader", "key", key),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (le *LeaderElection) InstanceID() string {
	return le.id
}

func (le *LeaderElection) IsLeader() bool {
	return le.leading.Load()
}

// Start blocks, campaigning every interval, until ctx is done or Stop is
// called. Run it in its own goroutine. A second call returns immediately.
func (le *LeaderElection) Start(ctx context.Context) {
	if !le.started.CompareAndSwap(false, true) {
		return
	}
	defer close(le.done)
	defer le.release()

	ticker := time.NewTicker(le.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-le.stop:
			return
		default:
		}
		le.campaign(ctx)
		select {
		case <-ctx.Done():
			return
		case <-le.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the campaign and, when Start is running, waits for it to give
// up the key. Safe to call more than once.
func (le *LeaderElection) Stop() {
	le.stopOnce.Do(func() { close(le.stop) })
	if le.started.Load() {
		<-le.done
	}
}

// campaign takes the key when it is free and renews it when this instance
// already holds it.
func (le *LeaderElection) campaign(ctx context.Context) {
	entry, err := le.kv.Get(ctx, le.key)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		if _, err := le.kv.Create(ctx, le.key, []byte(le.id)); err != nil {
			if !errors.Is(err, jetstream.ErrKeyExists) {
				le.logger.Warn("Leader key create failed", "error", err)
			}
			le.set(false)
			return
		}
		le.set(true)
	case err != nil:
		le.logger.Warn("Leader key read failed", "error", err)
		le.set(false)
	case string(entry.Value()) != le.id:
		le.set(false)
	default:
		if _, err := le.kv.Update(ctx, le.key, []byte(le.id), entry.Revision()); err != nil {
			le.logger.Warn("Leader key renew failed", "error", err)
			le.set(false)
			return
		}
		le.set(true)
	}
}

func (le *LeaderElection) set(leading bool) {
	if le.leading.Swap(leading) == leading {
		return
	}
	if leading {
		le.logger.Info("Became sweep leader", "instance_id", le.id)
	} else {
		le.logger.Warn("Lost sweep leadership", "instance_id", le.id)
	}
}

// release deletes the key if this instance still holds it so a follower
// can take over before the TTL runs out.
func (le *LeaderElection) release() {
	if !le.leading.Swap(false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	entry, err := le.kv.Get(ctx, le.key)
	if err != nil || string(entry.Value()) != le.id {
		return
	}
	if err := le.kv.Delete(ctx, le.key); err != nil {
		le.logger.Warn("Leader key release failed", "error", err)
		return
	}
	le.logger.Info("Stepped down as sweep leader", "instance_id", le.id)
}
