package escalator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageniuscoder/shopdesk/backend/internal/chat"
	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/notify"
	"github.com/ageniuscoder/shopdesk/backend/internal/presence"
	"github.com/ageniuscoder/shopdesk/backend/internal/receipts"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	convs     map[int64]*models.Conversation
	replies   map[int64][]time.Time
	replyErr  map[int64]error
	listCalls atomic.Int32
	block     map[int64]bool
}

func newFakeStore(convs ...models.Conversation) *fakeStore {
	s := &fakeStore{
		convs:    make(map[int64]*models.Conversation),
		replies:  make(map[int64][]time.Time),
		replyErr: make(map[int64]error),
		block:    make(map[int64]bool),
	}
	for i := range convs {
		c := convs[i]
		s.convs[c.UserID] = &c
	}
	return s
}

func (s *fakeStore) get(id int64) models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.convs[id]
}

func (s *fakeStore) ListSweepCandidates(context.Context) ([]models.Conversation, error) {
	s.listCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.convs {
		if c.Status.IsOpen() || c.IsOnline {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *fakeStore) HasAdminReplyAfter(ctx context.Context, userID int64, after time.Time) (bool, error) {
	if s.block[userID] {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if err := s.replyErr[userID]; err != nil {
		return false, err
	}
	for _, at := range s.replies[userID] {
		if at.After(after) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) EscalateToMissed(_ context.Context, snap models.Conversation, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.convs[snap.UserID]
	if !c.LastMessageAt.Equal(snap.LastMessageAt) || !c.Status.IsOpen() || !receipts.ClientHasUnseen(*c) {
		return false, nil
	}
	c.Status = chatstatus.Missed
	c.UpdatedAt = at
	return true, nil
}

func (s *fakeStore) SetOnline(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[userID].IsOnline = true
	s.convs[userID].LastOnlineAt = at
	return nil
}

func (s *fakeStore) SetOffline(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[userID].IsOnline = false
	return nil
}

func (s *fakeStore) ExpireOnline(_ context.Context, userID int64, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.convs[userID]
	if !c.IsOnline || !c.LastOnlineAt.Before(cutoff) {
		return false, nil
	}
	c.IsOnline = false
	return true, nil
}

func (s *fakeStore) UpdateInbound(_ context.Context, userID int64, at time.Time, st chatstatus.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[userID].LastMessageAt = at
	s.convs[userID].Status = st
	return nil
}

func (s *fakeStore) UpdateAdminRead(_ context.Context, userID int64, at time.Time, st chatstatus.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[userID].AdminLastReadAt = at
	s.convs[userID].Status = st
	return nil
}

type publisherFunc func(chat.Event)

func (f publisherFunc) Publish(ev chat.Event) { f(ev) }

type alertRecorder struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (r *alertRecorder) MissedChat(_ context.Context, a notify.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func newEscalator(store *fakeStore, now time.Time, opts Options) *Escalator {
	opts.Now = func() time.Time { return now }
	return New(store, presence.New(store, 70*time.Second, opts.Now), opts)
}

func TestSweepEscalatesOverdueUnseen(t *testing.T) {
	store := newFakeStore(
		models.Conversation{UserID: 1, TenantID: "shop-1", Status: chatstatus.New, LastMessageAt: t0},
		models.Conversation{UserID: 2, TenantID: "shop-1", Status: chatstatus.Waiting, LastMessageAt: t0},
		models.Conversation{UserID: 3, TenantID: "shop-1", Status: chatstatus.Active, LastMessageAt: t0},
	)
	alerts := &alertRecorder{}
	var events []chat.Event
	e := newEscalator(store, t0.Add(121*time.Second), Options{
		Notifier:  alerts,
		Publisher: publisherFunc(func(ev chat.Event) { events = append(events, ev) }),
	})

	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3, Escalated: 3}, res)
	for id := int64(1); id <= 3; id++ {
		assert.Equal(t, chatstatus.Missed, store.get(id).Status)
	}
	assert.Len(t, alerts.alerts, 3)
	require.Len(t, events, 3)
	assert.Equal(t, chat.EventStatus, events[0].Type)
}

func TestSweepRespectsWindowBoundary(t *testing.T) {
	store := newFakeStore(models.Conversation{UserID: 1, Status: chatstatus.New, LastMessageAt: t0})
	e := newEscalator(store, t0.Add(DefaultWindow), Options{})
	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Escalated)
	assert.Equal(t, chatstatus.New, store.get(1).Status)
}

func TestSweepSkipsWhenAdminRepliedAfterLastMessage(t *testing.T) {
	store := newFakeStore(models.Conversation{UserID: 1, Status: chatstatus.New, LastMessageAt: t0})
	store.replies[1] = []time.Time{t0.Add(-time.Minute), t0.Add(30 * time.Second)}

	e := newEscalator(store, t0.Add(5*time.Minute), Options{})
	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Escalated)
	assert.Equal(t, chatstatus.New, store.get(1).Status)
}

func TestSweepEscalatesWhenOnlyOlderRepliesExist(t *testing.T) {
	store := newFakeStore(models.Conversation{UserID: 1, Status: chatstatus.New, LastMessageAt: t0})
	store.replies[1] = []time.Time{t0.Add(-time.Minute), t0}

	e := newEscalator(store, t0.Add(5*time.Minute), Options{})
	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)
}

func TestSweepIgnoresSeenAndClosedConversations(t *testing.T) {
	store := newFakeStore(
		// admin read after the last client message
		models.Conversation{UserID: 1, Status: chatstatus.Waiting, LastMessageAt: t0, AdminLastReadAt: t0.Add(90 * time.Second)},
		models.Conversation{UserID: 2, Status: chatstatus.Done, LastMessageAt: t0},
		models.Conversation{UserID: 3, Status: chatstatus.Archived, LastMessageAt: t0, IsOnline: true, LastOnlineAt: t0.Add(2 * time.Minute)},
		// never wrote
		models.Conversation{UserID: 4, Status: chatstatus.New},
	)
	e := newEscalator(store, t0.Add(130*time.Second), Options{})
	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 3}, res)
	assert.Equal(t, chatstatus.Waiting, store.get(1).Status)
	assert.Equal(t, chatstatus.Done, store.get(2).Status)
	assert.Equal(t, chatstatus.Archived, store.get(3).Status)
	assert.Equal(t, chatstatus.New, store.get(4).Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newFakeStore(
		models.Conversation{UserID: 1, Status: chatstatus.New, LastMessageAt: t0, IsOnline: true, LastOnlineAt: t0},
		models.Conversation{UserID: 2, Status: chatstatus.Active, LastMessageAt: t0.Add(100 * time.Second)},
	)
	e := newEscalator(store, t0.Add(3*time.Minute), Options{})

	first, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 2, Escalated: 1, Expired: 1}, first)
	after1 := []models.Conversation{store.get(1), store.get(2)}

	second, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1}, second)
	assert.Equal(t, after1, []models.Conversation{store.get(1), store.get(2)})
}

func TestSweepExpiresStalePresence(t *testing.T) {
	store := newFakeStore(
		models.Conversation{UserID: 1, Status: chatstatus.Done, IsOnline: true, LastOnlineAt: t0},
		models.Conversation{UserID: 2, Status: chatstatus.Done, IsOnline: true, LastOnlineAt: t0.Add(30 * time.Second)},
	)
	var events []chat.Event
	e := newEscalator(store, t0.Add(71*time.Second), Options{
		Publisher: publisherFunc(func(ev chat.Event) { events = append(events, ev) }),
	})

	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.False(t, store.get(1).IsOnline)
	assert.True(t, store.get(2).IsOnline)
	require.Len(t, events, 1)
	assert.Equal(t, chat.EventPresence, events[0].Type)
}

func TestSweepContinuesAfterItemFailure(t *testing.T) {
	store := newFakeStore(
		models.Conversation{UserID: 1, Status: chatstatus.New, LastMessageAt: t0, IsOnline: true, LastOnlineAt: t0},
		models.Conversation{UserID: 2, Status: chatstatus.New, LastMessageAt: t0},
	)
	store.replyErr[1] = errors.New("connection reset")

	e := newEscalator(store, t0.Add(3*time.Minute), Options{})
	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 2, Escalated: 1, Expired: 1, Failed: 1}, res)
	assert.Equal(t, chatstatus.New, store.get(1).Status)
	assert.False(t, store.get(1).IsOnline, "presence expiry still runs for the failing item")
	assert.Equal(t, chatstatus.Missed, store.get(2).Status)
}

func TestSweepBoundsSlowItems(t *testing.T) {
	store := newFakeStore(
		models.Conversation{UserID: 1, Status: chatstatus.New, LastMessageAt: t0},
		models.Conversation{UserID: 2, Status: chatstatus.New, LastMessageAt: t0},
	)
	store.block[1] = true

	e := newEscalator(store, t0.Add(3*time.Minute), Options{ItemTimeout: 20 * time.Millisecond})
	res, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, chatstatus.Missed, store.get(2).Status)
}

func TestMissedThenAdminOpensThread(t *testing.T) {
	store := newFakeStore(models.Conversation{UserID: 1, TenantID: "shop-1", Status: chatstatus.Done})
	ctx := context.Background()

	inbound := receipts.New(store, func() time.Time { return t0 })
	_, err := inbound.RecordInbound(ctx, store.get(1), t0)
	require.NoError(t, err)
	assert.Equal(t, chatstatus.New, store.get(1).Status)

	e := newEscalator(store, t0.Add(121*time.Second), Options{})
	_, err = e.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, chatstatus.Missed, store.get(1).Status)

	reader := receipts.New(store, func() time.Time { return t0.Add(130 * time.Second) })
	_, err = reader.RecordAdminRead(ctx, store.get(1))
	require.NoError(t, err)
	got := store.get(1)
	assert.Equal(t, chatstatus.Waiting, got.Status)
	assert.Equal(t, t0.Add(130*time.Second), got.AdminLastReadAt)
}

type staticLeader bool

func (l staticLeader) IsLeader() bool { return bool(l) }

func TestRunOnlySweepsOnLeader(t *testing.T) {
	for _, leader := range []bool{false, true} {
		store := newFakeStore()
		e := New(store, presence.New(store, 0, nil), Options{
			Interval: 5 * time.Millisecond,
			Leader:   staticLeader(leader),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		e.Run(ctx)
		cancel()

		if leader {
			assert.Positive(t, store.listCalls.Load())
		} else {
			assert.Zero(t, store.listCalls.Load())
		}
	}
}

func TestOverdue(t *testing.T) {
	c := models.Conversation{Status: chatstatus.Active, LastMessageAt: t0}
	assert.True(t, Overdue(c, t0.Add(121*time.Second), DefaultWindow))
	assert.False(t, Overdue(c, t0.Add(120*time.Second), DefaultWindow))

	c.AdminLastReadAt = t0.Add(time.Second)
	assert.False(t, Overdue(c, t0.Add(time.Hour), DefaultWindow))

	c = models.Conversation{Status: chatstatus.Missed, LastMessageAt: t0}
	assert.False(t, Overdue(c, t0.Add(time.Hour), DefaultWindow))
}
