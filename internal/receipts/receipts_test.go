package receipts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type write struct {
	kind   string
	userID int64
	at     time.Time
	status chatstatus.Status
}

type recorder struct {
	writes []write
	err    error
}

func (r *recorder) UpdateInbound(_ context.Context, userID int64, at time.Time, s chatstatus.Status) error {
	r.writes = append(r.writes, write{"inbound", userID, at, s})
	return r.err
}

func (r *recorder) UpdateAdminRead(_ context.Context, userID int64, at time.Time, s chatstatus.Status) error {
	r.writes = append(r.writes, write{"read", userID, at, s})
	return r.err
}

func TestRecordInboundReopens(t *testing.T) {
	for _, cur := range chatstatus.All {
		rec := &recorder{}
		tr := New(rec, func() time.Time { return t0 })
		c, err := tr.RecordInbound(context.Background(), models.Conversation{UserID: 5, Status: cur}, t0)
		require.NoError(t, err)
		assert.Equal(t, chatstatus.New, c.Status, "from %s", cur)
		assert.Equal(t, t0, c.LastMessageAt)
		assert.Equal(t, []write{{"inbound", 5, t0, chatstatus.New}}, rec.writes)
	}
}

func TestRecordAdminReadUsesClock(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, func() time.Time { return t0.Add(time.Minute) })
	c, err := tr.RecordAdminRead(context.Background(), models.Conversation{UserID: 5, Status: chatstatus.New, LastMessageAt: t0})
	require.NoError(t, err)
	assert.Equal(t, chatstatus.Waiting, c.Status)
	assert.Equal(t, t0.Add(time.Minute), c.AdminLastReadAt)
	assert.False(t, ClientHasUnseen(c))
}

func TestRecordLeavesConversationOnStoreError(t *testing.T) {
	rec := &recorder{err: errors.New("boom")}
	tr := New(rec, nil)
	in := models.Conversation{UserID: 5, Status: chatstatus.Active}
	c, err := tr.RecordAdminRead(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, in, c)
}

func TestClientHasUnseen(t *testing.T) {
	cases := []struct {
		name string
		conv models.Conversation
		want bool
	}{
		{"no messages", models.Conversation{}, false},
		{"never read", models.Conversation{LastMessageAt: t0}, true},
		{"read after", models.Conversation{LastMessageAt: t0, AdminLastReadAt: t0.Add(time.Second)}, false},
		{"read same instant", models.Conversation{LastMessageAt: t0, AdminLastReadAt: t0}, false},
		{"new message after read", models.Conversation{LastMessageAt: t0.Add(time.Second), AdminLastReadAt: t0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClientHasUnseen(tc.conv))
		})
	}
}
