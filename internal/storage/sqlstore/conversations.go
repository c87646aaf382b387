package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage"
)

// Presence and the block flag live on users; the rest of a conversation lives on conversations.
const conversationSelect = `SELECT u.id, u.tenant_id, u.name, u.phone_number, COALESCE(c.status, ''),
	c.last_message_at, c.admin_last_read_at, u.is_online, u.last_online_at, u.is_blocked,
	COALESCE(c.created_at, u.created_at), COALESCE(c.updated_at, u.created_at)
	FROM users u LEFT JOIN conversations c ON c.user_id = u.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(r rowScanner) (models.Conversation, error) {
	var (
		c                             models.Conversation
		status                        string
		lastMsg, lastRead, lastOnline sql.NullInt64
		created, updated              int64
	)
	err := r.Scan(&c.UserID, &c.TenantID, &c.UserName, &c.Phone, &status,
		&lastMsg, &lastRead, &c.IsOnline, &lastOnline, &c.IsBlocked, &created, &updated)
	if err != nil {
		return models.Conversation{}, err
	}
	c.Status = chatstatus.Status(status)
	c.LastMessageAt = fromMs(lastMsg)
	c.AdminLastReadAt = fromMs(lastRead)
	c.LastOnlineAt = fromMs(lastOnline)
	c.CreatedAt = time.UnixMilli(created).UTC()
	c.UpdatedAt = time.UnixMilli(updated).UTC()
	return c, nil
}

func (s *Store) collectConversations(rows *sql.Rows) ([]models.Conversation, error) {
	defer rows.Close()
	var list []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fault("scan conversation", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("list conversations", err)
	}
	return list, nil
}

func (s *Store) EnsureConversation(ctx context.Context, userID int64, tenantID string, at time.Time) (models.Conversation, error) {
	_, err := s.exec(ctx, `INSERT INTO conversations (user_id, tenant_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING`,
		userID, tenantID, string(chatstatus.New), at.UnixMilli(), at.UnixMilli())
	if err != nil {
		return models.Conversation{}, fault("create conversation", err)
	}
	return s.GetConversation(ctx, userID)
}

func (s *Store) GetConversation(ctx context.Context, userID int64) (models.Conversation, error) {
	c, err := scanConversation(s.queryRow(ctx, conversationSelect+` WHERE u.id=? AND c.user_id IS NOT NULL`, userID))
	if err != nil {
		return models.Conversation{}, notFoundOr("conversation", err)
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, f storage.ConversationFilter) ([]models.Conversation, error) {
	q := conversationSelect + ` WHERE c.user_id IS NOT NULL AND c.tenant_id=?`
	args := []any{f.TenantID}
	if len(f.Statuses) > 0 {
		q += ` AND c.status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	q += ` ORDER BY COALESCE(c.last_message_at, 0) DESC, u.id DESC`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fault("list conversations", err)
	}
	return s.collectConversations(rows)
}

func (s *Store) ListSweepCandidates(ctx context.Context) ([]models.Conversation, error) {
	q := conversationSelect + ` WHERE u.is_admin=? AND (c.status IN (` + placeholders(len(chatstatus.Open)) + `) OR u.is_online=?)
		ORDER BY u.id`
	args := []any{false}
	for _, st := range chatstatus.Open {
		args = append(args, string(st))
	}
	args = append(args, true)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fault("list sweep candidates", err)
	}
	return s.collectConversations(rows)
}

func (s *Store) DeleteConversation(ctx context.Context, userID int64) error {
	return s.InTx(ctx, func(tx storage.Store) error {
		t := tx.(*Store)
		if _, err := t.exec(ctx, `DELETE FROM messages WHERE user_id=?`, userID); err != nil {
			return fault("delete messages", err)
		}
		return t.execOne(ctx, "conversation", `DELETE FROM conversations WHERE user_id=?`, userID)
	})
}

func (s *Store) UpdateInbound(ctx context.Context, userID int64, at time.Time, status chatstatus.Status) error {
	return s.execOne(ctx, "conversation", `UPDATE conversations SET last_message_at=?, status=?, updated_at=? WHERE user_id=?`,
		at.UnixMilli(), string(status), at.UnixMilli(), userID)
}

func (s *Store) UpdateAdminRead(ctx context.Context, userID int64, at time.Time, status chatstatus.Status) error {
	return s.execOne(ctx, "conversation", `UPDATE conversations SET admin_last_read_at=?, status=?, updated_at=? WHERE user_id=?`,
		at.UnixMilli(), string(status), at.UnixMilli(), userID)
}

func (s *Store) UpdateStatus(ctx context.Context, userID int64, status chatstatus.Status, at time.Time) error {
	return s.execOne(ctx, "conversation", `UPDATE conversations SET status=?, updated_at=? WHERE user_id=?`,
		string(status), at.UnixMilli(), userID)
}

func (s *Store) HasAdminReplyAfter(ctx context.Context, userID int64, after time.Time) (bool, error) {
	var exists bool
	err := s.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM messages WHERE user_id=? AND from_admin=? AND created_at > ?)`,
		userID, true, after.UnixMilli()).Scan(&exists)
	if err != nil {
		return false, fault("check admin reply", err)
	}
	return exists, nil
}

// EscalateToMissed flips the conversation to missed only if it still matches the snapshot the
// sweep decided on: same last client message, still open, still unseen by an admin.
func (s *Store) EscalateToMissed(ctx context.Context, snap models.Conversation, at time.Time) (bool, error) {
	if snap.LastMessageAt.IsZero() {
		return false, nil
	}
	q := `UPDATE conversations SET status=?, updated_at=?
		WHERE user_id=? AND last_message_at=? AND status IN (` + placeholders(len(chatstatus.Open)) + `)
		AND (admin_last_read_at IS NULL OR admin_last_read_at < last_message_at)`
	args := []any{string(chatstatus.Missed), at.UnixMilli(), snap.UserID, snap.LastMessageAt.UnixMilli()}
	for _, st := range chatstatus.Open {
		args = append(args, string(st))
	}
	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return false, fault("escalate conversation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fault("escalate conversation", err)
	}
	return n > 0, nil
}
