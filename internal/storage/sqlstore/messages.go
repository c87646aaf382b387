package sqlstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

func (s *Store) InsertMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.Images == nil {
		m.Images = []string{}
	}
	images, err := json.Marshal(m.Images)
	if err != nil {
		return models.Message{}, fault("encode images", err)
	}
	err = s.queryRow(ctx, `INSERT INTO messages (user_id, tenant_id, from_admin, text, images, audio, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		m.UserID, m.TenantID, m.FromAdmin, m.Text, string(images), m.Audio, m.Read, m.CreatedAt.UnixMilli()).Scan(&m.ID)
	if err != nil {
		return models.Message{}, fault("insert message", err)
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, userID int64) ([]models.Message, error) {
	rows, err := s.query(ctx, `SELECT id, user_id, tenant_id, from_admin, text, images, audio, is_read, created_at
		FROM messages WHERE user_id=? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fault("list messages", err)
	}
	defer rows.Close()

	list := []models.Message{}
	for rows.Next() {
		var (
			m       models.Message
			images  string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.TenantID, &m.FromAdmin, &m.Text, &images, &m.Audio, &m.Read, &created); err != nil {
			return nil, fault("scan message", err)
		}
		if err := json.Unmarshal([]byte(images), &m.Images); err != nil {
			return nil, fault("decode images", err)
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("list messages", err)
	}
	return list, nil
}

// MarkClientMessagesRead flags unread client-authored messages; admin messages are never touched.
func (s *Store) MarkClientMessagesRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.exec(ctx, `UPDATE messages SET is_read=? WHERE user_id=? AND from_admin=? AND is_read=?`,
		true, userID, false, false)
	if err != nil {
		return 0, fault("mark messages read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fault("mark messages read", err)
	}
	return n, nil
}
