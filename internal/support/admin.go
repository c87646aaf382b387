package support

import (
	"context"
	"errors"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/attachments"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/chat"
	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage"
)

type AdminReplyInput struct {
	Text  string
	Files []models.Attachment
}

type AdminReplyResult struct {
	Message      models.Message         `json:"message"`
	Conversation models.Conversation    `json:"conversation"`
	Rejected     []attachments.Rejected `json:"rejected,omitempty"`
}

// SendAdminReply stores an admin message and records a read receipt. The client's presence and
// last_message_at are left alone.
func (s *Service) SendAdminReply(ctx context.Context, admin auth.Identity, userID int64, in AdminReplyInput) (AdminReplyResult, error) {
	if err := requireAdmin(admin); err != nil {
		return AdminReplyResult{}, err
	}
	if _, err := s.guard.Writable(ctx, admin.TenantID); err != nil {
		return AdminReplyResult{}, err
	}
	if _, err := adminConversation(ctx, s.store, admin, userID); err != nil {
		return AdminReplyResult{}, err
	}
	text, media, err := s.content(ctx, in.Text, in.Files)
	if err != nil {
		return AdminReplyResult{}, err
	}

	var res AdminReplyResult
	prev := chatstatus.Status("")
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		c, err := adminConversation(ctx, tx, admin, userID)
		if err != nil {
			return err
		}
		prev = c.Status
		msg, err := tx.InsertMessage(ctx, models.Message{
			UserID: userID, TenantID: c.TenantID, FromAdmin: true, Text: text,
			Images: media.Images, Audio: media.Audio, CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}
		if c, err = s.receipts.With(tx).RecordAdminRead(ctx, c); err != nil {
			return err
		}
		res.Message, res.Conversation = msg, c
		return nil
	})
	if err != nil {
		s.discard(ctx, media)
		return AdminReplyResult{}, err
	}

	res.Rejected = media.Rejected
	s.clearTyping(ctx, userID)
	s.publish(chat.EventMessage, res.Conversation, map[string]any{"message": res.Message, "status": res.Conversation.Status})
	if prev != res.Conversation.Status {
		s.publish(chat.EventStatus, res.Conversation, map[string]any{"status": res.Conversation.Status, "previous": prev})
	}
	return res, nil
}

// MarkRead flags every unread client message as read and records a read receipt.
// It returns how many messages were flagged.
func (s *Service) MarkRead(ctx context.Context, admin auth.Identity, userID int64) (int64, models.Conversation, error) {
	if err := requireAdmin(admin); err != nil {
		return 0, models.Conversation{}, err
	}
	var (
		n    int64
		conv models.Conversation
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		c, err := adminConversation(ctx, tx, admin, userID)
		if err != nil {
			return err
		}
		if n, err = tx.MarkClientMessagesRead(ctx, userID); err != nil {
			return err
		}
		conv, err = s.receipts.With(tx).RecordAdminRead(ctx, c)
		return err
	})
	if err != nil {
		return 0, models.Conversation{}, err
	}
	s.publish(chat.EventRead, conv, map[string]any{"marked": n, "admin_last_read_at": conv.AdminLastReadAt, "status": conv.Status})
	return n, conv, nil
}

func (s *Service) Conversation(ctx context.Context, admin auth.Identity, userID int64) (models.Conversation, error) {
	if err := requireAdmin(admin); err != nil {
		return models.Conversation{}, err
	}
	return adminConversation(ctx, s.store, admin, userID)
}

// Conversations lists the admin's tenant board, newest client message first.
func (s *Service) Conversations(ctx context.Context, admin auth.Identity, statuses []string) ([]models.Conversation, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	f := storage.ConversationFilter{TenantID: admin.TenantID}
	for _, raw := range statuses {
		st, err := chatstatus.Parse(raw)
		if err != nil {
			return nil, err
		}
		f.Statuses = append(f.Statuses, st)
	}
	list, err := s.store.ListConversations(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Conversation{}
	}
	return list, nil
}

// PatchStatus moves a conversation to the status an admin picked. Moving to waiting counts as a read.
func (s *Service) PatchStatus(ctx context.Context, admin auth.Identity, userID int64, target string) (models.Conversation, error) {
	if err := requireAdmin(admin); err != nil {
		return models.Conversation{}, err
	}
	want, err := chatstatus.Parse(target)
	if err != nil {
		return models.Conversation{}, err
	}
	ev, err := chatstatus.AdminEventFor(want)
	if err != nil {
		return models.Conversation{}, err
	}

	var conv models.Conversation
	prev := chatstatus.Status("")
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		c, err := adminConversation(ctx, tx, admin, userID)
		if err != nil {
			return err
		}
		prev = c.Status
		if ev == chatstatus.AdminRead {
			conv, err = s.receipts.With(tx).RecordAdminRead(ctx, c)
			return err
		}
		next, err := chatstatus.Transition(c.Status, ev)
		if errors.Is(err, chatstatus.ErrIllegalTransition) {
			return apperr.Invalid("cannot move a %s conversation to %s", c.Status, want)
		}
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.UpdateStatus(ctx, userID, next, now); err != nil {
			return err
		}
		c.Status, c.UpdatedAt = next, now
		conv = c
		return nil
	})
	if err != nil {
		return models.Conversation{}, err
	}
	if prev != conv.Status {
		s.publish(chat.EventStatus, conv, map[string]any{"status": conv.Status, "previous": prev})
	}
	return conv, nil
}

// SetBlocked blocks or unblocks a client of the admin's tenant. The flag survives thread deletion.
func (s *Service) SetBlocked(ctx context.Context, admin auth.Identity, userID int64, blocked bool) (models.User, error) {
	if err := requireAdmin(admin); err != nil {
		return models.User{}, err
	}
	if userID <= 0 {
		return models.User{}, apperr.Invalid("invalid user id")
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if u.TenantID != admin.TenantID {
		return models.User{}, apperr.Missing("user")
	}
	if u.IsAdmin {
		return models.User{}, apperr.Invalid("admins cannot be blocked")
	}
	if err := s.store.SetBlocked(ctx, userID, blocked); err != nil {
		return models.User{}, err
	}
	u.IsBlocked = blocked
	s.publish(chat.EventStatus, models.Conversation{UserID: u.ID, TenantID: u.TenantID}, map[string]any{"is_blocked": blocked})
	return u, nil
}

// DeleteThread removes the conversation and all of its messages. The user row is kept.
func (s *Service) DeleteThread(ctx context.Context, admin auth.Identity, userID int64) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	c, err := adminConversation(ctx, s.store, admin, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, userID); err != nil {
		return err
	}
	s.clearTyping(ctx, userID)
	s.publish(chat.EventThreadDeleted, c, nil)
	return nil
}
