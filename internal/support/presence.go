package support

import (
	"context"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/chat"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/typing"
)

// Heartbeat marks the client online. Admin activity never touches client presence.
func (s *Service) Heartbeat(ctx context.Context, id auth.Identity) error {
	if id.IsAdmin {
		return nil
	}
	if err := s.presence.Heartbeat(ctx, id.UserID); err != nil {
		return err
	}
	s.publish(chat.EventPresence, models.Conversation{UserID: id.UserID, TenantID: id.TenantID}, map[string]any{"is_online": true})
	return nil
}

func (s *Service) Offline(ctx context.Context, id auth.Identity) error {
	if id.IsAdmin {
		return nil
	}
	if err := s.presence.SetOffline(ctx, id.UserID); err != nil {
		return err
	}
	s.publish(chat.EventPresence, models.Conversation{UserID: id.UserID, TenantID: id.TenantID}, map[string]any{"is_online": false})
	return nil
}

// SetTyping stores the typing signal of a conversation. Clients always signal on their own
// thread; admins name the client's thread in userID.
func (s *Service) SetTyping(ctx context.Context, id auth.Identity, userID int64, isTyping bool) error {
	sig := typing.Signal{TenantID: id.TenantID, IsTyping: isTyping, FromAdmin: id.IsAdmin, UpdatedAt: s.now()}
	if id.IsAdmin {
		if _, err := adminConversation(ctx, s.store, id, userID); err != nil {
			return err
		}
	} else {
		userID = id.UserID
	}
	if u, err := s.store.GetUser(ctx, id.UserID); err == nil {
		sig.Name = u.Name
	} else if apperr.KindOf(err) != apperr.NotFound {
		return err
	}

	if err := s.typing.Set(ctx, userID, sig); err != nil {
		return apperr.Wrap(apperr.ServerFault, "set typing", err)
	}
	s.publish(chat.EventTyping, models.Conversation{UserID: userID, TenantID: id.TenantID}, sig)
	return nil
}

// TypingFor returns the signal of one conversation; ok is false when none was ever set.
func (s *Service) TypingFor(ctx context.Context, viewer auth.Identity, userID int64) (typing.Signal, bool, error) {
	if !viewer.IsAdmin {
		userID = viewer.UserID
	} else if _, err := adminConversation(ctx, s.store, viewer, userID); err != nil {
		return typing.Signal{}, false, err
	}
	all, err := s.typing.All(ctx, viewer.TenantID)
	if err != nil {
		return typing.Signal{}, false, apperr.Wrap(apperr.ServerFault, "read typing", err)
	}
	sig, ok := all[userID]
	return sig, ok, nil
}

// Typing returns every signal of the admin's tenant keyed by conversation.
func (s *Service) Typing(ctx context.Context, admin auth.Identity) (map[int64]typing.Signal, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	all, err := s.typing.All(ctx, admin.TenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ServerFault, "read typing", err)
	}
	return all, nil
}
