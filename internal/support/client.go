package support

import (
	"context"
	"strings"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/attachments"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/chat"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage"
	"github.com/ageniuscoder/shopdesk/backend/internal/utils"
)

// ClientMessageInput carries either a verified identity or the registration fields.
type ClientMessageInput struct {
	Identity *auth.Identity
	TenantID string
	Name     string
	Phone    string
	Text     string
	Files    []models.Attachment
}

type ClientMessageResult struct {
	Message      models.Message         `json:"message"`
	Conversation models.Conversation    `json:"conversation"`
	Token        string                 `json:"token,omitempty"`
	Rejected     []attachments.Rejected `json:"rejected,omitempty"`
}

// SendClientMessage records a client message: the thread goes back to new, last_message_at moves
// forward and the client counts as online. Blocked clients get Forbidden and nothing is written.
func (s *Service) SendClientMessage(ctx context.Context, in ClientMessageInput) (ClientMessageResult, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Files) == 0 {
		return ClientMessageResult{}, apperr.Invalid("message needs text or an attachment")
	}

	tenantID := in.TenantID
	if in.Identity != nil {
		if in.Identity.IsAdmin {
			return ClientMessageResult{}, apperr.New(apperr.Forbidden, "admins reply through the admin inbox")
		}
		tenantID = in.Identity.TenantID
	} else if err := validateRegistration(in); err != nil {
		return ClientMessageResult{}, err
	}
	if _, err := s.guard.Writable(ctx, tenantID); err != nil {
		return ClientMessageResult{}, err
	}

	user, register, err := s.lookupClient(ctx, in)
	if err != nil {
		return ClientMessageResult{}, err
	}
	if user.IsBlocked {
		return ClientMessageResult{}, apperr.New(apperr.Forbidden, "user is blocked")
	}

	text, media, err := s.content(ctx, in.Text, in.Files)
	if err != nil {
		return ClientMessageResult{}, err
	}

	var token string
	if register {
		if user, token, err = s.registerClient(ctx, user); err != nil {
			s.discard(ctx, media)
			return ClientMessageResult{}, err
		}
	}

	now := s.now()
	var res ClientMessageResult
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		c, err := tx.EnsureConversation(ctx, user.ID, user.TenantID, now)
		if err != nil {
			return err
		}
		if c.IsBlocked {
			return apperr.New(apperr.Forbidden, "user is blocked")
		}
		msg, err := tx.InsertMessage(ctx, models.Message{
			UserID: user.ID, TenantID: user.TenantID, Text: text,
			Images: media.Images, Audio: media.Audio, CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if c, err = s.receipts.With(tx).RecordInbound(ctx, c, now); err != nil {
			return err
		}
		if err := s.presence.With(tx).Heartbeat(ctx, user.ID); err != nil {
			return err
		}
		c.IsOnline, c.LastOnlineAt = true, now
		res.Message, res.Conversation = msg, c
		return nil
	})
	if err != nil {
		s.discard(ctx, media)
		return ClientMessageResult{}, err
	}

	res.Token = token
	res.Rejected = media.Rejected
	s.clearTyping(ctx, user.ID)
	s.publish(chat.EventMessage, res.Conversation, map[string]any{"message": res.Message, "status": res.Conversation.Status})
	return res, nil
}

func validateRegistration(in ClientMessageInput) error {
	var missing []string
	if strings.TrimSpace(in.TenantID) == "" {
		missing = append(missing, "tenant_id")
	}
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Phone) == "" {
		missing = append(missing, "phone_number")
	}
	if len(missing) > 0 {
		return apperr.Invalid("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// lookupClient returns the sender. Without an identity the sender is found by phone; an unknown
// phone yields an unsaved user and register=true so nothing is written before the message is valid.
func (s *Service) lookupClient(ctx context.Context, in ClientMessageInput) (models.User, bool, error) {
	if in.Identity != nil {
		u, err := s.store.GetUser(ctx, in.Identity.UserID)
		if apperr.KindOf(err) == apperr.NotFound || (err == nil && u.TenantID != in.Identity.TenantID) {
			return models.User{}, false, apperr.New(apperr.Unauthorized, "unknown user")
		}
		return u, false, err
	}

	phone, err := utils.NormalizePhone(in.Phone, s.opts.PhoneRegion)
	if err != nil {
		return models.User{}, false, err
	}
	u, err := s.store.FindUserByPhone(ctx, in.TenantID, phone, false)
	if apperr.KindOf(err) == apperr.NotFound {
		return models.User{TenantID: in.TenantID, Name: strings.TrimSpace(in.Name), Phone: phone}, true, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	return u, true, nil
}

// registerClient saves u when it is new and issues a client token.
func (s *Service) registerClient(ctx context.Context, u models.User) (models.User, string, error) {
	if u.ID == 0 {
		u.CreatedAt = s.now()
		created, err := s.store.CreateUser(ctx, u)
		if err != nil {
			// lost a race with a concurrent registration of the same phone
			existing, ferr := s.store.FindUserByPhone(ctx, u.TenantID, u.Phone, false)
			if ferr != nil {
				return models.User{}, "", err
			}
			if existing.IsBlocked {
				return models.User{}, "", apperr.New(apperr.Forbidden, "user is blocked")
			}
			created = existing
		}
		u = created
	}

	token, err := auth.NewToken(s.opts.JWTSecret, auth.Identity{UserID: u.ID, TenantID: u.TenantID}, s.opts.TokenTTL)
	if err != nil {
		return models.User{}, "", apperr.Wrap(apperr.ServerFault, "issue token", err)
	}
	return u, token, nil
}

type Thread struct {
	Conversation models.Conversation `json:"conversation"`
	Messages     []models.Message    `json:"messages"`
}

// Thread returns a conversation with its messages. Clients only see their own thread and the fetch
// counts as a heartbeat; an admin fetch records a read receipt.
func (s *Service) Thread(ctx context.Context, viewer auth.Identity, userID int64) (Thread, error) {
	if viewer.IsAdmin {
		return s.adminThread(ctx, viewer, userID)
	}
	if userID != 0 && userID != viewer.UserID {
		return Thread{}, apperr.New(apperr.Forbidden, "clients can only read their own thread")
	}

	if err := s.Heartbeat(ctx, viewer); err != nil {
		return Thread{}, err
	}
	c, err := s.store.GetConversation(ctx, viewer.UserID)
	if apperr.KindOf(err) == apperr.NotFound {
		return Thread{Conversation: models.Conversation{UserID: viewer.UserID, TenantID: viewer.TenantID}, Messages: []models.Message{}}, nil
	}
	if err != nil {
		return Thread{}, err
	}
	msgs, err := s.store.ListMessages(ctx, viewer.UserID)
	if err != nil {
		return Thread{}, err
	}
	return Thread{Conversation: c, Messages: msgs}, nil
}

func (s *Service) adminThread(ctx context.Context, admin auth.Identity, userID int64) (Thread, error) {
	c, err := adminConversation(ctx, s.store, admin, userID)
	if err != nil {
		return Thread{}, err
	}
	msgs, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return Thread{}, err
	}
	prev := c.Status
	if c, err = s.receipts.RecordAdminRead(ctx, c); err != nil {
		return Thread{}, err
	}
	if c.Status != prev {
		s.publish(chat.EventStatus, c, map[string]any{"status": c.Status, "previous": prev})
	}
	return Thread{Conversation: c, Messages: msgs}, nil
}
