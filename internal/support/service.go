// Package support implements the operations exposed to the client widget and the admin inbox.
// Handlers stay thin; every status, receipt and presence change goes through here.
package support

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/attachments"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/chat"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/presence"
	"github.com/ageniuscoder/shopdesk/backend/internal/receipts"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage"
	"github.com/ageniuscoder/shopdesk/backend/internal/tenancy"
	"github.com/ageniuscoder/shopdesk/backend/internal/typing"
)

type Publisher interface {
	Publish(ev chat.Event)
}

type Media interface {
	Process(ctx context.Context, files []models.Attachment) (attachments.Result, error)
	Discard(ctx context.Context, res attachments.Result) error
}

type Options struct {
	JWTSecret   string
	TokenTTL    time.Duration
	PhoneRegion string
	Now         func() time.Time
	Logger      *slog.Logger
}

type Service struct {
	store    storage.Store
	presence *presence.Tracker
	receipts *receipts.Tracker
	typing   typing.Store
	media    Media
	guard    *tenancy.Guard
	pub      Publisher
	opts     Options
}

var _ chat.Inbound = (*Service)(nil)

type nopPublisher struct{}

func (nopPublisher) Publish(chat.Event) {}

func New(store storage.Store, pt *presence.Tracker, rt *receipts.Tracker, ts typing.Store, media Media, pub Publisher, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = "US"
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Service{
		store:    store,
		presence: pt,
		receipts: rt,
		typing:   ts,
		media:    media,
		guard:    tenancy.NewGuard(store),
		pub:      pub,
		opts:     opts,
	}
}

func (s *Service) now() time.Time { return s.opts.Now().UTC() }

func (s *Service) publish(typ string, c models.Conversation, payload any) {
	s.pub.Publish(chat.Event{Type: typ, TenantID: c.TenantID, UserID: c.UserID, Payload: payload, At: s.now()})
}

func requireAdmin(id auth.Identity) error {
	if !id.IsAdmin {
		return apperr.New(apperr.Forbidden, "admin access required")
	}
	return nil
}

// adminConversation loads a conversation the admin's tenant owns. Other tenants' threads are NotFound.
func adminConversation(ctx context.Context, st storage.Store, admin auth.Identity, userID int64) (models.Conversation, error) {
	if userID <= 0 {
		return models.Conversation{}, apperr.Invalid("invalid user id")
	}
	c, err := st.GetConversation(ctx, userID)
	if err != nil {
		return models.Conversation{}, err
	}
	if c.TenantID != admin.TenantID {
		return models.Conversation{}, apperr.Missing("conversation")
	}
	return c, nil
}

// content trims the text and stores accepted attachments. A message needs text or at least one
// accepted attachment.
func (s *Service) content(ctx context.Context, text string, files []models.Attachment) (string, attachments.Result, error) {
	text = strings.TrimSpace(text)
	res := attachments.Result{Images: []string{}}
	if len(files) > 0 {
		if s.media == nil {
			return "", res, apperr.Invalid("attachments are not accepted")
		}
		var err error
		if res, err = s.media.Process(ctx, files); err != nil {
			return "", res, err
		}
	}
	if text == "" && res.Empty() {
		if len(res.Rejected) > 0 {
			return "", res, apperr.Invalid("no attachment accepted: %s", res.Rejected[0].Reason)
		}
		return "", res, apperr.Invalid("message needs text or an attachment")
	}
	return text, res, nil
}

// discard drops stored files whose message was never written.
func (s *Service) discard(ctx context.Context, res attachments.Result) {
	if s.media == nil || res.Empty() {
		return
	}
	if err := s.media.Discard(context.WithoutCancel(ctx), res); err != nil {
		s.opts.Logger.Warn("Failed to discard attachments", "error", err)
	}
}

func (s *Service) clearTyping(ctx context.Context, userID int64) {
	if err := s.typing.ClearOnSend(ctx, userID, s.now()); err != nil {
		s.opts.Logger.Warn("Failed to clear typing signal", "user_id", userID, "error", err)
	}
}
