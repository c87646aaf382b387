package profile

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

type Store interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetTenant(ctx context.Context, id string) (models.Tenant, error)
	GetConversation(ctx context.Context, userID int64) (models.Conversation, error)
}

type Service struct {
	Store Store
}

func Register(rg *gin.RouterGroup, st Store) {
	s := Service{Store: st}
	rg.GET("/me", s.getMe)
}

// getMe returns the caller with its tenant; clients also get their conversation once it exists.
func (s Service) getMe(c *gin.Context) {
	id := auth.MustIdentity(c)
	ctx := c.Request.Context()

	u, err := s.Store.GetUser(ctx, id.UserID)
	if apperr.KindOf(err) == apperr.NotFound {
		httpx.Fail(c, apperr.New(apperr.Unauthorized, "unknown user"))
		return
	}
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	t, err := s.Store.GetTenant(ctx, u.TenantID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	out := gin.H{"user": u, "tenant": t}
	if !u.IsAdmin {
		conv, err := s.Store.GetConversation(ctx, u.ID)
		switch {
		case err == nil:
			out["conversation"] = conv
		case apperr.KindOf(err) != apperr.NotFound:
			httpx.Fail(c, err)
			return
		}
	}
	httpx.OK(c, out)
}
