// Package tenancy resolves tenants and blocks writes for read-only (demo) shops.
package tenancy

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

type Store interface {
	GetTenant(ctx context.Context, id string) (models.Tenant, error)
}

type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Writable returns the tenant, or Forbidden when it only allows reads.
func (g *Guard) Writable(ctx context.Context, tenantID string) (models.Tenant, error) {
	if tenantID == "" {
		return models.Tenant{}, apperr.Invalid("tenant_id is required")
	}
	t, err := g.store.GetTenant(ctx, tenantID)
	if err != nil {
		return models.Tenant{}, err
	}
	if t.ReadOnly {
		return t, apperr.New(apperr.Forbidden, "tenant is read-only")
	}
	return t, nil
}

// WriteGuard rejects mutating requests from identities whose tenant is read-only.
func (g *Guard) WriteGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c)
		if !ok {
			c.Next()
			return
		}
		if _, err := g.Writable(c.Request.Context(), id.TenantID); err != nil {
			httpx.Abort(c, err)
			return
		}
		c.Next()
	}
}
