package users

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/utils"
)

type Store interface {
	GetTenant(ctx context.Context, id string) (models.Tenant, error)
	UpsertTenant(ctx context.Context, t models.Tenant) error
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	FindUserByPhone(ctx context.Context, tenantID, phone string, admin bool) (models.User, error)
}

type Service struct {
	Store       Store
	JWTSecret   string
	JWTTTL      time.Duration
	PhoneRegion string
}

type loginReq struct {
	TenantID string `json:"tenant_id" binding:"required"`
	Phone    string `json:"phone_number" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func RegisterPublic(rg *gin.RouterGroup, s Service) {
	rg.POST("/auth/admin/login", s.login)
}

var errBadCredentials = apperr.New(apperr.Unauthorized, "invalid credentials")

func (s Service) login(c *gin.Context) {
	var req loginReq
	if !httpx.Bind(c, &req) {
		return
	}

	phone, err := utils.NormalizePhone(req.Phone, s.PhoneRegion)
	if err != nil {
		httpx.Fail(c, errBadCredentials)
		return
	}
	u, err := s.Store.FindUserByPhone(c.Request.Context(), req.TenantID, phone, true)
	if apperr.KindOf(err) == apperr.NotFound {
		httpx.Fail(c, errBadCredentials)
		return
	}
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		httpx.Fail(c, errBadCredentials)
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, auth.Identity{UserID: u.ID, TenantID: u.TenantID, IsAdmin: true}, s.JWTTTL)
	if err != nil {
		httpx.Fail(c, apperr.Wrap(apperr.ServerFault, "issue token", err))
		return
	}
	httpx.OK(c, gin.H{"token": tok, "user": u})
}

// AdminInput describes an admin created from the command line.
type AdminInput struct {
	TenantID   string
	TenantName string
	Name       string
	Phone      string
	Password   string
}

// CreateAdmin creates the tenant when it does not exist yet and adds an admin to it.
func CreateAdmin(ctx context.Context, st Store, in AdminInput, region string) (models.User, error) {
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.Name) == "" {
		return models.User{}, apperr.Invalid("tenant and name are required")
	}
	if len(in.Password) < 8 {
		return models.User{}, apperr.Invalid("password must be at least 8 characters")
	}
	phone, err := utils.NormalizePhone(in.Phone, region)
	if err != nil {
		return models.User{}, err
	}

	_, err = st.GetTenant(ctx, in.TenantID)
	if apperr.KindOf(err) == apperr.NotFound {
		name := in.TenantName
		if name == "" {
			name = in.TenantID
		}
		err = st.UpsertTenant(ctx, models.Tenant{ID: in.TenantID, Name: name, CreatedAt: time.Now().UTC()})
	}
	if err != nil {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.ServerFault, "hash password", err)
	}
	return st.CreateUser(ctx, models.User{
		TenantID: in.TenantID, Name: strings.TrimSpace(in.Name), Phone: phone,
		PasswordHash: hash, IsAdmin: true, CreatedAt: time.Now().UTC(),
	})
}
