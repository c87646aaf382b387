package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
)

type ctxKey string //these two lines  ensures safe storage/retrieval in context.Context.
const CtxIdentity ctxKey = "identity"

// BearerToken reads the token from the Authorization header, falling back to ?token= for websockets.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

func JWTMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c)
		if tok == "" {
			httpx.Abort(c, apperr.New(apperr.Unauthorized, "missing bearer token"))
			return
		}

		claims, err := ParseToken(secret, tok)
		if err != nil {
			httpx.Abort(c, apperr.New(apperr.Unauthorized, "invalid token"))
			return
		}

		c.Set(string(CtxIdentity), claims.Identity())
		c.Next()
	}
}

// OptionalJWT sets the identity when a bearer token is present and lets anonymous requests through.
// A token that is present but invalid is still rejected.
func OptionalJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if BearerToken(c) == "" {
			c.Next()
			return
		}
		JWTMiddleware(secret)(c)
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := IdentityFrom(c); !ok || !id.IsAdmin {
			httpx.Abort(c, apperr.New(apperr.Forbidden, "admin access required"))
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(string(CtxIdentity))
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func MustIdentity(c *gin.Context) Identity {
	id, _ := IdentityFrom(c)
	return id
}
