package messages

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/attachments"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
	"github.com/ageniuscoder/shopdesk/backend/internal/support"
	"github.com/ageniuscoder/shopdesk/backend/internal/utils"
)

type Service struct {
	Support *support.Service
	MaxSize int
}

// sendReq is accepted as JSON or as multipart form fields next to the files.
type sendReq struct {
	TenantID string `json:"tenant_id" form:"tenant_id"`
	Name     string `json:"name" form:"name" binding:"max=100"`
	Phone    string `json:"phone_number" form:"phone_number" binding:"max=32"`
	Text     string `json:"text" form:"text" binding:"max=4000"`
}

type typingReq struct {
	IsTyping bool `json:"is_typing"`
}

// Register mounts the client widget endpoints. Sending is public: a request without a bearer
// token registers the client from the body.
func Register(rg *gin.RouterGroup, svc *support.Service, jwtSecret string) {
	s := Service{Support: svc, MaxSize: attachments.MaxSize}

	rg.POST("/chat/messages", auth.OptionalJWT(jwtSecret), s.send)

	authed := rg.Group("/chat", auth.JWTMiddleware(jwtSecret))
	authed.GET("/messages", s.thread)
	authed.POST("/typing", s.typing)
	authed.GET("/typing", s.peerTyping)
	authed.POST("/ping", s.ping)
	authed.POST("/offline", s.offline)
}

func (s Service) send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBind(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(verrs))
			return
		}
		httpx.Fail(c, apperr.Invalid("invalid request body"))
		return
	}
	files, err := httpx.Attachments(c, s.MaxSize)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	in := support.ClientMessageInput{
		TenantID: req.TenantID, Name: req.Name, Phone: req.Phone, Text: req.Text, Files: files,
	}
	if id, ok := auth.IdentityFrom(c); ok {
		in.Identity = &id
	}
	res, err := s.Support.SendClientMessage(c.Request.Context(), in)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, res)
}

func (s Service) thread(c *gin.Context) {
	th, err := s.Support.Thread(c.Request.Context(), auth.MustIdentity(c), 0)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, th)
}

func (s Service) typing(c *gin.Context) {
	var req typingReq
	if !httpx.Bind(c, &req) {
		return
	}
	if err := s.Support.SetTyping(c.Request.Context(), auth.MustIdentity(c), 0, req.IsTyping); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"is_typing": req.IsTyping})
}

// peerTyping reports the signal on the caller's own thread, usually the admin typing a reply.
func (s Service) peerTyping(c *gin.Context) {
	sig, ok, err := s.Support.TypingFor(c.Request.Context(), auth.MustIdentity(c), 0)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if !ok {
		httpx.OK(c, gin.H{"is_typing": false})
		return
	}
	httpx.OK(c, sig)
}

func (s Service) ping(c *gin.Context) {
	if err := s.Support.Heartbeat(c.Request.Context(), auth.MustIdentity(c)); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"is_online": true})
}

func (s Service) offline(c *gin.Context) {
	if err := s.Support.Offline(c.Request.Context(), auth.MustIdentity(c)); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"is_online": false})
}
