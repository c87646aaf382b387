package conversations

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/attachments"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
	"github.com/ageniuscoder/shopdesk/backend/internal/report"
	"github.com/ageniuscoder/shopdesk/backend/internal/support"
	"github.com/ageniuscoder/shopdesk/backend/internal/tenancy"
)

type Service struct {
	Support *support.Service
	MaxSize int
}

type statusReq struct {
	Status string `json:"status" binding:"required,oneof=new waiting active missed done archived"`
}

type replyReq struct {
	Text string `json:"text" form:"text" binding:"max=4000"`
}

type typingReq struct {
	UserID   int64 `json:"user_id" binding:"required,min=1"`
	IsTyping bool  `json:"is_typing"`
}

// Register mounts the admin inbox. rg must already run JWTMiddleware and RequireAdmin;
// mutating routes additionally pass the tenant write guard.
func Register(rg *gin.RouterGroup, svc *support.Service, guard *tenancy.Guard) {
	s := Service{Support: svc, MaxSize: attachments.MaxSize}

	rg.GET("/conversations", s.list)
	rg.GET("/conversations/export", s.export)
	rg.GET("/conversations/:userId", s.get)
	rg.GET("/conversations/:userId/messages", s.thread)
	rg.GET("/typing", s.allTyping)

	w := rg.Group("", guard.WriteGuard())
	w.PATCH("/conversations/:userId", s.patch)
	w.DELETE("/conversations/:userId", s.remove)
	w.POST("/conversations/:userId/messages", s.reply)
	w.POST("/conversations/:userId/read", s.markRead)
	w.POST("/conversations/:userId/block", s.block(true))
	w.POST("/conversations/:userId/unblock", s.block(false))
	w.POST("/typing", s.typing)
}

// statuses accepts ?status=new,missed as well as repeated ?status= parameters.
func statuses(c *gin.Context) []string {
	var out []string
	for _, raw := range c.QueryArray("status") {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (s Service) list(c *gin.Context) {
	list, err := s.Support.Conversations(c.Request.Context(), auth.MustIdentity(c), statuses(c))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"conversations": list})
}

func (s Service) export(c *gin.Context) {
	id := auth.MustIdentity(c)
	list, err := s.Support.Conversations(c.Request.Context(), id, statuses(c))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	data, err := report.Conversations(list)
	if err != nil {
		httpx.Fail(c, apperr.Wrap(apperr.ServerFault, "render export", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-conversations.xlsx"`, id.TenantID))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s Service) get(c *gin.Context) {
	uid, ok := httpx.UserIDParam(c)
	if !ok {
		return
	}
	conv, err := s.Support.Conversation(c.Request.Context(), auth.MustIdentity(c), uid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, conv)
}

// thread returns the messages and records that the admin has seen them.
func (s Service) thread(c *gin.Context) {
	uid, ok := httpx.UserIDParam(c)
	if !ok {
		return
	}
	th, err := s.Support.Thread(c.Request.Context(), auth.MustIdentity(c), uid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, th)
}

func (s Service) patch(c *gin.Context) {
	uid, ok := httpx.UserIDParam(c)
	if !ok {
		return
	}
	var req statusReq
	if !httpx.Bind(c, &req) {
		return
	}
	conv, err := s.Support.PatchStatus(c.Request.Context(), auth.MustIdentity(c), uid, req.Status)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, conv)
}

func (s Service) remove(c *gin.Context) {
	uid, ok := httpx.UserIDParam(c)
	if !ok {
		return
	}
	if err := s.Support.DeleteThread(c.Request.Context(), auth.MustIdentity(c), uid); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"deleted": true, "user_id": uid})
}

func (s Service) reply(c *gin.Context) {
	uid, ok := httpx.UserIDParam(c)
	if !ok {
		return
	}
	var req replyReq
	if err := c.ShouldBind(&req); err != nil {
		httpx.Fail(c, apperr.Invalid("invalid request body"))
		return
	}
	files, err := httpx.Attachments(c, s.MaxSize)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	res, err := s.Support.SendAdminReply(c.Request.Context(), auth.MustIdentity(c), uid,
		support.AdminReplyInput{Text: req.Text, Files: files})
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, res)
}

func (s Service) markRead(c *gin.Context) {
	uid, ok := httpx.UserIDParam(c)
	if !ok {
		return
	}
	n, conv, err := s.Support.MarkRead(c.Request.Context(), auth.MustIdentity(c), uid)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"marked": n, "conversation": conv})
}

func (s Service) block(blocked bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := httpx.UserIDParam(c)
		if !ok {
			return
		}
		u, err := s.Support.SetBlocked(c.Request.Context(), auth.MustIdentity(c), uid, blocked)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		httpx.OK(c, u)
	}
}

func (s Service) typing(c *gin.Context) {
	var req typingReq
	if !httpx.Bind(c, &req) {
		return
	}
	if err := s.Support.SetTyping(c.Request.Context(), auth.MustIdentity(c), req.UserID, req.IsTyping); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"user_id": req.UserID, "is_typing": req.IsTyping})
}

func (s Service) allTyping(c *gin.Context) {
	all, err := s.Support.Typing(c.Request.Context(), auth.MustIdentity(c))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"typing": all})
}
