package conversations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
	"github.com/ageniuscoder/shopdesk/backend/internal/presence"
	"github.com/ageniuscoder/shopdesk/backend/internal/receipts"
	"github.com/ageniuscoder/shopdesk/backend/internal/report"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage/sqlite"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage/sqlstore"
	"github.com/ageniuscoder/shopdesk/backend/internal/support"
	"github.com/ageniuscoder/shopdesk/backend/internal/tenancy"
	"github.com/ageniuscoder/shopdesk/backend/internal/typing"
)

const secret = "test-secret"

type fixture struct {
	r        *gin.Engine
	admin    string // shop-1
	other    string // shop-2
	demo     string // read-only tenant
	client   string
	clientID int64
}

func token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := auth.NewToken(secret, id, time.Hour)
	require.NoError(t, err)
	return tok
}

func setup(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Db.Close() })
	require.NoError(t, conn.Migrate())

	st := sqlstore.New(conn.Db, sqlstore.Question)
	var f fixture
	for _, tn := range []models.Tenant{{ID: "shop-1"}, {ID: "shop-2"}, {ID: "demo", ReadOnly: true}} {
		require.NoError(t, st.UpsertTenant(ctx, tn))
		a, err := st.CreateUser(ctx, models.User{TenantID: tn.ID, Name: "Admin " + tn.ID, Phone: "+12015550100", IsAdmin: true})
		require.NoError(t, err)
		tok := token(t, auth.Identity{UserID: a.ID, TenantID: tn.ID, IsAdmin: true})
		switch tn.ID {
		case "shop-1":
			f.admin = tok
		case "shop-2":
			f.other = tok
		default:
			f.demo = tok
		}
	}

	svc := support.New(st, presence.New(st, 0, nil), receipts.New(st, nil), typing.NewMemory(), nil, nil,
		support.Options{JWTSecret: secret})
	res, err := svc.SendClientMessage(ctx, support.ClientMessageInput{
		TenantID: "shop-1", Name: "Ana", Phone: "2015550130", Text: "is my order late?",
	})
	require.NoError(t, err)
	f.client, f.clientID = res.Token, res.Message.UserID

	f.r = gin.New()
	admin := f.r.Group("/api/admin", auth.JWTMiddleware(secret), auth.RequireAdmin())
	Register(admin, svc, tenancy.NewGuard(st))
	return f
}

func (f fixture) do(method, path, tok string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f fixture) path(suffix string) string {
	return fmt.Sprintf("/api/admin/conversations/%d%s", f.clientID, suffix)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestBoardAndFilters(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/api/admin/conversations", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	decode(t, w, &board)
	require.Len(t, board.Conversations, 1)
	assert.Equal(t, f.clientID, board.Conversations[0].UserID)

	w = f.do(http.MethodGet, "/api/admin/conversations?status=done,archived", f.admin, nil)
	decode(t, w, &board)
	assert.Empty(t, board.Conversations)

	w = f.do(http.MethodGet, "/api/admin/conversations?status=bogus", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/admin/conversations", f.client, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestThreadFetchRecordsRead(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, f.path("/messages"), f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var th support.Thread
	decode(t, w, &th)
	assert.Len(t, th.Messages, 1)
	assert.Equal(t, "waiting", string(th.Conversation.Status))
	assert.False(t, th.Conversation.AdminLastReadAt.IsZero())

	w = f.do(http.MethodGet, f.path(""), f.other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodGet, "/api/admin/conversations/abc", f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplyReadAndPatch(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, f.path("/messages"), f.admin, gin.H{"text": "on its way"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply support.AdminReplyResult
	decode(t, w, &reply)
	assert.True(t, reply.Message.FromAdmin)

	w = f.do(http.MethodPost, f.path("/read"), f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var read struct {
		Marked int64 `json:"marked"`
	}
	decode(t, w, &read)
	assert.EqualValues(t, 1, read.Marked)

	w = f.do(http.MethodPatch, f.path(""), f.admin, gin.H{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var conv models.Conversation
	decode(t, w, &conv)
	assert.Equal(t, "done", string(conv.Status))

	w = f.do(http.MethodPatch, f.path(""), f.admin, gin.H{"status": "missed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPatch, f.path(""), f.admin, gin.H{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlockUnblockAndDelete(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, f.path("/block"), f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var u models.User
	decode(t, w, &u)
	assert.True(t, u.IsBlocked)

	w = f.do(http.MethodPost, f.path("/unblock"), f.other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodDelete, f.path(""), f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, f.path(""), f.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, f.path("/unblock"), f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &u)
	assert.False(t, u.IsBlocked)
}

func TestReadOnlyTenantCannotWrite(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/api/admin/conversations", f.demo, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodPost, "/api/admin/typing", f.demo, gin.H{"user_id": f.clientID, "is_typing": true})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(http.MethodPatch, f.path(""), f.demo, gin.H{"status": "done"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTyping(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, "/api/admin/typing", f.admin, gin.H{"user_id": f.clientID, "is_typing": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/api/admin/typing", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Typing map[string]typing.Signal `json:"typing"`
	}
	decode(t, w, &body)
	sig, ok := body.Typing[fmt.Sprint(f.clientID)]
	require.True(t, ok)
	assert.True(t, sig.IsTyping)
	assert.True(t, sig.FromAdmin)

	w = f.do(http.MethodPost, "/api/admin/typing", f.admin, gin.H{"is_typing": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/api/admin/conversations/export", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "shop-1-conversations.xlsx")

	x, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows(report.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, fmt.Sprint(f.clientID), rows[1][0])
}
