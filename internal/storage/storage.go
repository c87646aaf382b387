// Package storage declares the persistence contract shared by the sqlite and postgres backends.
package storage

import (
	"context"
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

type ConversationFilter struct {
	TenantID string
	Statuses []chatstatus.Status
}

type Store interface {
	// InTx runs fn against a store bound to one transaction. Nested calls reuse it.
	InTx(ctx context.Context, fn func(tx Store) error) error

	GetTenant(ctx context.Context, id string) (models.Tenant, error)
	UpsertTenant(ctx context.Context, t models.Tenant) error

	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	FindUserByPhone(ctx context.Context, tenantID, phone string, admin bool) (models.User, error)

	EnsureConversation(ctx context.Context, userID int64, tenantID string, at time.Time) (models.Conversation, error)
	GetConversation(ctx context.Context, userID int64) (models.Conversation, error)
	ListConversations(ctx context.Context, f ConversationFilter) ([]models.Conversation, error)
	// ListSweepCandidates returns open conversations of every tenant plus any conversation marked online.
	ListSweepCandidates(ctx context.Context) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, userID int64) error

	UpdateInbound(ctx context.Context, userID int64, at time.Time, status chatstatus.Status) error
	UpdateAdminRead(ctx context.Context, userID int64, at time.Time, status chatstatus.Status) error
	UpdateStatus(ctx context.Context, userID int64, status chatstatus.Status, at time.Time) error
	SetBlocked(ctx context.Context, userID int64, blocked bool) error

	SetOnline(ctx context.Context, userID int64, at time.Time) error
	SetOffline(ctx context.Context, userID int64) error
	ExpireOnline(ctx context.Context, userID int64, cutoff time.Time) (bool, error)

	HasAdminReplyAfter(ctx context.Context, userID int64, after time.Time) (bool, error)
	EscalateToMissed(ctx context.Context, snapshot models.Conversation, at time.Time) (bool, error)

	InsertMessage(ctx context.Context, m models.Message) (models.Message, error)
	ListMessages(ctx context.Context, userID int64) ([]models.Message, error)
	MarkClientMessagesRead(ctx context.Context, userID int64) (int64, error)
}
