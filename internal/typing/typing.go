// Package typing holds the ephemeral "is typing" indicator for each conversation.
// Signals are keyed by the conversation's client user id and never expire on their own.
package typing

import (
	"context"
	"time"
)

type Signal struct {
	TenantID  string    `json:"tenant_id"`
	IsTyping  bool      `json:"is_typing"`
	Name      string    `json:"name"`
	FromAdmin bool      `json:"from_admin"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	// Set overwrites the signal for userID; the last writer wins.
	Set(ctx context.Context, userID int64, s Signal) error
	// ClearOnSend forces IsTyping=false on an existing signal. Missing signals stay missing.
	ClearOnSend(ctx context.Context, userID int64, at time.Time) error
	All(ctx context.Context, tenantID string) (map[int64]Signal, error)
}
