package models

import (
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
)

type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ReadOnly  bool      `json:"read_only"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           int64     `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone_number"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	IsBlocked    bool      `json:"is_blocked"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation is the support thread of one client, keyed by that client's user id.
// Zero LastMessageAt means the client never wrote; zero AdminLastReadAt means no admin view yet.
type Conversation struct {
	UserID          int64             `json:"user_id"`
	TenantID        string            `json:"tenant_id"`
	UserName        string            `json:"user_name"`
	Phone           string            `json:"phone_number,omitempty"`
	Status          chatstatus.Status `json:"status"`
	LastMessageAt   time.Time         `json:"last_message_at"`
	AdminLastReadAt time.Time         `json:"admin_last_read_at"`
	IsOnline        bool              `json:"is_online"`
	LastOnlineAt    time.Time         `json:"last_online_at"`
	IsBlocked       bool              `json:"is_blocked"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	FromAdmin bool      `json:"from_admin"`
	Text      string    `json:"text,omitempty"`
	Images    []string  `json:"images,omitempty"`
	Audio     string    `json:"audio,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is an uploaded file waiting to be validated and stored.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
