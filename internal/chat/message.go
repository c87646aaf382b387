package chat

import "time"

const (
	EventMessage       = "message"
	EventTyping        = "typing"
	EventPresence      = "presence"
	EventStatus        = "status"
	EventRead          = "read_receipt"
	EventThreadDeleted = "thread_deleted"
)

// Event is pushed to the client owning the conversation and to every admin of its tenant.
type Event struct {
	Type     string    `json:"type"`
	TenantID string    `json:"tenant_id"`
	UserID   int64     `json:"user_id"` // conversation
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// inboundFrame is what clients may send over the socket.
type inboundFrame struct {
	Type     string `json:"type"` // "ping" or "typing"
	UserID   int64  `json:"user_id,omitempty"`
	IsTyping bool   `json:"is_typing"`
}
