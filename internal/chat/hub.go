package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}

	// userID -> set of client connections (handles multi-tab/or mutlti device)
	clients map[int64]map[*Client]bool
	// tenantID -> admin connections
	admins map[string]map[*Client]bool

	log *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		clients:    make(map[int64]map[*Client]bool),
		admins:     make(map[string]map[*Client]bool),
		log:        logger,
	}
}

// Publish queues ev for delivery. It never blocks a request; a full queue drops the event.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("[hub] dropped event, queue full", "type", ev.Type, "user_id", ev.UserID)
	}
}

// Register adds c to the hub. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c. After the hub stopped every Send channel is already closed.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			set := h.setFor(client)
			set[client] = true
			h.log.Debug("[hub] client connected", "conn_id", client.ID, "user_id", client.Identity.UserID)
		case client := <-h.unregister:
			h.remove(client)
		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) setFor(c *Client) map[*Client]bool {
	if c.Identity.IsAdmin {
		if h.admins[c.Identity.TenantID] == nil {
			h.admins[c.Identity.TenantID] = make(map[*Client]bool)
		}
		return h.admins[c.Identity.TenantID]
	}
	if h.clients[c.Identity.UserID] == nil {
		h.clients[c.Identity.UserID] = make(map[*Client]bool)
	}
	return h.clients[c.Identity.UserID]
}

func (h *Hub) remove(c *Client) {
	var set map[*Client]bool
	if c.Identity.IsAdmin {
		set = h.admins[c.Identity.TenantID]
	} else {
		set = h.clients[c.Identity.UserID]
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		if c.Identity.IsAdmin {
			delete(h.admins, c.Identity.TenantID)
		} else {
			delete(h.clients, c.Identity.UserID)
		}
	}
}

func (h *Hub) deliver(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("[hub] failed to marshal event", "type", ev.Type, "error", err)
		return
	}
	h.send(h.clients[ev.UserID], payload)
	h.send(h.admins[ev.TenantID], payload)
}

func (h *Hub) send(set map[*Client]bool, payload []byte) {
	for client := range set {
		select {
		case client.Send <- payload:
		default:
			// slow/broken client → drop
			h.log.Warn("[hub] dropped slow client", "conn_id", client.ID, "user_id", client.Identity.UserID)
			h.remove(client)
		}
	}
}

func (h *Hub) closeAll() {
	for _, set := range h.clients {
		for c := range set {
			h.remove(c)
		}
	}
	for _, set := range h.admins {
		for c := range set {
			h.remove(c)
		}
	}
}
