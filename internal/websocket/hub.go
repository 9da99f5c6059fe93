package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Entities broadcast by the record handlers.
const (
	EntitySubmission = "submission"
	EntityResident   = "resident"
	EntityHousehold  = "household"
	EntityOfficial   = "official"
	EntityEvent      = "event"
	EntityOperator   = "operator"
	EntitySettings   = "settings"
	EntityBackup     = "backup"
)

// Message represents a real-time change notification.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`

	// AdminOnly restricts delivery to admins plus Recipient, if set.
	AdminOnly bool  `json:"-"`
	Recipient int64 `json:"-"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// ForAdmins marks the message admin-only. A non-zero recipient also receives
// it, which is how a clerk hears about the review of their own submission.
func (m Message) ForAdmins(recipient int64) Message {
	m.AdminOnly = true
	m.Recipient = recipient
	return m
}

func (m Message) deliverTo(c *Client) bool {
	if !m.AdminOnly {
		return true
	}
	return c.admin || (m.Recipient != 0 && c.operatorID == m.Recipient)
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Disconnect drops every client of operatorID, closing their connections.
// It reports how many were dropped.
func (h *Hub) Disconnect(operatorID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		if c.operatorID == operatorID {
			delete(h.clients, c)
			close(c.send)
			n++
		}
	}
	return n
}

// Broadcast sends a message to every connected client allowed to see it.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !msg.deliverTo(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// buffer full, drop rather than block the request
			h.logger.Debug("dropped message", "type", msg.Type, "operator_id", c.operatorID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
