package realtime

import (
	"log/slog"
	"sync"
)

// Envelope is the JSON frame pushed to connected clients. Clients ignore
// unrecognized types.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	EventNotificationNew     = "NOTIFICATION_NEW"
	EventNotificationRead    = "NOTIFICATION_READ"
	EventAllNotificationRead = "ALL_NOTIFICATIONS_READ"
	EventNotificationDeleted = "NOTIFICATION_DELETED"
)

// Connection is a live client channel. A user may hold many at once
// (multiple devices or tabs).
type Connection interface {
	WriteEnvelope(envelope Envelope) error
	Close() error
}

// Hub tracks every live connection per user. It holds no durable state:
// a process restart loses the map and reconnection rebuilds it.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[Connection]struct{}
}

// NewHub creates an empty connection hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[Connection]struct{}),
	}
}

// Register binds a connection to a user after a successful handshake.
func (h *Hub) Register(userID string, conn Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[userID] == nil {
		h.connections[userID] = make(map[Connection]struct{})
	}
	h.connections[userID][conn] = struct{}{}
	slog.Info("realtime connection registered", "user_id", userID, "connections", len(h.connections[userID]))
}

// Unregister drops a connection. Safe to call for a connection that was
// never registered or was already removed.
func (h *Hub) Unregister(userID string, conn Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.connections, userID)
	}
	slog.Info("realtime connection unregistered", "user_id", userID)
}

// SendToUser pushes an envelope to every live connection of the user and
// reports whether at least one connection received it. A user with no
// connections simply gets nothing; they will see the state on next fetch.
func (h *Hub) SendToUser(userID string, envelope Envelope) bool {
	h.mu.RLock()
	conns := make([]Connection, 0, len(h.connections[userID]))
	for conn := range h.connections[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	delivered := false
	for _, conn := range conns {
		if err := conn.WriteEnvelope(envelope); err != nil {
			slog.Warn("failed to write to realtime connection", "user_id", userID, "error", err)
			continue
		}
		delivered = true
	}

	return delivered
}

// BroadcastToUsers pushes the envelope to each listed user.
func (h *Hub) BroadcastToUsers(userIDs []string, envelope Envelope) {
	for _, userID := range userIDs {
		h.SendToUser(userID, envelope)
	}
}

// ConnectionCount reports the number of live connections for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}
