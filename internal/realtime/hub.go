package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub keeps table -> set of websocket clients and forwards changes to the
// clients watching the changed table.
type Hub struct {
	// table -> map[clientID]*Client
	rooms   map[string]map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	allowed func(table string) bool
}

// NewHub creates a hub. allowed limits which tables clients may watch;
// nil allows any.
func NewHub(logger *zap.Logger, allowed func(table string) bool) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
		allowed: allowed,
	}
}

// Join adds a client to a table room.
func (h *Hub) Join(c *Client, table string) bool {
	if h.allowed != nil && !h.allowed(table) {
		return false
	}
	h.mu.Lock()
	if h.rooms[table] == nil {
		h.rooms[table] = make(map[string]*Client)
	}
	h.rooms[table][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined table", zap.String("client_id", c.ID), zap.String("table", table))
	return true
}

// Leave removes a client from a table room.
func (h *Hub) Leave(c *Client, table string) {
	h.mu.Lock()
	if m, ok := h.rooms[table]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, table)
		}
	}
	h.mu.Unlock()
}

// Unregister removes a client from every room.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for table, m := range h.rooms {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, table)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left", zap.String("client_id", c.ID))
}

// Broadcast sends a change to every client watching its table. Public
// clients get the change without private columns. Slow clients with a full
// buffer miss the message.
func (h *Hub) Broadcast(change Change) {
	full, ok := h.encode(change)
	if !ok {
		return
	}
	public, ok := h.encode(change.Public())
	if !ok {
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[change.Table]))
	for _, c := range h.rooms[change.Table] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.canSee(change) {
			continue
		}
		msg := public
		if c.Privileged {
			msg = full
		}
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

func (h *Hub) encode(change Change) (WSMessage, bool) {
	data, err := json.Marshal(change)
	if err != nil {
		h.logger.Warn("encode change", zap.String("table", change.Table), zap.Error(err))
		return WSMessage{}, false
	}
	return WSMessage{Event: "change", Data: data}, true
}

// ClientCount returns the number of clients watching table.
func (h *Hub) ClientCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[table])
}
