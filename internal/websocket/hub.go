package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event kinds broadcast by the engine.
const (
	KindProgressUpdated    = "progress_updated"
	KindDayFinalized       = "day_finalized"
	KindLedgerFinalized    = "ledger_finalized"
	KindMilestoneUnlocked  = "milestone_unlocked"
	KindOpportunityClaimed = "opportunity_claimed"
)

// Event is a real-time engine notification pushed to connected screens
// (dashboard, leaderboard, reward selection) so they do not poll.
type Event struct {
	Kind     string         `json:"kind"`
	PlayerID int64          `json:"player_id,omitempty"`
	Day      string         `json:"day,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
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

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop the event rather than block
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
