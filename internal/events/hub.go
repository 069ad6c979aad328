// Package events fans engine events out to live per-player watchers.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// DefaultBuffer is the per-subscriber frame buffer
const DefaultBuffer = 32

// Frame is one event as sent to a watcher
type Frame struct {
	Type       string          `json:"type"`
	PlayerID   string          `json:"player_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Subscription receives a player's frames until closed
type Subscription struct {
	C        <-chan Frame
	ch       chan Frame
	playerID string
	hub      *Hub
	once     sync.Once
}

// Close detaches the subscription and closes its channel
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub routes events to subscribers by player. A subscriber that falls behind
// loses frames instead of blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewHub creates a hub with the default buffer size
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		logger: slog.Default(),
	}
}

// SetLogger sets the hub's logger
func (h *Hub) SetLogger(l *slog.Logger) {
	h.logger = l
}

// Attach subscribes the hub to every event the dispatcher publishes
func (h *Hub) Attach(d *domain.EventDispatcher) {
	d.SubscribeAll(h.Publish)
}

// Subscribe registers a watcher for one player
func (h *Hub) Subscribe(playerID string) *Subscription {
	ch := make(chan Frame, h.buffer)
	s := &Subscription{C: ch, ch: ch, playerID: playerID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[playerID] == nil {
		h.subs[playerID] = make(map[*Subscription]struct{})
	}
	h.subs[playerID][s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.playerID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.playerID)
		}
	}
	close(s.ch)
}

// Publish delivers an event to the player's subscribers
func (h *Hub) Publish(e domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subs[e.PlayerID()]
	if len(set) == 0 {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("failed to encode event frame", "type", e.EventType(), "error", err)
		return
	}
	frame := Frame{Type: e.EventType(), PlayerID: e.PlayerID(), OccurredAt: e.OccurredAt(), Data: data}

	for s := range set {
		select {
		case s.ch <- frame:
		default:
			h.dropped.Add(1)
			h.logger.Debug("dropping event frame for slow watcher", "player_id", e.PlayerID(), "type", e.EventType())
		}
	}
}

// Subscribers returns the number of watchers for a player
func (h *Hub) Subscribers(playerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[playerID])
}

// Dropped returns how many frames were discarded for slow watchers
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
