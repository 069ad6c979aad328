package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event type names
const (
	EventXPAwarded          = "xp.awarded"
	EventLevelUp            = "level.up"
	EventBadgeUnlocked      = "badge.unlocked"
	EventChallengeEvaluated = "challenge.evaluated"
	EventDebuggerSubmitted  = "debugger.submitted"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// PlayerID returns the player whose state produced this event
	PlayerID() string
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Player    string    `json:"player_id"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType, playerID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: at,
		Player:    playerID,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) PlayerID() string      { return e.Player }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers
func (d *EventDispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.handlers[event.EventType()] {
		h(event)
	}
	for _, h := range d.allHandlers {
		h(event)
	}
}

// PublishAll dispatches multiple events in order
func (d *EventDispatcher) PublishAll(events []Event) {
	for _, event := range events {
		d.Publish(event)
	}
}

// -----------------------------------------------------------------------------
// Progression Events
// -----------------------------------------------------------------------------

// XPAwardedEvent is published after XP is credited to a pool
type XPAwardedEvent struct {
	BaseEvent
	Pool      string `json:"pool"`
	Amount    int    `json:"amount"`
	PoolTotal int    `json:"pool_total"`
	TotalXP   int    `json:"total_xp"`
}

// NewXPAwardedEvent creates a new XP awarded event
func NewXPAwardedEvent(playerID, pool string, amount, poolTotal, totalXP int, at time.Time) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, playerID, at),
		Pool:      pool,
		Amount:    amount,
		PoolTotal: poolTotal,
		TotalXP:   totalXP,
	}
}

// LevelUpEvent is published when total XP crosses a level threshold
type LevelUpEvent struct {
	BaseEvent
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

// NewLevelUpEvent creates a new level up event
func NewLevelUpEvent(playerID string, oldLevel, newLevel int, title string, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, playerID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Title:     title,
	}
}

// BadgeUnlockedEvent is published once per badge, on the evaluation that earns it
type BadgeUnlockedEvent struct {
	BaseEvent
	BadgeID  string `json:"badge_id"`
	Name     string `json:"name"`
	XPReward int    `json:"xp_reward"`
}

// NewBadgeUnlockedEvent creates a new badge unlocked event
func NewBadgeUnlockedEvent(playerID string, unlock BadgeUnlock) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, playerID, unlock.EarnedAt),
		BadgeID:   unlock.BadgeID,
		Name:      unlock.Name,
		XPReward:  unlock.XPReward,
	}
}

// -----------------------------------------------------------------------------
// Minigame Events
// -----------------------------------------------------------------------------

// ChallengeEvaluatedEvent is published for every scored challenge submission
type ChallengeEvaluatedEvent struct {
	BaseEvent
	ChallengeID string        `json:"challenge_id"`
	Mode        ChallengeMode `json:"mode"`
	Attempt     int           `json:"attempt"`
	Passed      bool          `json:"passed"`
	Score       int           `json:"score"`
	Stars       int           `json:"stars"`
	XPCredited  int           `json:"xp_credited"`
}

// NewChallengeEvaluatedEvent creates a new challenge evaluated event
func NewChallengeEvaluatedEvent(playerID string, result *ChallengeResult, xpCredited int) ChallengeEvaluatedEvent {
	return ChallengeEvaluatedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeEvaluated, playerID, result.EvaluatedAt),
		ChallengeID: result.ChallengeID,
		Mode:        result.Mode,
		Attempt:     result.Attempt,
		Passed:      result.Passed,
		Score:       result.Score,
		Stars:       result.Stars,
		XPCredited:  xpCredited,
	}
}

// DebuggerSubmittedEvent is published when a debugger level is submitted
type DebuggerSubmittedEvent struct {
	BaseEvent
	Level      int  `json:"level"`
	Score      int  `json:"score"`
	Stars      int  `json:"stars"`
	TimedOut   bool `json:"timed_out"`
	NewBest    bool `json:"new_best"`
	XPCredited int  `json:"xp_credited"`
}

// NewDebuggerSubmittedEvent creates a new debugger submitted event
func NewDebuggerSubmittedEvent(playerID string, progress *LevelProgress, newBest bool, xpCredited int) DebuggerSubmittedEvent {
	return DebuggerSubmittedEvent{
		BaseEvent:  NewBaseEvent(EventDebuggerSubmitted, playerID, progress.SubmittedAt),
		Level:      progress.Level,
		Score:      progress.Score,
		Stars:      progress.Stars,
		TimedOut:   progress.TimedOut,
		NewBest:    newBest,
		XPCredited: xpCredited,
	}
}
