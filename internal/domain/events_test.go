package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBaseEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := NewBaseEvent("test.created", "player-1", at)

	t.Run("EventID is unique", func(t *testing.T) {
		if event.EventID() == uuid.Nil {
			t.Error("EventID() should not be nil")
		}
		if other := NewBaseEvent("test.created", "player-1", at); other.EventID() == event.EventID() {
			t.Error("EventID() should differ between events")
		}
	})

	t.Run("EventType", func(t *testing.T) {
		if event.EventType() != "test.created" {
			t.Errorf("EventType() = %q, want test.created", event.EventType())
		}
	})

	t.Run("OccurredAt", func(t *testing.T) {
		if !event.OccurredAt().Equal(at) {
			t.Errorf("OccurredAt() = %v, want %v", event.OccurredAt(), at)
		}
	})

	t.Run("PlayerID", func(t *testing.T) {
		if event.PlayerID() != "player-1" {
			t.Errorf("PlayerID() = %q, want player-1", event.PlayerID())
		}
	})
}

func TestEventDispatcher(t *testing.T) {
	now := time.Now()

	t.Run("Subscribe and Publish", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		var received Event

		dispatcher.Subscribe("test.event", func(e Event) {
			received = e
		})

		dispatcher.Publish(NewBaseEvent("test.event", "p", now))

		if received == nil {
			t.Fatal("Event handler was not called")
		}
		if received.EventType() != "test.event" {
			t.Errorf("Received event type = %q, want test.event", received.EventType())
		}
	})

	t.Run("Multiple handlers for same event type", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		callCount := 0
		mu := sync.Mutex{}

		for i := 0; i < 3; i++ {
			dispatcher.Subscribe("test.event", func(e Event) {
				mu.Lock()
				callCount++
				mu.Unlock()
			})
		}

		dispatcher.Publish(NewBaseEvent("test.event", "p", now))

		if callCount != 3 {
			t.Errorf("Handler call count = %d, want 3", callCount)
		}
	})

	t.Run("SubscribeAll receives all events in order", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		var types []string

		dispatcher.SubscribeAll(func(e Event) {
			types = append(types, e.EventType())
		})

		dispatcher.PublishAll([]Event{
			NewBaseEvent(EventXPAwarded, "p", now),
			NewBaseEvent(EventLevelUp, "p", now),
			NewBaseEvent(EventBadgeUnlocked, "p", now),
		})

		want := []string{EventXPAwarded, EventLevelUp, EventBadgeUnlocked}
		if len(types) != len(want) {
			t.Fatalf("received %d events, want %d", len(types), len(want))
		}
		for i := range want {
			if types[i] != want[i] {
				t.Errorf("event %d = %q, want %q", i, types[i], want[i])
			}
		}
	})

	t.Run("Unsubscribed events are ignored", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		called := false

		dispatcher.Subscribe("other.event", func(e Event) {
			called = true
		})

		dispatcher.Publish(NewBaseEvent("test.event", "p", now))

		if called {
			t.Error("Handler should not be called for unsubscribed event type")
		}
	})
}

func TestProgressionEvents(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("XPAwardedEvent", func(t *testing.T) {
		event := NewXPAwardedEvent("p1", PoolDebugger, 40, 140, 390, at)

		if event.EventType() != EventXPAwarded {
			t.Errorf("EventType() = %q, want %s", event.EventType(), EventXPAwarded)
		}
		if event.Pool != PoolDebugger || event.Amount != 40 || event.PoolTotal != 140 || event.TotalXP != 390 {
			t.Errorf("unexpected payload: %+v", event)
		}
	})

	t.Run("LevelUpEvent", func(t *testing.T) {
		event := NewLevelUpEvent("p1", 1, 2, "Prompt Apprentice", at)

		if event.EventType() != EventLevelUp {
			t.Errorf("EventType() = %q, want %s", event.EventType(), EventLevelUp)
		}
		if event.OldLevel != 1 || event.NewLevel != 2 {
			t.Errorf("levels = %d -> %d, want 1 -> 2", event.OldLevel, event.NewLevel)
		}
	})

	t.Run("BadgeUnlockedEvent uses the unlock timestamp", func(t *testing.T) {
		event := NewBadgeUnlockedEvent("p1", BadgeUnlock{BadgeID: "first-steps", Name: "First Steps", XPReward: 25, EarnedAt: at})

		if event.EventType() != EventBadgeUnlocked {
			t.Errorf("EventType() = %q, want %s", event.EventType(), EventBadgeUnlocked)
		}
		if !event.OccurredAt().Equal(at) {
			t.Errorf("OccurredAt() = %v, want %v", event.OccurredAt(), at)
		}
		if event.BadgeID != "first-steps" || event.XPReward != 25 {
			t.Errorf("unexpected payload: %+v", event)
		}
	})
}

func TestMinigameEvents(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ChallengeEvaluatedEvent", func(t *testing.T) {
		result := &ChallengeResult{
			ChallengeID: "min-1",
			Mode:        ModeMinimize,
			Attempt:     2,
			Passed:      true,
			Score:       92,
			Stars:       3,
			EvaluatedAt: at,
		}
		event := NewChallengeEvaluatedEvent("p1", result, 50)

		if event.EventType() != EventChallengeEvaluated {
			t.Errorf("EventType() = %q, want %s", event.EventType(), EventChallengeEvaluated)
		}
		if event.ChallengeID != "min-1" || event.Attempt != 2 || !event.Passed || event.XPCredited != 50 {
			t.Errorf("unexpected payload: %+v", event)
		}
	})

	t.Run("DebuggerSubmittedEvent", func(t *testing.T) {
		progress := &LevelProgress{Level: 3, Score: 75, Stars: 2, TimedOut: true, SubmittedAt: at}
		event := NewDebuggerSubmittedEvent("p1", progress, true, 12)

		if event.EventType() != EventDebuggerSubmitted {
			t.Errorf("EventType() = %q, want %s", event.EventType(), EventDebuggerSubmitted)
		}
		if event.Level != 3 || !event.TimedOut || !event.NewBest || event.XPCredited != 12 {
			t.Errorf("unexpected payload: %+v", event)
		}
	})
}
