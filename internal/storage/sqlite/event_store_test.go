package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

func TestEventStore_AttachRecordsDispatchedEvents(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewEventStore(db)
	dispatcher := domain.NewEventDispatcher()
	store.Attach(dispatcher)

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	// engine_events references no player row, so events for unknown players are kept
	xp := domain.NewXPAwardedEvent("ada", domain.PoolPromptLab, 60, 60, 60, now)
	up := domain.NewLevelUpEvent("ada", 1, 2, "Prompt Rookie", now.Add(time.Second))
	dispatcher.PublishAll([]domain.Event{xp, up})
	dispatcher.Publish(xp)

	events, err := store.Query(ctx, "ada", "", time.Time{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Query() returned %d events; want 2", len(events))
	}
	if events[0].EventType != domain.EventLevelUp {
		t.Errorf("newest event = %s; want %s", events[0].EventType, domain.EventLevelUp)
	}

	var decoded domain.XPAwardedEvent
	if err := json.Unmarshal(events[1].Data, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Amount != 60 || decoded.Pool != domain.PoolPromptLab {
		t.Errorf("payload = %+v", decoded)
	}

	n, err := store.Count(ctx, domain.EventXPAwarded)
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}

	filtered, _ := store.Query(ctx, "ada", domain.EventXPAwarded, time.Time{})
	if len(filtered) != 1 {
		t.Errorf("filtered Query() returned %d", len(filtered))
	}
}

func TestEventStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := NewEventStore(openTestDB(t))

	old := domain.NewXPAwardedEvent("ada", domain.PoolDebugger, 5, 5, 5, time.Now().Add(-48*time.Hour))
	fresh := domain.NewXPAwardedEvent("ada", domain.PoolDebugger, 5, 10, 10, time.Now())
	for _, e := range []domain.Event{old, fresh} {
		if err := store.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	pruned, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("Prune() = %d; want 1", pruned)
	}
}
