package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// StoredEvent is a domain event as recorded in the engine_events table.
type StoredEvent struct {
	ID         int64           `json:"id"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	PlayerID   string          `json:"player_id"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EventStore keeps an audit log of engine events backed by SQLite.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new SQLite-backed event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Record stores an event. Re-recording the same event id is a no-op.
func (s *EventStore) Record(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO engine_events (event_id, event_type, player_id, data, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.EventID().String(), e.EventType(), e.PlayerID(), string(payload), e.OccurredAt(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Attach subscribes the store to every event the dispatcher publishes.
// Failures are logged; the dispatcher has no error path.
func (s *EventStore) Attach(d *domain.EventDispatcher) {
	d.SubscribeAll(func(e domain.Event) {
		if err := s.Record(context.Background(), e); err != nil {
			slog.Warn("failed to record event", "type", e.EventType(), "player", e.PlayerID(), "error", err)
		}
	})
}

// Query returns a player's events, newest first, optionally filtered by type
// and lower time bound.
func (s *EventStore) Query(ctx context.Context, playerID, eventType string, since time.Time) ([]StoredEvent, error) {
	query := "SELECT id, event_id, event_type, player_id, data, occurred_at FROM engine_events WHERE player_id = ?"
	args := []any{playerID}

	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, eventType)
	}
	if !since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, since)
	}
	query += " ORDER BY occurred_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var data string
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.PlayerID, &data, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of recorded events of the given type.
func (s *EventStore) Count(ctx context.Context, eventType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM engine_events WHERE event_type = ?", eventType,
	).Scan(&count)
	return count, err
}

// Prune deletes events older than the given duration.
func (s *EventStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, "DELETE FROM engine_events WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return result.RowsAffected()
}
