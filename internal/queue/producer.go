package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/transcript"
)

// eventPublishTimeout bounds each forwarded event publish
const eventPublishTimeout = 5 * time.Second

// Ensure Producer can stand in as a transcript sink
var _ transcript.Sink = (*Producer)(nil)

// Producer publishes transcripts and events
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// Publish sends a transcript to the transcript queue
func (p *Producer) Publish(ctx context.Context, t *transcript.Transcript) error {
	if t == nil {
		return fmt.Errorf("%w: nil transcript", transcript.ErrPermanent)
	}

	if err := p.conn.PublishJSON(ctx, TranscriptQueueName, t); err != nil {
		return fmt.Errorf("failed to publish transcript: %w", err)
	}

	slog.Info("published transcript",
		"transcript_id", t.ID,
		"player_id", t.PlayerID,
		"challenge_id", t.ChallengeID,
	)
	return nil
}

// PublishEvent sends a domain event to the event queue
func (p *Producer) PublishEvent(ctx context.Context, e domain.Event) error {
	msg, err := NewEventMessage(e)
	if err != nil {
		return errors.Join(transcript.ErrPermanent, err)
	}
	if err := p.conn.PublishJSON(ctx, EventQueueName, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Forward publishes every event the dispatcher sees. Publish failures are
// logged and dropped.
func (p *Producer) Forward(d *domain.EventDispatcher) {
	d.SubscribeAll(func(e domain.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		defer cancel()
		if err := p.PublishEvent(ctx, e); err != nil {
			slog.Warn("failed to forward event", "type", e.EventType(), "player_id", e.PlayerID(), "error", err)
		}
	})
}
