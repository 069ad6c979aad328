package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/salesarmbiz-Dev/aimacademy/internal/transcript"
)

// TranscriptHandler processes a transcript taken off the queue
type TranscriptHandler func(ctx context.Context, t *transcript.Transcript) error

// SinkHandler adapts a transcript sink, e.g. the local archive, into a handler
func SinkHandler(sink transcript.Sink) TranscriptHandler {
	return sink.Publish
}

// Consumer consumes transcripts from the queue
type Consumer struct {
	conn       *Connection
	handler    TranscriptHandler
	workers    int
	prefetch   int
	timeout    time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int           // Number of concurrent workers
	Prefetch int           // Prefetch count per worker
	Timeout  time.Duration // Per-message handler timeout
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  3,
		Prefetch: 1,
		Timeout:  30 * time.Second,
	}
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler TranscriptHandler, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		timeout:  cfg.Timeout,
	}
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	def := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = def.Prefetch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		TranscriptQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting transcript consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := range c.workers {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

// worker processes messages from the queue
func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			c.processMessage(ctx, id, msg)
		}
	}
}

// action is what to do with a delivery once handled
type action int

const (
	actionAck action = iota
	actionRequeue
	actionDrop
)

// dispose decides a delivery's fate. Permanent failures and second failures
// are dropped rather than requeued forever.
func dispose(err error, redelivered bool) action {
	switch {
	case err == nil:
		return actionAck
	case errors.Is(err, transcript.ErrPermanent), redelivered:
		return actionDrop
	default:
		return actionRequeue
	}
}

// processMessage handles a single message
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	start := time.Now()

	var t transcript.Transcript
	if err := json.Unmarshal(msg.Body, &t); err != nil {
		slog.Error("failed to unmarshal transcript", "worker_id", workerID, "error", err)
		_ = msg.Reject(false)
		return
	}

	msgCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.handler(msgCtx, &t)
	logger := slog.With("worker_id", workerID, "transcript_id", t.ID, "player_id", t.PlayerID, "duration", time.Since(start))

	switch dispose(err, msg.Redelivered) {
	case actionAck:
		logger.Info("transcript processed")
		if err := msg.Ack(false); err != nil {
			logger.Error("failed to ack message", "error", err)
		}
	case actionRequeue:
		logger.Warn("transcript handler failed, requeueing", "error", err)
		_ = msg.Nack(false, true)
	case actionDrop:
		logger.Error("transcript handler failed, dropping", "error", err)
		_ = msg.Reject(false)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}

// EventHandler handles an event for a subscribed player
type EventHandler func(msg *EventMessage)

// EventConsumer consumes engine events and routes them to per-player watchers
type EventConsumer struct {
	conn       *Connection
	handlers   map[string]EventHandler
	handlersMu sync.RWMutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewEventConsumer creates an event consumer
func NewEventConsumer(conn *Connection) *EventConsumer {
	return &EventConsumer{
		conn:     conn,
		handlers: make(map[string]EventHandler),
	}
}

// Subscribe registers a handler for a player's events
func (ec *EventConsumer) Subscribe(playerID string, handler EventHandler) {
	ec.handlersMu.Lock()
	defer ec.handlersMu.Unlock()
	ec.handlers[playerID] = handler
}

// Unsubscribe removes a handler
func (ec *EventConsumer) Unsubscribe(playerID string) {
	ec.handlersMu.Lock()
	defer ec.handlersMu.Unlock()
	delete(ec.handlers, playerID)
}

// Start begins consuming events
func (ec *EventConsumer) Start(ctx context.Context) error {
	ctx, ec.cancelFunc = context.WithCancel(ctx)

	ch := ec.conn.Channel()

	msgs, err := ch.Consume(
		EventQueueName,
		"",    // consumer tag
		true,  // auto-ack (events are fire-and-forget)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start event consumer: %w", err)
	}

	ec.wg.Add(1)
	go ec.consume(ctx, msgs)

	return nil
}

func (ec *EventConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer ec.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ec.route(msg.Body)
		}
	}
}

// route decodes one event body and hands it to the player's handler
func (ec *EventConsumer) route(body []byte) {
	var msg EventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		slog.Error("failed to unmarshal event", "error", err)
		return
	}

	ec.handlersMu.RLock()
	handler, ok := ec.handlers[msg.PlayerID]
	ec.handlersMu.RUnlock()

	if ok {
		handler(&msg)
	}
}

// Stop stops the event consumer
func (ec *EventConsumer) Stop() {
	if ec.cancelFunc != nil {
		ec.cancelFunc()
	}
	ec.wg.Wait()
}
