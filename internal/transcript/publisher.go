package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/salesarmbiz-Dev/aimacademy/internal/storage/local"
)

// Sink receives transcripts, e.g. a message queue or a local archive
type Sink interface {
	Publish(ctx context.Context, t *Transcript) error
}

// ErrPermanent marks sink failures that retrying cannot fix
var ErrPermanent = errors.New("permanent transcript failure")

// ResilientConfig holds resilience settings for a publisher
type ResilientConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	OpenTimeout   time.Duration
	MaxConcurrent int
	Logger        *slog.Logger
}

// DefaultResilientConfig returns defaults suited to a remote asset store
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		OpenTimeout:   30 * time.Second,
		MaxConcurrent: 4,
	}
}

// ResilientPublisher wraps a sink with retry and a circuit breaker, bounded
// by a bulkhead. The breaker opens after five consecutive failures.
type ResilientPublisher struct {
	sink           Sink
	circuitBreaker circuitbreaker.CircuitBreaker[struct{}]
	retrier        retry.Retry[struct{}]
	bulkhead       bulkhead.Bulkhead[struct{}]
	logger         *slog.Logger
}

// NewResilientPublisher wraps sink using fortify
func NewResilientPublisher(sink Sink, cfg ResilientConfig) *ResilientPublisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	p := &ResilientPublisher{sink: sink, logger: logger}

	p.circuitBreaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("transcript circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	p.retrier = retry.New[struct{}](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return err != nil && !errors.Is(err, ErrPermanent)
		},
	})

	p.bulkhead = bulkhead.New[struct{}](bulkhead.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxQueue:      cfg.MaxConcurrent * 4,
		QueueTimeout:  10 * time.Second,
	})

	return p
}

// Publish sends a transcript through the resilience chain
func (p *ResilientPublisher) Publish(ctx context.Context, t *Transcript) error {
	send := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.sink.Publish(ctx, t)
	}

	_, err := p.bulkhead.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return p.circuitBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return p.retrier.Do(ctx, send)
		})
	})
	if err != nil {
		return fmt.Errorf("publish transcript %s: %w", t.ID, err)
	}
	return nil
}

const collectionPlayers = "players"

// LocalSink archives transcripts as nested documents of the player
type LocalSink struct {
	store *local.Store
}

// NewLocalSink creates a sink over a local JSON store
func NewLocalSink(store *local.Store) *LocalSink {
	return &LocalSink{store: store}
}

// Publish writes the transcript to players/<id>/transcripts
func (s *LocalSink) Publish(_ context.Context, t *Transcript) error {
	if t.PlayerID == "" {
		return fmt.Errorf("%w: transcript has no player", ErrPermanent)
	}
	return s.store.SaveDir(collectionPlayers, t.PlayerID, "transcripts", t.ID.String(), t)
}

// List returns the archived transcripts of a player, oldest first
func (s *LocalSink) List(playerID string) ([]*Transcript, error) {
	names, err := s.store.ListDir(collectionPlayers, playerID, "transcripts")
	if err != nil {
		return nil, err
	}
	out := make([]*Transcript, 0, len(names))
	for _, name := range names {
		var t Transcript
		if err := s.store.LoadDir(collectionPlayers, playerID, "transcripts", name, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Fanout publishes to every sink and joins the errors
type Fanout []Sink

// Publish implements Sink
func (f Fanout) Publish(ctx context.Context, t *Transcript) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
