// Package app wires the scoring engine from configuration. The daemon, the MCP
// server, and the CLI all run the same App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/salesarmbiz-Dev/aimacademy/internal/badge"
	"github.com/salesarmbiz-Dev/aimacademy/internal/challenge"
	"github.com/salesarmbiz-Dev/aimacademy/internal/config"
	"github.com/salesarmbiz-Dev/aimacademy/internal/content"
	"github.com/salesarmbiz-Dev/aimacademy/internal/debugger"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/events"
	"github.com/salesarmbiz-Dev/aimacademy/internal/metrics"
	"github.com/salesarmbiz-Dev/aimacademy/internal/player"
	"github.com/salesarmbiz-Dev/aimacademy/internal/queue"
	"github.com/salesarmbiz-Dev/aimacademy/internal/storage/local"
	"github.com/salesarmbiz-Dev/aimacademy/internal/storage/postgres"
	"github.com/salesarmbiz-Dev/aimacademy/internal/storage/sqlite"
	"github.com/salesarmbiz-Dev/aimacademy/internal/transcript"
)

// App holds all engine dependencies
type App struct {
	Config     *config.LocalConfig
	Challenges *challenge.Registry
	Levels     *debugger.Levels
	Badges     *badge.Catalog
	Players    *player.Service
	Debugger   *debugger.Manager
	Hub        *events.Hub
	Dispatcher *domain.EventDispatcher
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Archive    *transcript.LocalSink // nil when archiving is off
	Events     *sqlite.EventStore    // nil unless the sqlite driver is used
	Queue      *queue.Connection     // nil unless the queue is enabled
	Store      player.Store

	closers []func() error
}

// AppConfig holds configuration for application initialization
type AppConfig struct {
	Config  *config.LocalConfig
	HomeDir string
	Logger  *slog.Logger

	// Store replaces the configured player store, e.g. in tests
	Store player.Store
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(ctx context.Context, cfg AppConfig) (*App, error) {
	if cfg.Config == nil {
		cfg.Config = config.DefaultLocalConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Config:     cfg.Config,
		Dispatcher: domain.NewEventDispatcher(),
		Registry:   prometheus.NewRegistry(),
	}
	a.Metrics = metrics.NewMetrics(a.Registry)

	if err := a.loadContent(cfg.Config.Content.Path); err != nil {
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		var err error
		store, err = a.openStore(ctx, cfg.Config, cfg.HomeDir)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Store = store

	sink, err := a.transcriptSink(cfg.Config, cfg.HomeDir, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Players = player.NewService(store, a.Challenges, a.Badges)
	a.Players.SetDispatcher(a.Dispatcher)
	a.Players.SetMetrics(a.Metrics)
	a.Players.SetLogger(logger)
	if sink != nil {
		a.Players.SetTranscriptSink(sink)
	}

	a.Hub = events.NewHub()
	a.Hub.SetLogger(logger)
	a.Hub.Attach(a.Dispatcher)

	if a.Events != nil {
		a.Events.Attach(a.Dispatcher)
	}
	if a.Queue != nil && cfg.Config.Queue.ForwardEvents {
		queue.NewProducer(a.Queue).Forward(a.Dispatcher)
	}

	a.Debugger = debugger.NewManager(debugger.SystemClock{}, a.Players, logger)

	logger.Info("engine ready",
		"challenges", a.Challenges.Count(),
		"levels", len(a.Levels.List()),
		"badges", a.Badges.Len(),
		"storage", cfg.Config.Storage.Driver,
		"queue", a.Queue != nil,
	)
	return a, nil
}

func (a *App) loadContent(dir string) error {
	fsys, err := content.FS(dir)
	if err != nil {
		return err
	}

	a.Challenges = challenge.NewRegistry(challenge.NewLoader(fsys))
	if err := a.Challenges.Load(); err != nil {
		return fmt.Errorf("load challenges: %w", err)
	}

	a.Levels = debugger.NewLevels(fsys)
	if err := a.Levels.Load(); err != nil {
		return fmt.Errorf("load debugger levels: %w", err)
	}

	a.Badges, err = badge.LoadCatalog(fsys)
	if err != nil {
		return fmt.Errorf("load badges: %w", err)
	}
	return nil
}

func (a *App) openStore(ctx context.Context, cfg *config.LocalConfig, homeDir string) (player.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		path := cfg.StoragePath(homeDir)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		a.Events = sqlite.NewEventStore(db)
		return sqlite.NewPlayerStore(db), nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewPlayerStore(pool), nil

	default:
		return player.NewJSONStore(cfg.StoragePath(homeDir))
	}
}

// transcriptSink builds the local archive and, when enabled, the queue
// producer behind a resilient publisher
func (a *App) transcriptSink(cfg *config.LocalConfig, homeDir string, logger *slog.Logger) (transcript.Sink, error) {
	var sinks transcript.Fanout

	if cfg.Transcripts.Archive && homeDir != "" {
		store, err := local.NewStore(filepath.Join(homeDir, "transcripts"))
		if err != nil {
			return nil, fmt.Errorf("create transcript archive: %w", err)
		}
		a.Archive = transcript.NewLocalSink(store)
		sinks = append(sinks, a.Archive)
	}

	if cfg.Queue.Enabled {
		conn, err := queue.NewConnection(cfg.Queue.URL)
		if err != nil {
			// the engine runs without the queue; transcripts stay local
			logger.Warn("queue unavailable", "error", err)
		} else {
			a.Queue = conn
			a.closers = append(a.closers, conn.Close)
			sinks = append(sinks, transcript.NewResilientPublisher(queue.NewProducer(conn), transcript.ResilientConfig{
				MaxAttempts:   cfg.Transcripts.MaxAttempts,
				InitialDelay:  cfg.Transcripts.InitialDelay,
				MaxDelay:      cfg.Transcripts.MaxDelay,
				OpenTimeout:   cfg.Transcripts.OpenTimeout,
				MaxConcurrent: cfg.Transcripts.MaxConcurrent,
				Logger:        logger,
			}))
		}
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// Close waits for background publishing and releases storage and queue
// connections in reverse order of opening
func (a *App) Close() error {
	if a.Players != nil {
		a.Players.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
