package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/app"
	"github.com/salesarmbiz-Dev/aimacademy/internal/config"
	"github.com/salesarmbiz-Dev/aimacademy/internal/events"
)

// Version is reported by the status endpoint
const Version = "0.1.0"

const (
	runReapInterval = time.Minute
	runMaxIdle      = 30 * time.Minute
)

// Server represents the AIM Academy daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	app     *app.App
	server  *http.Server
	router  *http.ServeMux
	limiter *RateLimiter
	started time.Time
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	App *app.App
}

// NewServer creates a new daemon server. The debugger run reaper stops when
// ctx is cancelled.
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("daemon: app is required")
	}

	s := &Server{
		cfg:     cfg.App.Config,
		app:     cfg.App,
		router:  http.NewServeMux(),
		started: time.Now(),
	}
	if s.cfg.Daemon.RateLimit > 0 {
		s.limiter = NewRateLimiter(s.cfg.Daemon.RateLimit, time.Minute, s.cfg.Daemon.RateLimit)
	}

	// Setup routes
	s.setupRoutes()

	// Create HTTP server with middleware chain
	addr := fmt.Sprintf("%s:%d", s.cfg.Daemon.Bind, s.cfg.Daemon.Port)
	handler := recoveryMiddleware(correlationIDMiddleware(loggingMiddleware(s.app.Metrics.Middleware(s.router))))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the event feed is long-lived
		IdleTimeout:  120 * time.Second,
	}

	go s.reapRuns(ctx)

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.Handle("GET /metrics", s.app.Metrics.Handler())

	// Prompt scoring
	s.router.Handle("POST /v1/score", s.limit(s.handleScore))

	// Challenges
	s.router.HandleFunc("GET /v1/challenges", s.handleListChallenges)
	s.router.HandleFunc("GET /v1/challenges/{id}", s.handleGetChallenge)
	s.router.HandleFunc("GET /v1/packs", s.handleListPacks)
	s.router.Handle("POST /v1/players/{id}/challenges/{challenge}/submissions", s.limit(s.handleSubmitChallenge))

	// Debugger
	s.router.HandleFunc("GET /v1/debugger/levels", s.handleListLevels)
	s.router.HandleFunc("GET /v1/debugger/levels/{number}", s.handleGetLevel)
	s.router.Handle("POST /v1/players/{id}/debugger/runs", s.limit(s.handleStartRun))
	s.router.HandleFunc("GET /v1/debugger/runs/{run}", s.handleGetRun)
	s.router.HandleFunc("DELETE /v1/debugger/runs/{run}", s.handleAbandonRun)
	s.router.HandleFunc("POST /v1/debugger/runs/{run}/flags", s.handleFlag)
	s.router.HandleFunc("POST /v1/debugger/runs/{run}/classifications", s.handleClassify)
	s.router.HandleFunc("POST /v1/debugger/runs/{run}/hints", s.handleHint)
	s.router.HandleFunc("PUT /v1/debugger/runs/{run}/fixes/{bug}", s.handleSetFix)
	s.router.Handle("POST /v1/debugger/runs/{run}/submit", s.limit(s.handleSubmitRun))

	// Players
	s.router.HandleFunc("GET /v1/players/{id}", s.handleGetPlayer)
	s.router.Handle("POST /v1/players/{id}/xp", s.limit(s.handleAddXP))
	s.router.HandleFunc("GET /v1/players/{id}/stats", s.handleStats)
	s.router.HandleFunc("GET /v1/players/{id}/badges", s.handleBadges)
	s.router.HandleFunc("GET /v1/players/{id}/levels", s.handleLevelProgress)
	s.router.HandleFunc("GET /v1/players/{id}/history", s.handleHistory)
	s.router.HandleFunc("GET /v1/players/{id}/transcripts", s.handleTranscripts)

	// Live event feed
	s.router.Handle("GET /v1/players/{id}/events", events.NewWebSocketHandler(s.app.Hub, s.cfg.Daemon.OriginPatterns))
}

// Handler returns the server's full middleware chain
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting aimacademy daemon",
		"addr", s.server.Addr,
		"storage", s.cfg.Storage.Driver,
		"challenges", s.app.Challenges.Count(),
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

// reapRuns drops debugger runs nobody has touched for a while
func (s *Server) reapRuns(ctx context.Context) {
	ticker := time.NewTicker(runReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.app.Debugger.Prune(runMaxIdle); n > 0 {
				slog.Info("pruned idle debugger runs", "count", n)
			}
			s.app.Metrics.SetActiveRuns(s.app.Debugger.Count())
		}
	}
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":          "running",
		"version":         Version,
		"uptime_seconds":  int(time.Since(s.started).Seconds()),
		"storage":         s.cfg.Storage.Driver,
		"queue":           s.app.Queue != nil && s.app.Queue.IsConnected(),
		"challenges":      s.app.Challenges.Count(),
		"debugger_levels": len(s.app.Levels.List()),
		"badges":          s.app.Badges.Len(),
		"active_runs":     s.app.Debugger.Count(),
	})
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// decodeJSON reads a request body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// limit applies the submission rate limit when one is configured
func (s *Server) limit(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}
