package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// Recorder persists a submitted run for a player
type Recorder interface {
	RecordDebuggerRun(ctx context.Context, playerID string, progress *domain.LevelProgress) error
}

// State is the read model of a session for clients
type State struct {
	ID        string                `json:"id"`
	PlayerID  string                `json:"player_id"`
	Level     int                   `json:"level"`
	Title     string                `json:"title"`
	Prompt    string                `json:"prompt"`
	BugCount  int                   `json:"bug_count"`
	Phase     Phase                 `json:"phase"`
	Elapsed   int                   `json:"elapsed_seconds"`
	TimeLimit int                   `json:"time_limit_seconds,omitempty"`
	Found     []string              `json:"found"`
	Resolved  []string              `json:"resolved"`
	Missing   []string              `json:"missing_fixes,omitempty"`
	HintsUsed int                   `json:"hints_used"`
	Result    *domain.LevelProgress `json:"result,omitempty"`

	// Wrong classification attempts per bug and flags that hit no bug.
	// Neither affects the score.
	WrongClassifications map[string]int `json:"wrong_classifications"`
	MissedFlags          int            `json:"missed_flags"`
}

// Session couples a run with its stopwatch. Every operation first polls the
// stopwatch and forces submission once the level's time limit has passed.
type Session struct {
	ID        string
	PlayerID  string
	StartedAt time.Time

	mu       sync.Mutex
	run      *Run
	watch    *Stopwatch
	clock    Clock
	recorder Recorder
	logger   *slog.Logger
	lastSeen time.Time
	recorded bool
}

// State polls the stopwatch and returns the current session state
func (s *Session) State(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pollLocked(ctx); err != nil {
		return nil, err
	}
	return s.stateLocked(), nil
}

// Flag marks a suspected bug span
func (s *Session) Flag(ctx context.Context, span domain.Span) (*FlagResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(ctx); err != nil {
		return nil, err
	}
	return s.run.Flag(span)
}

// Classify assigns a bug type to a flagged bug
func (s *Session) Classify(ctx context.Context, bugID string, bugType domain.BugType) (*ClassifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(ctx); err != nil {
		return nil, err
	}
	return s.run.Classify(bugID, bugType)
}

// Hint reveals the hint for a bug
func (s *Session) Hint(ctx context.Context, bugID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(ctx); err != nil {
		return "", err
	}
	return s.run.UseHint(bugID)
}

// SetFix records replacement text for a bug
func (s *Session) SetFix(ctx context.Context, bugID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(ctx); err != nil {
		return err
	}
	return s.run.SetFix(bugID, text)
}

// Submit stops the stopwatch and scores the run
func (s *Session) Submit(ctx context.Context) (*domain.LevelProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(ctx); err != nil {
		return nil, err
	}
	if missing := s.run.Missing(); s.run.Phase() != PhaseFix || len(missing) > 0 {
		// let the run report the precise reason without touching the stopwatch
		return s.run.Submit(s.watch.Elapsed(), s.clock.Now())
	}

	progress, err := s.run.Submit(s.watch.Stop(), s.clock.Now())
	if err != nil {
		return nil, err
	}
	return progress, s.recordLocked(ctx)
}

// checkOpenLocked polls and reports whether the run still accepts input
func (s *Session) checkOpenLocked(ctx context.Context) error {
	if err := s.pollLocked(ctx); err != nil {
		return err
	}
	if s.run.Phase() == PhaseSubmitted {
		if s.run.Result() != nil && s.run.Result().TimedOut {
			return fmt.Errorf("%w: time limit reached", domain.ErrAlreadySubmitted)
		}
		return domain.ErrAlreadySubmitted
	}
	return nil
}

func (s *Session) pollLocked(ctx context.Context) error {
	s.lastSeen = s.clock.Now()

	limit := s.run.Level().TimeLimitSeconds
	if s.run.Phase() != PhaseSubmitted && limit > 0 && s.watch.Elapsed() >= limit {
		elapsed := min(s.watch.Stop(), limit)
		progress, err := s.run.TimeUp(elapsed, s.clock.Now())
		if err != nil {
			return err
		}
		s.logger.Info("debugger time limit reached",
			"session_id", s.ID, "player_id", s.PlayerID, "level", progress.Level, "score", progress.Score)
	}

	if s.run.Phase() == PhaseSubmitted && !s.recorded {
		return s.recordLocked(ctx)
	}
	return nil
}

func (s *Session) recordLocked(ctx context.Context) error {
	if s.recorder == nil {
		s.recorded = true
		return nil
	}
	if err := s.recorder.RecordDebuggerRun(ctx, s.PlayerID, s.run.Result()); err != nil {
		return fmt.Errorf("record debugger run: %w", err)
	}
	s.recorded = true

	wrong, misses := s.run.Telemetry()
	wrongTotal := 0
	for _, n := range wrong {
		wrongTotal += n
	}
	s.logger.Info("debugger run recorded",
		"session_id", s.ID, "player_id", s.PlayerID, "level", s.run.Level().Number,
		"score", s.run.Result().Score, "wrong_classifications", wrongTotal, "missed_flags", misses)
	return nil
}

func (s *Session) stateLocked() *State {
	level := s.run.Level()
	st := &State{
		ID:        s.ID,
		PlayerID:  s.PlayerID,
		Level:     level.Number,
		Title:     level.Title,
		Prompt:    level.Prompt,
		BugCount:  level.BugCount,
		Phase:     s.run.Phase(),
		Elapsed:   s.watch.Elapsed(),
		TimeLimit: level.TimeLimitSeconds,
		Found:     sortedKeys(s.run.found),
		Resolved:  sortedKeys(s.run.resolved),
		HintsUsed: s.run.hintsUsed,
		Result:    s.run.Result(),
	}
	if st.Phase == PhaseFix {
		st.Missing = s.run.Missing()
	}
	st.WrongClassifications, st.MissedFlags = s.run.Telemetry()
	return st
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// -----------------------------------------------------------------------------
// Manager
// -----------------------------------------------------------------------------

// Manager keeps in-memory debugger sessions keyed by ID
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    Clock
	recorder Recorder
	logger   *slog.Logger
}

// NewManager creates a session manager
func NewManager(clock Clock, recorder Recorder, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// Start begins a new run of level for a player and starts its stopwatch
func (m *Manager) Start(playerID string, level *domain.DebuggerLevel) (*Session, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", domain.ErrInvalidInput)
	}
	run, err := NewRun(level)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	s := &Session{
		ID:        uuid.New().String(),
		PlayerID:  playerID,
		StartedAt: now,
		run:       run,
		watch:     StartStopwatch(m.clock),
		clock:     m.clock,
		recorder:  m.recorder,
		logger:    m.logger,
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("debugger session started", "session_id", s.ID, "player_id", playerID, "level", level.Number)
	return s, nil
}

// Get returns a session by ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	return s, nil
}

// Abandon drops a session without scoring it
func (m *Manager) Abandon(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// Prune drops sessions idle for longer than maxIdle, without scoring them
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := m.clock.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			pruned++
		}
	}
	if pruned > 0 {
		m.logger.Debug("pruned idle debugger sessions", "count", pruned)
	}
	return pruned
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
