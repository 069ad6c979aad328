// Package player applies engine outcomes to persisted player state.
//
// Every XP-earning event is one read-modify-write of the player record,
// serialised per player. Badge rules are settled on the same write, so badge
// XP is credited at most once, on the unlock edge.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salesarmbiz-Dev/aimacademy/internal/badge"
	"github.com/salesarmbiz-Dev/aimacademy/internal/challenge"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/metrics"
	"github.com/salesarmbiz-Dev/aimacademy/internal/progression"
	"github.com/salesarmbiz-Dev/aimacademy/internal/transcript"
)

const transcriptTimeout = 30 * time.Second

// Service applies challenge, debugger, and XP events to player records
type Service struct {
	store      Store
	challenges ChallengeSource
	badges     BadgeSource

	dispatcher  *domain.EventDispatcher // Optional: fan-out of domain events
	transcripts transcript.Sink         // Optional: asset store for transcripts
	metrics     *metrics.Metrics        // Optional
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	pending sync.WaitGroup
}

// NewService creates a new player service
func NewService(store Store, challenges ChallengeSource, badges BadgeSource) *Service {
	return &Service{
		store:      store,
		challenges: challenges,
		badges:     badges,
		logger:     slog.Default(),
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// SetDispatcher sets the dispatcher that receives domain events after each write
func (s *Service) SetDispatcher(d *domain.EventDispatcher) {
	s.dispatcher = d
}

// SetTranscriptSink sets where challenge transcripts are published
func (s *Service) SetTranscriptSink(sink transcript.Sink) {
	s.transcripts = sink
}

// SetMetrics sets the metrics recorder
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetLogger sets the logger
func (s *Service) SetLogger(l *slog.Logger) {
	s.logger = l
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Wait blocks until background transcript publishing has finished
func (s *Service) Wait() {
	s.pending.Wait()
}

// ChallengeOutcome is what a challenge submission did to the player
type ChallengeOutcome struct {
	Result          *domain.ChallengeResult `json:"result"`
	XPCredited      int                     `json:"xp_credited"`
	FirstCompletion bool                    `json:"first_completion"`
	AttemptsLeft    int                     `json:"attempts_left"`
	Unlocked        []domain.BadgeUnlock    `json:"unlocked"`
	Stats           progression.UserStats   `json:"stats"`
}

// DebuggerOutcome is what a debugger run did to the player
type DebuggerOutcome struct {
	Progress   *domain.LevelProgress `json:"progress"`
	Best       domain.LevelProgress  `json:"best"`
	NewBest    bool                  `json:"new_best"`
	XPCredited int                   `json:"xp_credited"`
	Unlocked   []domain.BadgeUnlock  `json:"unlocked"`
	Stats      progression.UserStats `json:"stats"`
}

// SubmitChallenge evaluates blocks against a challenge. The attempt number is
// the stored attempt count plus one. An exhausted challenge returns
// *domain.AttemptsExhaustedError and leaves the record untouched. XP goes to
// the prompt_lab pool on the first pass only.
func (s *Service) SubmitChallenge(ctx context.Context, playerID, challengeID string, blocks []domain.PromptBlock, timeSpent int) (*ChallengeOutcome, error) {
	ch, err := s.challenges.Get(challengeID)
	if err != nil {
		return nil, err
	}

	var out *ChallengeOutcome
	err = s.mutate(ctx, playerID, true, func(m *mutation) error {
		cr := m.rec.Challenges[challengeID]
		attempt := cr.Attempts + 1

		result, err := challenge.EvaluateAt(ch, blocks, timeSpent, attempt, m.now)
		if err != nil {
			return err
		}

		cr.Attempts = attempt
		cr.BestScore = max(cr.BestScore, result.Score)
		cr.BestStars = max(cr.BestStars, result.Stars)

		out = &ChallengeOutcome{Result: result}
		if result.Passed && !cr.Completed {
			at := m.now
			cr.Completed = true
			cr.CompletedAt = &at
			cr.XPCredited = result.XPEarned
			out.FirstCompletion = true
			out.XPCredited = result.XPEarned
			if err := m.credit(domain.PoolPromptLab, result.XPEarned, "challenge completed", challengeID); err != nil {
				return err
			}
		}
		m.rec.Challenges[challengeID] = cr
		out.AttemptsLeft = max(ch.Spec().MaxAttempts-cr.Attempts, 0)

		if result.Badge != "" {
			m.rec.ChallengeBadges[result.Badge] = true
		}
		for _, b := range blocks {
			m.rec.BlockUsage[b.Type]++
		}
		m.rec.TouchStreak(m.now)
		m.emit(domain.NewChallengeEvaluatedEvent(playerID, result, out.XPCredited))
		return nil
	}, func(m *mutation) {
		out.Unlocked = m.unlocks
		out.Stats = progression.Stats(m.rec.XPPools)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ChallengeEvaluated(string(ch.Mode()), out.Result.Passed)
	}
	s.publishTranscript(ctx, transcript.Summarize(playerID, ch, blocks, out.Result, out.XPCredited))
	return out, nil
}

// SubmitDebuggerRun keeps the best run per level and credits only the XP
// improvement over the previous best to the debugger pool.
func (s *Service) SubmitDebuggerRun(ctx context.Context, playerID string, progress *domain.LevelProgress) (*DebuggerOutcome, error) {
	if progress == nil || progress.Level < 1 {
		return nil, fmt.Errorf("%w: debugger progress needs a level", domain.ErrInvalidInput)
	}

	var out *DebuggerOutcome
	err := s.mutate(ctx, playerID, true, func(m *mutation) error {
		prev, had := m.rec.Levels[progress.Level]
		out = &DebuggerOutcome{Progress: progress, Best: prev}

		if !had || progress.Better(prev) {
			out.NewBest = true
			out.Best = *progress
			m.rec.Levels[progress.Level] = *progress

			gain := progress.XPEarned
			if had {
				gain -= prev.XPEarned
			}
			if gain > 0 {
				out.XPCredited = gain
				if err := m.credit(domain.PoolDebugger, gain, "debugger level", strconv.Itoa(progress.Level)); err != nil {
					return err
				}
			}
		}

		m.rec.TouchStreak(m.now)
		m.emit(domain.NewDebuggerSubmittedEvent(playerID, progress, out.NewBest, out.XPCredited))
		return nil
	}, func(m *mutation) {
		out.Unlocked = m.unlocks
		out.Stats = progression.Stats(m.rec.XPPools)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DebuggerSubmitted(progress.Stars, progress.TimedOut)
	}
	return out, nil
}

// RecordDebuggerRun implements debugger.Recorder
func (s *Service) RecordDebuggerRun(ctx context.Context, playerID string, progress *domain.LevelProgress) error {
	_, err := s.SubmitDebuggerRun(ctx, playerID, progress)
	return err
}

// AddXP credits amount to a named pool. Zero is accepted and changes nothing.
func (s *Service) AddXP(ctx context.Context, playerID, pool string, amount int) error {
	if pool == "" || amount < 0 {
		return fmt.Errorf("%w: pool %q amount %d", domain.ErrInvalidInput, pool, amount)
	}
	return s.mutate(ctx, playerID, true, func(m *mutation) error {
		return m.credit(pool, amount, "manual credit", "")
	}, nil)
}

// Stats returns the derived level view of a player
func (s *Service) Stats(ctx context.Context, playerID string) (progression.UserStats, error) {
	rec, err := s.Player(ctx, playerID)
	if err != nil {
		return progression.UserStats{}, err
	}
	return progression.Stats(rec.XPPools), nil
}

// Badges settles and returns the badge views. A badge whose rule holds but
// was not yet recorded, e.g. after the catalog grew, is unlocked here.
func (s *Service) Badges(ctx context.Context, playerID string) ([]domain.BadgeView, error) {
	var views []domain.BadgeView
	err := s.mutate(ctx, playerID, false, nil, func(m *mutation) {
		views, _ = badge.Evaluate(s.badges.Definitions(), Snapshot(m.rec), badge.PriorFromEarned(m.rec.Badges), m.now)
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// LevelProgress returns the best run per debugger level, ordered by level
func (s *Service) LevelProgress(ctx context.Context, playerID string) ([]domain.LevelProgress, error) {
	rec, err := s.Player(ctx, playerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LevelProgress, 0, len(rec.Levels))
	for _, lp := range rec.Levels {
		out = append(out, lp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// Player returns the persisted record
func (s *Service) Player(ctx context.Context, playerID string) (*domain.PlayerRecord, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", domain.ErrInvalidInput)
	}
	rec, err := s.store.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	rec.EnsureMaps()
	return rec, nil
}

// History returns the most recent XP credits, newest first
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]domain.XPCredit, error) {
	if _, err := s.Player(ctx, playerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.Credits(ctx, playerID, limit)
}

// -----------------------------------------------------------------------------
// read-modify-write
// -----------------------------------------------------------------------------

type mutation struct {
	rec      *domain.PlayerRecord
	now      time.Time
	credits  []domain.XPCredit
	events   []domain.Event
	unlocks  []domain.BadgeUnlock
	levelUps int
	metrics  *metrics.Metrics
}

func (m *mutation) credit(pool string, amount int, reason, source string) error {
	total, err := progression.Ledger(m.rec.XPPools).Credit(pool, amount)
	if err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	m.credits = append(m.credits, domain.XPCredit{
		ID:        uuid.NewString(),
		PlayerID:  m.rec.ID,
		Pool:      pool,
		Amount:    amount,
		Reason:    reason,
		Source:    source,
		CreatedAt: m.now,
	})
	m.emit(domain.NewXPAwardedEvent(m.rec.ID, pool, amount, total, m.rec.TotalXP(), m.now))
	if m.metrics != nil {
		m.metrics.XPAwarded(pool, amount)
	}
	return nil
}

func (m *mutation) emit(e domain.Event) {
	m.events = append(m.events, e)
}

func (m *mutation) dirty() bool {
	return len(m.credits) > 0 || len(m.events) > 0
}

// mutate loads the record under the player's lock, applies fn, settles badge
// rules, and saves once. When create is false an unknown player is an error.
// view runs after settling, still under the lock.
func (s *Service) mutate(ctx context.Context, playerID string, create bool, fn func(*mutation) error, view func(*mutation)) error {
	if playerID == "" {
		return fmt.Errorf("%w: player id is required", domain.ErrInvalidInput)
	}

	unlock := s.lock(playerID)
	defer unlock()

	now := s.now()
	rec, err := s.store.Get(ctx, playerID)
	switch {
	case errors.Is(err, domain.ErrPlayerNotFound) && create:
		rec = domain.NewPlayerRecord(playerID, now)
	case err != nil:
		return err
	}
	rec.EnsureMaps()

	m := &mutation{rec: rec, now: now, metrics: s.metrics}
	oldLevel := progression.ComputeLevel(rec.TotalXP()).Level

	if fn != nil {
		if err := fn(m); err != nil {
			return err
		}
	}
	if err := s.settleBadges(m); err != nil {
		return err
	}

	newLevel := progression.ComputeLevel(rec.TotalXP())
	if newLevel.Level > oldLevel {
		m.levelUps = newLevel.Level - oldLevel
		m.emit(domain.NewLevelUpEvent(playerID, oldLevel, newLevel.Level, newLevel.Title, now))
	}

	if view != nil {
		view(m)
	}

	if fn == nil && !m.dirty() {
		return nil
	}
	rec.UpdatedAt = now
	if err := s.store.Save(ctx, rec, m.credits); err != nil {
		return fmt.Errorf("save player %s: %w", playerID, err)
	}

	s.afterCommit(m)
	return nil
}

// settleBadges evaluates until no further badge unlocks. Badge XP can raise
// the level, which can unlock level badges, so this runs to a fixed point.
func (s *Service) settleBadges(m *mutation) error {
	if s.badges == nil {
		return nil
	}
	defs := s.badges.Definitions()

	for range len(defs) + 1 {
		_, unlocks := badge.Evaluate(defs, Snapshot(m.rec), badge.PriorFromEarned(m.rec.Badges), m.now)
		if len(unlocks) == 0 {
			return nil
		}
		for _, u := range unlocks {
			m.rec.Badges[u.BadgeID] = u.EarnedAt
			m.unlocks = append(m.unlocks, u)
			m.emit(domain.NewBadgeUnlockedEvent(m.rec.ID, u))
			if err := m.credit(domain.PoolAchievements, u.XPReward, "badge unlocked", u.BadgeID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) afterCommit(m *mutation) {
	for _, u := range m.unlocks {
		s.logger.Info("badge unlocked", "player", m.rec.ID, "badge", u.BadgeID, "xp", u.XPReward)
		if s.metrics != nil {
			s.metrics.BadgeUnlocked(u.BadgeID)
		}
	}
	if m.levelUps > 0 {
		s.logger.Info("level up", "player", m.rec.ID, "level", progression.ComputeLevel(m.rec.TotalXP()).Level)
		if s.metrics != nil {
			s.metrics.LevelUp()
		}
	}
	if s.dispatcher != nil {
		s.dispatcher.PublishAll(m.events)
	}
}

func (s *Service) lock(playerID string) func() {
	s.mu.Lock()
	l, ok := s.locks[playerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[playerID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) publishTranscript(ctx context.Context, t *transcript.Transcript) {
	if s.transcripts == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transcriptTimeout)
		defer cancel()
		if err := s.transcripts.Publish(ctx, t); err != nil {
			s.logger.Warn("failed to publish transcript", "player", t.PlayerID, "challenge", t.ChallengeID, "error", err)
		}
	}()
}
