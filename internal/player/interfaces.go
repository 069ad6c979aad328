package player

import (
	"context"

	"github.com/salesarmbiz-Dev/aimacademy/internal/debugger"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/progression"
)

// PlayerService defines the engine operations used by the daemon, the MCP
// server, and the CLI
type PlayerService interface {
	// SubmitChallenge evaluates an assembly against a challenge and applies
	// the outcome to the player's record
	SubmitChallenge(ctx context.Context, playerID, challengeID string, blocks []domain.PromptBlock, timeSpent int) (*ChallengeOutcome, error)

	// SubmitDebuggerRun stores a scored debugger run, keeping the best per level
	SubmitDebuggerRun(ctx context.Context, playerID string, progress *domain.LevelProgress) (*DebuggerOutcome, error)

	// AddXP credits a named pool
	AddXP(ctx context.Context, playerID, pool string, amount int) error

	// Stats returns the derived level view
	Stats(ctx context.Context, playerID string) (progression.UserStats, error)

	// Badges returns the badge views for a player
	Badges(ctx context.Context, playerID string) ([]domain.BadgeView, error)

	// LevelProgress returns the best run per debugger level
	LevelProgress(ctx context.Context, playerID string) ([]domain.LevelProgress, error)

	// Player returns the raw persisted record
	Player(ctx context.Context, playerID string) (*domain.PlayerRecord, error)

	// History returns recent XP credits, newest first
	History(ctx context.Context, playerID string, limit int) ([]domain.XPCredit, error)
}

// Ensure Service implements PlayerService and the debugger recorder
var (
	_ PlayerService     = (*Service)(nil)
	_ debugger.Recorder = (*Service)(nil)
)

// Store defines the persistence interface for player records. The JSON,
// SQLite, and PostgreSQL stores implement it. Save writes the record and
// appends the credits as one unit.
type Store interface {
	Get(ctx context.Context, id string) (*domain.PlayerRecord, error)
	Save(ctx context.Context, rec *domain.PlayerRecord, credits []domain.XPCredit) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Credits(ctx context.Context, id string, limit int) ([]domain.XPCredit, error)
}

// Ensure JSONStore implements Store
var _ Store = (*JSONStore)(nil)

// ChallengeSource resolves challenges by id
type ChallengeSource interface {
	Get(id string) (domain.Challenge, error)
}

// BadgeSource provides the badge definitions to evaluate
type BadgeSource interface {
	Definitions() []domain.BadgeDefinition
}
