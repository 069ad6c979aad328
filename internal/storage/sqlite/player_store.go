package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// PlayerStore implements player persistence backed by SQLite.
type PlayerStore struct {
	db *DB
}

// NewPlayerStore creates a new SQLite-backed player store.
func NewPlayerStore(db *DB) *PlayerStore {
	return &PlayerStore{db: db}
}

// Save persists a record and appends its new credits in one transaction.
// Badge rows are insert-only so an earned timestamp is never rewritten.
func (s *PlayerStore) Save(ctx context.Context, rec *domain.PlayerRecord, credits []domain.XPCredit) error {
	challengeBadges, err := json.Marshal(rec.ChallengeBadges)
	if err != nil {
		return fmt.Errorf("marshal challenge_badges: %w", err)
	}
	blockUsage, err := json.Marshal(rec.BlockUsage)
	if err != nil {
		return fmt.Errorf("marshal block_usage: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO players (id, challenge_badges, block_usage, streak_current,
			streak_longest, streak_last_day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			challenge_badges=excluded.challenge_badges,
			block_usage=excluded.block_usage,
			streak_current=excluded.streak_current,
			streak_longest=excluded.streak_longest,
			streak_last_day=excluded.streak_last_day,
			updated_at=excluded.updated_at`,
		rec.ID, string(challengeBadges), string(blockUsage), rec.Streak.Current,
		rec.Streak.Longest, rec.Streak.LastDay, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}

	for pool, total := range rec.XPPools {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO xp_pools (player_id, pool, total) VALUES (?, ?, ?)
			ON CONFLICT(player_id, pool) DO UPDATE SET total=excluded.total`,
			rec.ID, pool, total)
		if err != nil {
			return fmt.Errorf("upsert pool %s: %w", pool, err)
		}
	}

	for badgeID, earnedAt := range rec.Badges {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO player_badges (player_id, badge_id, earned_at) VALUES (?, ?, ?)",
			rec.ID, badgeID, earnedAt)
		if err != nil {
			return fmt.Errorf("insert badge %s: %w", badgeID, err)
		}
	}

	for _, lp := range rec.Levels {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO level_progress (player_id, level, bugs_found, types_correct,
				fix_quality_score, time_seconds, hints_used, score, stars, xp_earned,
				completed, timed_out, submitted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(player_id, level) DO UPDATE SET
				bugs_found=excluded.bugs_found,
				types_correct=excluded.types_correct,
				fix_quality_score=excluded.fix_quality_score,
				time_seconds=excluded.time_seconds,
				hints_used=excluded.hints_used,
				score=excluded.score,
				stars=excluded.stars,
				xp_earned=excluded.xp_earned,
				completed=excluded.completed,
				timed_out=excluded.timed_out,
				submitted_at=excluded.submitted_at`,
			rec.ID, lp.Level, lp.BugsFound, lp.TypesCorrect, lp.FixQualityScore,
			lp.TimeSeconds, lp.HintsUsed, lp.Score, lp.Stars, lp.XPEarned,
			lp.Completed, lp.TimedOut, lp.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert level %d: %w", lp.Level, err)
		}
	}

	for id, cr := range rec.Challenges {
		var completedAt sql.NullTime
		if cr.CompletedAt != nil {
			completedAt = sql.NullTime{Time: *cr.CompletedAt, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO challenge_records (player_id, challenge_id, attempts, completed,
				best_score, best_stars, xp_credited, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(player_id, challenge_id) DO UPDATE SET
				attempts=excluded.attempts,
				completed=excluded.completed,
				best_score=excluded.best_score,
				best_stars=excluded.best_stars,
				xp_credited=excluded.xp_credited,
				completed_at=excluded.completed_at`,
			rec.ID, id, cr.Attempts, cr.Completed, cr.BestScore, cr.BestStars,
			cr.XPCredited, completedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert challenge %s: %w", id, err)
		}
	}

	for _, c := range credits {
		var source sql.NullString
		if c.Source != "" {
			source = sql.NullString{String: c.Source, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO xp_credits (id, player_id, pool, amount, reason, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, rec.ID, c.Pool, c.Amount, c.Reason, source, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit player: %w", err)
	}
	return nil
}

// Get assembles a player record from its tables.
func (s *PlayerStore) Get(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	rec := &domain.PlayerRecord{ID: id}
	var challengeBadges, blockUsage string

	err := s.db.QueryRowContext(ctx, `
		SELECT challenge_badges, block_usage, streak_current, streak_longest,
			streak_last_day, created_at, updated_at
		FROM players WHERE id = ?`, id,
	).Scan(&challengeBadges, &blockUsage, &rec.Streak.Current, &rec.Streak.Longest,
		&rec.Streak.LastDay, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}

	if err := json.Unmarshal([]byte(challengeBadges), &rec.ChallengeBadges); err != nil {
		return nil, fmt.Errorf("unmarshal challenge_badges: %w", err)
	}
	if err := json.Unmarshal([]byte(blockUsage), &rec.BlockUsage); err != nil {
		return nil, fmt.Errorf("unmarshal block_usage: %w", err)
	}
	rec.EnsureMaps()

	if err := s.loadPools(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadBadges(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadLevels(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadChallenges(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PlayerStore) loadPools(ctx context.Context, rec *domain.PlayerRecord) error {
	rows, err := s.db.QueryContext(ctx, "SELECT pool, total FROM xp_pools WHERE player_id = ?", rec.ID)
	if err != nil {
		return fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pool string
		var total int
		if err := rows.Scan(&pool, &total); err != nil {
			return fmt.Errorf("scan pool: %w", err)
		}
		rec.XPPools[pool] = total
	}
	return rows.Err()
}

func (s *PlayerStore) loadBadges(ctx context.Context, rec *domain.PlayerRecord) error {
	rows, err := s.db.QueryContext(ctx, "SELECT badge_id, earned_at FROM player_badges WHERE player_id = ?", rec.ID)
	if err != nil {
		return fmt.Errorf("query badges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b string
		var earned sql.NullTime
		if err := rows.Scan(&b, &earned); err != nil {
			return fmt.Errorf("scan badge: %w", err)
		}
		rec.Badges[b] = earned.Time.UTC()
	}
	return rows.Err()
}

func (s *PlayerStore) loadLevels(ctx context.Context, rec *domain.PlayerRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, bugs_found, types_correct, fix_quality_score, time_seconds,
			hints_used, score, stars, xp_earned, completed, timed_out, submitted_at
		FROM level_progress WHERE player_id = ?`, rec.ID)
	if err != nil {
		return fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lp domain.LevelProgress
		var submitted sql.NullTime
		if err := rows.Scan(&lp.Level, &lp.BugsFound, &lp.TypesCorrect, &lp.FixQualityScore,
			&lp.TimeSeconds, &lp.HintsUsed, &lp.Score, &lp.Stars, &lp.XPEarned,
			&lp.Completed, &lp.TimedOut, &submitted); err != nil {
			return fmt.Errorf("scan level: %w", err)
		}
		lp.SubmittedAt = submitted.Time.UTC()
		rec.Levels[lp.Level] = lp
	}
	return rows.Err()
}

func (s *PlayerStore) loadChallenges(ctx context.Context, rec *domain.PlayerRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT challenge_id, attempts, completed, best_score, best_stars,
			xp_credited, completed_at
		FROM challenge_records WHERE player_id = ?`, rec.ID)
	if err != nil {
		return fmt.Errorf("query challenges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var cr domain.ChallengeRecord
		var completedAt sql.NullTime
		if err := rows.Scan(&id, &cr.Attempts, &cr.Completed, &cr.BestScore,
			&cr.BestStars, &cr.XPCredited, &completedAt); err != nil {
			return fmt.Errorf("scan challenge: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time.UTC()
			cr.CompletedAt = &t
		}
		rec.Challenges[id] = cr
	}
	return rows.Err()
}

// Delete removes a player; child rows cascade.
func (s *PlayerStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM players WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
	}
	return nil
}

// List returns all player IDs.
func (s *PlayerStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM players ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Credits returns up to limit credits, newest first.
func (s *PlayerStore) Credits(ctx context.Context, id string, limit int) ([]domain.XPCredit, error) {
	query := `SELECT id, player_id, pool, amount, reason, source, created_at
		FROM xp_credits WHERE player_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{id}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query credits: %w", err)
	}
	defer rows.Close()

	var credits []domain.XPCredit
	for rows.Next() {
		var c domain.XPCredit
		var source sql.NullString
		var created sql.NullTime
		if err := rows.Scan(&c.ID, &c.PlayerID, &c.Pool, &c.Amount, &c.Reason, &source, &created); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		c.Source = source.String
		c.CreatedAt = created.Time.UTC()
		credits = append(credits, c)
	}
	return credits, rows.Err()
}
