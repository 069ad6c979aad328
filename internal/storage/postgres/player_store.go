package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/player"
)

// Ensure PlayerStore implements player.Store
var _ player.Store = (*PlayerStore)(nil)

// PlayerStore implements player.Store using PostgreSQL
type PlayerStore struct {
	pool *pgxpool.Pool
}

// NewPlayerStore creates a new PostgreSQL player store
func NewPlayerStore(pool *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{pool: pool}
}

// creditMetadata is the JSONB payload stored beside each credit
type creditMetadata struct {
	Source string `json:"source,omitempty"`
}

// encodeMetadata returns a null column for credits without a source
func encodeMetadata(c domain.XPCredit) (pqtype.NullRawMessage, error) {
	if c.Source == "" {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(creditMetadata{Source: c.Source})
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func decodeMetadata(m pqtype.NullRawMessage) (string, error) {
	if !m.Valid || len(m.RawMessage) == 0 {
		return "", nil
	}
	var meta creditMetadata
	if err := json.Unmarshal(m.RawMessage, &meta); err != nil {
		return "", err
	}
	return meta.Source, nil
}

// Save writes the record and appends credits in one transaction
func (s *PlayerStore) Save(ctx context.Context, rec *domain.PlayerRecord, credits []domain.XPCredit) error {
	challengeBadges, err := json.Marshal(rec.ChallengeBadges)
	if err != nil {
		return err
	}
	blockUsage, err := json.Marshal(rec.BlockUsage)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO players (id, challenge_badges, block_usage, streak_current,
			streak_longest, streak_last_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			challenge_badges = EXCLUDED.challenge_badges,
			block_usage = EXCLUDED.block_usage,
			streak_current = EXCLUDED.streak_current,
			streak_longest = EXCLUDED.streak_longest,
			streak_last_day = EXCLUDED.streak_last_day,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, query,
		rec.ID, challengeBadges, blockUsage, rec.Streak.Current,
		rec.Streak.Longest, rec.Streak.LastDay, rec.CreatedAt, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}

	batch := &pgx.Batch{}
	for pool, total := range rec.XPPools {
		batch.Queue(`
			INSERT INTO xp_pools (player_id, pool, total) VALUES ($1, $2, $3)
			ON CONFLICT (player_id, pool) DO UPDATE SET total = EXCLUDED.total`,
			rec.ID, pool, total)
	}
	for badgeID, earnedAt := range rec.Badges {
		batch.Queue(`
			INSERT INTO player_badges (player_id, badge_id, earned_at) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			rec.ID, badgeID, earnedAt)
	}
	for _, lp := range rec.Levels {
		progress, err := json.Marshal(lp)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO level_progress (player_id, level, progress, score) VALUES ($1, $2, $3, $4)
			ON CONFLICT (player_id, level) DO UPDATE SET progress = EXCLUDED.progress, score = EXCLUDED.score`,
			rec.ID, lp.Level, progress, lp.Score)
	}
	for id, cr := range rec.Challenges {
		record, err := json.Marshal(cr)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO challenge_records (player_id, challenge_id, record) VALUES ($1, $2, $3)
			ON CONFLICT (player_id, challenge_id) DO UPDATE SET record = EXCLUDED.record`,
			rec.ID, id, record)
	}
	for _, c := range credits {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return fmt.Errorf("credit id %q: %w", c.ID, err)
		}
		meta, err := encodeMetadata(c)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO xp_credits (id, player_id, pool, amount, reason, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, rec.ID, c.Pool, c.Amount, c.Reason, meta, c.CreatedAt)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write player rows: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Get assembles a player record
func (s *PlayerStore) Get(ctx context.Context, id string) (*domain.PlayerRecord, error) {
	rec := &domain.PlayerRecord{ID: id}
	var challengeBadges, blockUsage []byte

	query := `
		SELECT challenge_badges, block_usage, streak_current, streak_longest,
			streak_last_day, created_at, updated_at
		FROM players WHERE id = $1
	`
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&challengeBadges, &blockUsage, &rec.Streak.Current, &rec.Streak.Longest,
		&rec.Streak.LastDay, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
		}
		return nil, err
	}
	if err := json.Unmarshal(challengeBadges, &rec.ChallengeBadges); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(blockUsage, &rec.BlockUsage); err != nil {
		return nil, err
	}
	rec.EnsureMaps()

	rows, err := s.pool.Query(ctx, `SELECT pool, total FROM xp_pools WHERE player_id = $1`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var pool string
		var total int
		if err := rows.Scan(&pool, &total); err != nil {
			rows.Close()
			return nil, err
		}
		rec.XPPools[pool] = total
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `SELECT badge_id, earned_at FROM player_badges WHERE player_id = $1`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var badgeID string
		var earnedAt time.Time
		if err := rows.Scan(&badgeID, &earnedAt); err != nil {
			rows.Close()
			return nil, err
		}
		rec.Badges[badgeID] = earnedAt.UTC()
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `SELECT progress FROM level_progress WHERE player_id = $1`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var data []byte
		var lp domain.LevelProgress
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal(data, &lp); err != nil {
			rows.Close()
			return nil, err
		}
		rec.Levels[lp.Level] = lp
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `SELECT challenge_id, record FROM challenge_records WHERE player_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var challengeID string
		var data []byte
		var cr domain.ChallengeRecord
		if err := rows.Scan(&challengeID, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &cr); err != nil {
			return nil, err
		}
		rec.Challenges[challengeID] = cr
	}
	return rec, rows.Err()
}

// Delete removes a player; child rows cascade
func (s *PlayerStore) Delete(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
	}
	return nil
}

// List returns all player ids
func (s *PlayerStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Credits returns up to limit credits, newest first
func (s *PlayerStore) Credits(ctx context.Context, id string, limit int) ([]domain.XPCredit, error) {
	query := `
		SELECT id, player_id, pool, amount, reason, metadata, created_at
		FROM xp_credits WHERE player_id = $1
		ORDER BY created_at DESC
	`
	args := []any{id}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []domain.XPCredit
	for rows.Next() {
		var c domain.XPCredit
		var creditID uuid.UUID
		var meta pqtype.NullRawMessage
		if err := rows.Scan(&creditID, &c.PlayerID, &c.Pool, &c.Amount, &c.Reason, &meta, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ID = creditID.String()
		c.CreatedAt = c.CreatedAt.UTC()
		if c.Source, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("decode credit metadata: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}
