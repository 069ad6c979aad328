package domain

import (
	"math"
	"time"
)

// XP pool names. Each minigame credits its own pool; totals are summed on read.
const (
	PoolPromptLab    = "prompt_lab"
	PoolDebugger     = "debugger"
	PoolAchievements = "achievements"
)

// ChallengeRecord tracks a player's history with one challenge
type ChallengeRecord struct {
	Attempts    int        `json:"attempts"`
	Completed   bool       `json:"completed"`
	BestScore   int        `json:"best_score"`
	BestStars   int        `json:"best_stars"`
	XPCredited  int        `json:"xp_credited"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Streak counts consecutive UTC calendar days with activity
type Streak struct {
	Current int    `json:"current"`
	Longest int    `json:"longest"`
	LastDay string `json:"last_day,omitempty"` // YYYY-MM-DD
}

// PlayerRecord is the persisted per-player engine state. Derived views such
// as level and title are never stored.
type PlayerRecord struct {
	ID              string                     `json:"id"`
	XPPools         map[string]int             `json:"xp_pools"`
	Badges          map[string]time.Time       `json:"badges"`
	Levels          map[int]LevelProgress      `json:"levels"`
	Challenges      map[string]ChallengeRecord `json:"challenges"`
	ChallengeBadges map[string]bool            `json:"challenge_badges"`
	BlockUsage      map[BlockType]int          `json:"block_usage"`
	Streak          Streak                     `json:"streak"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// NewPlayerRecord creates an empty record for a player
func NewPlayerRecord(id string, now time.Time) *PlayerRecord {
	p := &PlayerRecord{ID: id, CreatedAt: now, UpdatedAt: now}
	p.EnsureMaps()
	return p
}

// EnsureMaps initializes nil maps, e.g. after decoding an older document
func (p *PlayerRecord) EnsureMaps() {
	if p.XPPools == nil {
		p.XPPools = make(map[string]int)
	}
	if p.Badges == nil {
		p.Badges = make(map[string]time.Time)
	}
	if p.Levels == nil {
		p.Levels = make(map[int]LevelProgress)
	}
	if p.Challenges == nil {
		p.Challenges = make(map[string]ChallengeRecord)
	}
	if p.ChallengeBadges == nil {
		p.ChallengeBadges = make(map[string]bool)
	}
	if p.BlockUsage == nil {
		p.BlockUsage = make(map[BlockType]int)
	}
}

// TotalXP sums every XP pool, saturating at math.MaxInt
func (p *PlayerRecord) TotalXP() int {
	total := 0
	for _, xp := range p.XPPools {
		if xp > math.MaxInt-total {
			return math.MaxInt
		}
		total += xp
	}
	return total
}

// TouchStreak records activity on the UTC day of now
func (p *PlayerRecord) TouchStreak(now time.Time) {
	day := now.UTC().Format(time.DateOnly)
	if p.Streak.LastDay == day {
		return
	}

	yesterday := now.UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	if p.Streak.LastDay == yesterday {
		p.Streak.Current++
	} else {
		p.Streak.Current = 1
	}
	p.Streak.LastDay = day
	p.Streak.Longest = max(p.Streak.Longest, p.Streak.Current)
}

// PlayerSnapshot is the cumulative state badge predicates are evaluated against
type PlayerSnapshot struct {
	PlayerID            string
	TotalXP             int
	Level               int
	XPByPool            map[string]int
	ChallengesCompleted int
	ThreeStarChallenges int
	CompletedChallenges map[string]bool
	ChallengeBadges     map[string]bool
	LevelsCompleted     int
	PerfectLevels       int
	BlockUsage          map[BlockType]int
	CurrentStreak       int
	LongestStreak       int
}

// XPCredit is one append-only entry in a player's XP history
type XPCredit struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	Pool      string    `json:"pool"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source,omitempty"` // challenge id, level number, or badge id
	CreatedAt time.Time `json:"created_at"`
}
