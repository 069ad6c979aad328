package domain

import "time"

// Challenge badge identifiers awarded directly by the evaluator
const (
	BadgeMinimalist = "minimalist"
	BadgeMaximizer  = "maximizer"
)

// Bonus is one labelled XP award inside a result
type Bonus struct {
	Label string `json:"label"`
	XP    int    `json:"xp"`
}

// ChallengeResult is the outcome of one challenge submission. It is built once
// and never mutated; retries produce a new result.
type ChallengeResult struct {
	ChallengeID string        `json:"challenge_id"`
	Mode        ChallengeMode `json:"mode"`
	Attempt     int           `json:"attempt"`
	Passed      bool          `json:"passed"`
	Score       int           `json:"score"`
	BlocksUsed  int           `json:"blocks_used"`
	TimeSpent   int           `json:"time_spent"`
	Stars       int           `json:"stars"`
	XPEarned    int           `json:"xp_earned"`
	Bonuses     []Bonus       `json:"bonuses"`
	Badge       string        `json:"badge,omitempty"`
	Reasons     []string      `json:"reasons,omitempty"` // unmet pass conditions
	EvaluatedAt time.Time     `json:"evaluated_at"`
}
