package domain

import "time"

// BadgeDefinition describes an achievement and its unlock rule. A badge is
// either metric based (Metric reaches Target, progress is reported while
// locked) or predicate based (no numeric progress).
type BadgeDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Requirement string `json:"requirement"`
	XPReward    int    `json:"xp_reward"`
	Metric      string `json:"metric,omitempty"`
	Target      int    `json:"target,omitempty"`

	Predicate func(PlayerSnapshot) bool `json:"-"`
}

// Validate checks that the definition has exactly one usable unlock rule
func (d BadgeDefinition) Validate() error {
	if d.ID == "" {
		return &ConfigError{Kind: ErrInvalidBadge, Field: "id", Reason: "is required"}
	}
	if d.XPReward < 0 {
		return &ConfigError{Kind: ErrInvalidBadge, ID: d.ID, Field: "xp_reward", Reason: "must not be negative"}
	}
	switch {
	case d.Metric != "" && d.Predicate != nil:
		return &ConfigError{Kind: ErrInvalidBadge, ID: d.ID, Field: "metric", Reason: "cannot combine a metric with a predicate"}
	case d.Metric != "" && d.Target <= 0:
		return &ConfigError{Kind: ErrInvalidBadge, ID: d.ID, Field: "target", Reason: "must be positive"}
	case d.Metric == "" && d.Predicate == nil:
		return &ConfigError{Kind: ErrInvalidBadge, ID: d.ID, Field: "metric", Reason: "needs a metric or a predicate"}
	}
	return nil
}

// Progress toward a numeric badge requirement
type Progress struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

// -----------------------------------------------------------------------------
// BadgeState - Locked | Earned
// -----------------------------------------------------------------------------

// BadgeState is the two-state badge variant. The only transition is
// Locked -> Earned; nothing produces a Locked state from an Earned one.
type BadgeState interface {
	IsEarned() bool
	isBadgeState()
}

// BadgeLocked is a badge not yet earned, with optional numeric progress
type BadgeLocked struct {
	Progress *Progress
}

// BadgeEarned is a badge earned at a fixed point in time
type BadgeEarned struct {
	At time.Time
}

func (BadgeLocked) IsEarned() bool { return false }
func (BadgeEarned) IsEarned() bool { return true }

func (BadgeLocked) isBadgeState() {}
func (BadgeEarned) isBadgeState() {}

// BadgeView is the read model the UI renders for one badge
type BadgeView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Requirement string     `json:"requirement"`
	XPReward    int        `json:"xp_reward"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
	Progress    *Progress  `json:"progress,omitempty"`
}

// BadgeUnlock is emitted exactly once, on the evaluation that earns a badge
type BadgeUnlock struct {
	BadgeID  string    `json:"badge_id"`
	Name     string    `json:"name"`
	XPReward int       `json:"xp_reward"`
	EarnedAt time.Time `json:"earned_at"`
}
