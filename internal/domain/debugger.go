package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// BugType is the category a player assigns to a planted prompt bug
type BugType string

const (
	BugAmbiguity         BugType = "ambiguity"
	BugMissingContext    BugType = "missing_context"
	BugWrongRole         BugType = "wrong_role"
	BugConflicting       BugType = "conflicting_instructions"
	BugVagueFormat       BugType = "vague_format"
	BugToneMismatch      BugType = "tone_mismatch"
	BugScopeCreep        BugType = "scope_creep"
	BugHallucinationRisk BugType = "hallucination_risk"
)

// AllBugTypes lists the eight bug categories
var AllBugTypes = []BugType{
	BugAmbiguity,
	BugMissingContext,
	BugWrongRole,
	BugConflicting,
	BugVagueFormat,
	BugToneMismatch,
	BugScopeCreep,
	BugHallucinationRisk,
}

// ParseBugType parses a bug category
func ParseBugType(s string) (BugType, error) {
	t := BugType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBugType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the eight categories
func (t BugType) Valid() bool {
	for _, known := range AllBugTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Span is a half-open rune range [Start, End) within a level prompt
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Overlaps reports whether two spans share at least one rune
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// PlantedBug is one ground-truth defect in a debugger level
type PlantedBug struct {
	ID           string  `json:"id"`
	Span         Span    `json:"span"`
	Type         BugType `json:"type"`
	ReferenceFix string  `json:"reference_fix"`
	Hint         string  `json:"hint,omitempty"`
}

// DebuggerLevel is a static debugger minigame level
type DebuggerLevel struct {
	Number           int          `json:"number"`
	Title            string       `json:"title"`
	Prompt           string       `json:"prompt"`
	BugCount         int          `json:"bug_count"`
	Bugs             []PlantedBug `json:"bugs"`
	ParTimeSeconds   int          `json:"par_time_seconds"`
	TimeLimitSeconds int          `json:"time_limit_seconds,omitempty"`
	XPReward         int          `json:"xp_reward"`
}

// Validate rejects degenerate levels before any run is scored against them
func (l *DebuggerLevel) Validate() error {
	if l.Number < 1 {
		return levelError(l.Number, "number", "must be at least 1")
	}
	if l.BugCount <= 0 {
		return levelError(l.Number, "bug_count", "must be at least 1")
	}
	if len(l.Bugs) != l.BugCount {
		return levelError(l.Number, "bugs", fmt.Sprintf("has %d bugs, bug_count is %d", len(l.Bugs), l.BugCount))
	}
	if l.ParTimeSeconds <= 0 {
		return levelError(l.Number, "par_time_seconds", "must be positive")
	}
	if l.TimeLimitSeconds < 0 {
		return levelError(l.Number, "time_limit_seconds", "must not be negative")
	}
	if l.XPReward < 0 {
		return levelError(l.Number, "xp_reward", "must not be negative")
	}

	promptLen := utf8.RuneCountInString(l.Prompt)
	ids := make(map[string]bool, len(l.Bugs))
	for i, b := range l.Bugs {
		if b.ID == "" || ids[b.ID] {
			return levelError(l.Number, "bugs", "bug ids must be present and unique")
		}
		ids[b.ID] = true
		if !b.Type.Valid() {
			return levelError(l.Number, "bugs", fmt.Sprintf("bug %q has unknown type %q", b.ID, b.Type))
		}
		if b.Span.Start < 0 || b.Span.End <= b.Span.Start || b.Span.End > promptLen {
			return levelError(l.Number, "bugs", fmt.Sprintf("bug %q span is outside the prompt", b.ID))
		}
		for _, other := range l.Bugs[:i] {
			if other.Span.Overlaps(b.Span) {
				return levelError(l.Number, "bugs", fmt.Sprintf("bugs %q and %q overlap", other.ID, b.ID))
			}
		}
	}
	return nil
}

// Bug returns the planted bug with the given id
func (l *DebuggerLevel) Bug(id string) (PlantedBug, bool) {
	for _, b := range l.Bugs {
		if b.ID == id {
			return b, true
		}
	}
	return PlantedBug{}, false
}

// BugAt returns the planted bug overlapping span, if any
func (l *DebuggerLevel) BugAt(span Span) (PlantedBug, bool) {
	for _, b := range l.Bugs {
		if b.Span.Overlaps(span) {
			return b, true
		}
	}
	return PlantedBug{}, false
}

func levelError(number int, field, reason string) error {
	return &ConfigError{Kind: ErrInvalidLevel, ID: fmt.Sprintf("level-%d", number), Field: field, Reason: reason}
}

// LevelProgress records the outcome of one debugger level attempt
type LevelProgress struct {
	Level           int       `json:"level"`
	BugsFound       int       `json:"bugs_found"`
	TypesCorrect    int       `json:"types_correct"`
	FixQualityScore int       `json:"fix_quality_score"`
	TimeSeconds     int       `json:"time_seconds"`
	HintsUsed       int       `json:"hints_used"`
	Score           int       `json:"score"`
	Stars           int       `json:"stars"`
	XPEarned        int       `json:"xp_earned"`
	Completed       bool      `json:"completed"`
	TimedOut        bool      `json:"timed_out,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// StarsForScore maps a composite debugger score onto 0-3 stars
func StarsForScore(score int) int {
	switch {
	case score >= 85:
		return 3
	case score >= 60:
		return 2
	case score >= 30:
		return 1
	default:
		return 0
	}
}

// Better reports whether p should replace prev as the retained record.
// Higher score wins; ties go to the faster run.
func (p LevelProgress) Better(prev LevelProgress) bool {
	if p.Score != prev.Score {
		return p.Score > prev.Score
	}
	return p.TimeSeconds < prev.TimeSeconds
}
