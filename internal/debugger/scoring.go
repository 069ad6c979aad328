package debugger

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// Composite score weights
const (
	detectionWeight  = 40
	typeWeight       = 30
	fixWeight        = 20
	parBonus         = 10
	nearParBonus     = 5
	nearParFactor    = 1.5
	minXP            = 5
	substantialRunes = 10
)

// Breakdown is the composite score split into its parts
type Breakdown struct {
	Detection    int `json:"detection"`
	TypeAccuracy int `json:"type_accuracy"`
	FixQuality   int `json:"fix_quality"`
	TimeBonus    int `json:"time_bonus"`
	Total        int `json:"total"`
}

// SubmitLevel scores a debugger level submission. selections maps each bug the
// player found to the type they assigned; an empty type marks a bug found but
// never classified. fixes maps bug ids to replacement text. Missing fixes
// score as failing. hintsUsed is recorded but does not affect the score.
func SubmitLevel(level *domain.DebuggerLevel, selections map[string]domain.BugType, fixes map[string]string, timeElapsed, hintsUsed int) (*domain.LevelProgress, error) {
	return SubmitLevelAt(level, selections, fixes, timeElapsed, hintsUsed, time.Now())
}

// SubmitLevelAt is SubmitLevel with an explicit submission time
func SubmitLevelAt(level *domain.DebuggerLevel, selections map[string]domain.BugType, fixes map[string]string, timeElapsed, hintsUsed int, now time.Time) (*domain.LevelProgress, error) {
	if level == nil {
		return nil, fmt.Errorf("%w: level is required", domain.ErrInvalidInput)
	}
	if err := level.Validate(); err != nil {
		return nil, err
	}
	if timeElapsed < 0 || hintsUsed < 0 {
		return nil, fmt.Errorf("%w: time and hints must not be negative", domain.ErrInvalidInput)
	}

	found, correct := 0, 0
	for id, chosen := range selections {
		bug, ok := level.Bug(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q in level %d", domain.ErrUnknownBug, id, level.Number)
		}
		if chosen != "" && !chosen.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBugType, chosen)
		}
		found++
		if chosen == bug.Type {
			correct++
		}
	}
	for id := range fixes {
		if _, ok := level.Bug(id); !ok {
			return nil, fmt.Errorf("%w: fix for %q in level %d", domain.ErrUnknownBug, id, level.Number)
		}
	}

	substantial := 0
	for _, bug := range level.Bugs {
		if IsSubstantialFix(fixes[bug.ID]) {
			substantial++
		}
	}

	b := Score(level.BugCount, found, correct, substantial, timeElapsed, level.ParTimeSeconds)
	stars := domain.StarsForScore(b.Total)

	return &domain.LevelProgress{
		Level:           level.Number,
		BugsFound:       found,
		TypesCorrect:    correct,
		FixQualityScore: b.FixQuality,
		TimeSeconds:     timeElapsed,
		HintsUsed:       hintsUsed,
		Score:           b.Total,
		Stars:           stars,
		XPEarned:        XPForScore(level.XPReward, b.Total),
		Completed:       stars > 0,
		SubmittedAt:     now,
	}, nil
}

// Score computes the composite debugger score. bugCount must be positive.
func Score(bugCount, found, correct, substantialFixes, elapsed, par int) Breakdown {
	b := Breakdown{
		Detection:    weighted(found, bugCount, detectionWeight),
		TypeAccuracy: weighted(correct, bugCount, typeWeight),
		FixQuality:   weighted(substantialFixes, bugCount, fixWeight),
		TimeBonus:    TimeBonus(elapsed, par),
	}
	b.Total = max(0, min(100, b.Detection+b.TypeAccuracy+b.FixQuality+b.TimeBonus))
	return b
}

// TimeBonus awards 10 at or under par, 5 within one and a half par, else 0
func TimeBonus(elapsed, par int) int {
	switch {
	case elapsed <= par:
		return parBonus
	case float64(elapsed) <= float64(par)*nearParFactor:
		return nearParBonus
	default:
		return 0
	}
}

// XPForScore scales a level reward by score with a floor of 5
func XPForScore(reward, score int) int {
	return max(minXP, int(math.Round(float64(reward)*float64(score)/100)))
}

// IsSubstantialFix reports whether a fix counts toward fix quality: more than
// ten runes after trimming. This is a length proxy; nothing checks meaning.
func IsSubstantialFix(fix string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(fix)) > substantialRunes
}

func weighted(n, total, weight int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * float64(weight)))
}
