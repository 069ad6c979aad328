package badge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// MetricFunc reads one counter out of a player snapshot
type MetricFunc func(domain.PlayerSnapshot) int

// Metric names understood by the tracker. Parameterised metrics take the form
// "name:arg".
const (
	MetricTotalXP             = "total_xp"
	MetricLevel               = "level"
	MetricChallengesCompleted = "challenges_completed"
	MetricPerfectChallenges   = "perfect_challenges"
	MetricLevelsCompleted     = "debugger_levels_completed"
	MetricPerfectLevels       = "debugger_perfect_levels"
	MetricStreak              = "streak"
	MetricBlockUsage          = "block_usage"
	MetricChallengeBadge      = "challenge_badge"
	MetricChallengeCompleted  = "challenge_completed"
)

var simpleMetrics = map[string]MetricFunc{
	MetricTotalXP:             func(s domain.PlayerSnapshot) int { return s.TotalXP },
	MetricLevel:               func(s domain.PlayerSnapshot) int { return s.Level },
	MetricChallengesCompleted: func(s domain.PlayerSnapshot) int { return s.ChallengesCompleted },
	MetricPerfectChallenges:   func(s domain.PlayerSnapshot) int { return s.ThreeStarChallenges },
	MetricLevelsCompleted:     func(s domain.PlayerSnapshot) int { return s.LevelsCompleted },
	MetricPerfectLevels:       func(s domain.PlayerSnapshot) int { return s.PerfectLevels },
	MetricStreak:              func(s domain.PlayerSnapshot) int { return s.LongestStreak },
}

// ResolveMetric returns the reader for a metric name
func ResolveMetric(name string) (MetricFunc, error) {
	if fn, ok := simpleMetrics[name]; ok {
		return fn, nil
	}

	base, arg, ok := strings.Cut(name, ":")
	if !ok || arg == "" {
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidBadge, name)
	}

	switch base {
	case MetricBlockUsage:
		bt, err := domain.ParseBlockType(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: metric %q: %v", domain.ErrInvalidBadge, name, err)
		}
		return func(s domain.PlayerSnapshot) int { return s.BlockUsage[bt] }, nil
	case MetricChallengeBadge:
		return flag(func(s domain.PlayerSnapshot) bool { return s.ChallengeBadges[arg] }), nil
	case MetricChallengeCompleted:
		return flag(func(s domain.PlayerSnapshot) bool { return s.CompletedChallenges[arg] }), nil
	}
	return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidBadge, name)
}

func flag(pred func(domain.PlayerSnapshot) bool) MetricFunc {
	return func(s domain.PlayerSnapshot) int {
		if pred(s) {
			return 1
		}
		return 0
	}
}

// Predicates are named unlock rules with no numeric progress
var predicates = map[string]func(domain.PlayerSnapshot) bool{
	"all_block_types": func(s domain.PlayerSnapshot) bool {
		for _, bt := range domain.AllBlockTypes {
			if s.BlockUsage[bt] == 0 {
				return false
			}
		}
		return true
	},
	"both_challenge_badges": func(s domain.PlayerSnapshot) bool {
		return s.ChallengeBadges[domain.BadgeMinimalist] && s.ChallengeBadges[domain.BadgeMaximizer]
	},
	"cross_training": func(s domain.PlayerSnapshot) bool {
		return s.ChallengesCompleted > 0 && s.LevelsCompleted > 0
	},
}

// ResolvePredicate returns a named predicate
func ResolvePredicate(name string) (func(domain.PlayerSnapshot) bool, error) {
	p, ok := predicates[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown predicate %q", domain.ErrInvalidBadge, name)
	}
	return p, nil
}

// PredicateNames lists the registered predicates
func PredicateNames() []string {
	names := make([]string, 0, len(predicates))
	for name := range predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
