package badge

import (
	"errors"
	"testing"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

func testDefs() []domain.BadgeDefinition {
	return []domain.BadgeDefinition{
		{ID: "first", Name: "First", Requirement: "1 challenge", XPReward: 25, Metric: MetricChallengesCompleted, Target: 1},
		{ID: "five", Name: "Five", Requirement: "5 challenges", XPReward: 75, Metric: MetricChallengesCompleted, Target: 5},
		{ID: "streak", Name: "Streak", Requirement: "3 days", XPReward: 30, Metric: MetricStreak, Target: 3},
		{ID: "toolbox", Name: "Toolbox", Requirement: "all types", XPReward: 50, Predicate: predicates["all_block_types"]},
	}
}

func TestEvaluate_LockedProgress(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := domain.PlayerSnapshot{ChallengesCompleted: 2, LongestStreak: 1}

	views, unlocks := Evaluate(testDefs(), snap, nil, now)
	if len(views) != 4 {
		t.Fatalf("len(views) = %d, want 4", len(views))
	}

	if !views[0].Earned || views[0].EarnedAt == nil || !views[0].EarnedAt.Equal(now) {
		t.Errorf("first = %+v, want earned now", views[0])
	}
	if views[1].Earned || views[1].Progress == nil || *views[1].Progress != (domain.Progress{Current: 2, Target: 5}) {
		t.Errorf("five = %+v, want 2/5", views[1])
	}
	if views[3].Earned || views[3].Progress != nil {
		t.Errorf("toolbox = %+v, want locked without progress", views[3])
	}

	if len(unlocks) != 1 || unlocks[0].BadgeID != "first" || unlocks[0].XPReward != 25 {
		t.Errorf("unlocks = %+v, want only first", unlocks)
	}
}

func TestEvaluate_EarnedIsSticky(t *testing.T) {
	earnedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	later := earnedAt.Add(72 * time.Hour)

	prior := map[string]domain.BadgeState{"streak": domain.BadgeEarned{At: earnedAt}}

	// predicate no longer holds, e.g. after a reset
	snaps := []domain.PlayerSnapshot{
		{LongestStreak: 0},
		{LongestStreak: 10},
		{},
	}
	for i, snap := range snaps {
		views, unlocks := Evaluate(testDefs(), snap, prior, later.Add(time.Duration(i)*time.Hour))
		v := views[2]
		if !v.Earned || v.EarnedAt == nil || !v.EarnedAt.Equal(earnedAt) {
			t.Errorf("eval %d: streak view = %+v, want earned at %v", i, v, earnedAt)
		}
		for _, u := range unlocks {
			if u.BadgeID == "streak" {
				t.Errorf("eval %d: streak unlocked again", i)
			}
		}
	}
}

func TestEvaluate_UnlockOnlyAtEdge(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := domain.PlayerSnapshot{ChallengesCompleted: 5}
	earned := map[string]time.Time{}

	totalXP := 0
	for round := 0; round < 3; round++ {
		_, unlocks := Evaluate(testDefs(), snap, PriorFromEarned(earned), now.Add(time.Duration(round)*time.Minute))
		for _, u := range unlocks {
			if _, ok := earned[u.BadgeID]; ok {
				t.Fatalf("round %d: %s unlocked twice", round, u.BadgeID)
			}
			earned[u.BadgeID] = u.EarnedAt
			totalXP += u.XPReward
		}
	}

	if totalXP != 100 {
		t.Errorf("badge XP = %d, want 100 (first + five once)", totalXP)
	}
	if !earned["five"].Equal(now) {
		t.Errorf("five earned at %v, want first evaluation time", earned["five"])
	}
}

func TestEvaluate_ProgressNeverExceedsTarget(t *testing.T) {
	def := domain.BadgeDefinition{ID: "xp", Name: "XP", Metric: MetricTotalXP, Target: 1000}
	for _, xp := range []int{-10, 0, 500, 999, 1000, 5000} {
		views, _ := Evaluate([]domain.BadgeDefinition{def}, domain.PlayerSnapshot{TotalXP: xp}, nil, time.Now())
		v := views[0]
		if v.Progress != nil && (v.Progress.Current > v.Progress.Target || v.Progress.Current < 0) {
			t.Errorf("xp %d: progress %+v out of range", xp, *v.Progress)
		}
		if xp >= 1000 && !v.Earned {
			t.Errorf("xp %d: badge should be earned", xp)
		}
	}
}

func TestTransition_UnknownMetricStaysLocked(t *testing.T) {
	def := domain.BadgeDefinition{ID: "x", Metric: "nope", Target: 1}
	state := Transition(def, domain.PlayerSnapshot{}, nil, time.Now())
	if state.IsEarned() {
		t.Error("unknown metric must never earn")
	}
}

func TestResolveMetric(t *testing.T) {
	snap := domain.PlayerSnapshot{
		TotalXP:             1200,
		Level:               4,
		BlockUsage:          map[domain.BlockType]int{domain.BlockRole: 7},
		ChallengeBadges:     map[string]bool{domain.BadgeMinimalist: true},
		CompletedChallenges: map[string]bool{"build-data-summary": true},
	}
	tests := []struct {
		metric string
		want   int
	}{
		{MetricTotalXP, 1200},
		{MetricLevel, 4},
		{"block_usage:ROLE", 7},
		{"block_usage:TONE", 0},
		{"challenge_badge:minimalist", 1},
		{"challenge_badge:maximizer", 0},
		{"challenge_completed:build-data-summary", 1},
	}
	for _, tt := range tests {
		fn, err := ResolveMetric(tt.metric)
		if err != nil {
			t.Fatalf("ResolveMetric(%q) error = %v", tt.metric, err)
		}
		if got := fn(snap); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.metric, got, tt.want)
		}
	}

	for _, bad := range []string{"", "unknown", "block_usage:", "block_usage:VERB", "other:arg"} {
		if _, err := ResolveMetric(bad); !errors.Is(err, domain.ErrInvalidBadge) {
			t.Errorf("ResolveMetric(%q) error = %v, want ErrInvalidBadge", bad, err)
		}
	}
}

func TestPredicates(t *testing.T) {
	all := make(map[domain.BlockType]int)
	for _, bt := range domain.AllBlockTypes {
		all[bt] = 1
	}

	if !predicates["all_block_types"](domain.PlayerSnapshot{BlockUsage: all}) {
		t.Error("all_block_types should hold with every type used")
	}
	delete(all, domain.BlockBonus)
	if predicates["all_block_types"](domain.PlayerSnapshot{BlockUsage: all}) {
		t.Error("all_block_types should fail with BONUS unused")
	}
	if !predicates["cross_training"](domain.PlayerSnapshot{ChallengesCompleted: 1, LevelsCompleted: 1}) {
		t.Error("cross_training should hold")
	}
	if _, err := ResolvePredicate("missing"); !errors.Is(err, domain.ErrInvalidBadge) {
		t.Errorf("ResolvePredicate(missing) error = %v", err)
	}
	if len(PredicateNames()) != len(predicates) {
		t.Error("PredicateNames() incomplete")
	}
}
