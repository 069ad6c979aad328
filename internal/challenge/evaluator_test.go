package challenge

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

func blocks(types ...domain.BlockType) []domain.PromptBlock {
	out := make([]domain.PromptBlock, len(types))
	for i, t := range types {
		out[i] = domain.PromptBlock{ID: fmt.Sprintf("b%d", i), Type: t, Content: "x"}
	}
	return out
}

func spec(id string, target, maxAttempts int) domain.ChallengeSpec {
	return domain.ChallengeSpec{
		ID:          id,
		Title:       id,
		TargetScore: target,
		MaxAttempts: maxAttempts,
		Rewards:     domain.Rewards{BaseXP: 50, SpeedBonusXP: 20},
	}
}

func mustMinimize(t *testing.T, s domain.ChallengeSpec, targetBlocks, minimalBonus int) *domain.MinimizeChallenge {
	t.Helper()
	c, err := domain.NewMinimizeChallenge(s, targetBlocks, minimalBonus)
	if err != nil {
		t.Fatalf("NewMinimizeChallenge() error = %v", err)
	}
	return c
}

// ROLE, TASK, TARGET, TONE scores 92
var fourBlocks = []domain.BlockType{domain.BlockRole, domain.BlockTask, domain.BlockTarget, domain.BlockTone}

func TestEvaluate_MinimizeBlockCeiling(t *testing.T) {
	ch := mustMinimize(t, spec("min", 80, 3), 3, 15)

	result, err := Evaluate(ch, blocks(fourBlocks...), 30, 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if result.Score != 92 {
		t.Errorf("Score = %d, want 92", result.Score)
	}
	if result.Passed {
		t.Error("Passed = true, want false when block ceiling is exceeded")
	}
	if result.XPEarned != 0 || result.Stars != 0 || len(result.Bonuses) != 0 {
		t.Errorf("failed result should carry no rewards: %+v", result)
	}
	if len(result.Reasons) != 1 {
		t.Errorf("Reasons = %v, want one block-count reason", result.Reasons)
	}
}

func TestEvaluate_MinimizePass(t *testing.T) {
	s := spec("min", 80, 3)
	s.TimeLimitSeconds = 120
	ch := mustMinimize(t, s, 4, 15)

	result, err := Evaluate(ch, blocks(fourBlocks...), 30, 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if !result.Passed {
		t.Fatalf("Passed = false, reasons %v", result.Reasons)
	}
	if result.Stars != 3 {
		t.Errorf("Stars = %d, want 3 (margin 12)", result.Stars)
	}

	wantBonuses := []domain.Bonus{
		{Label: LabelBase, XP: 50},
		{Label: LabelSpeed, XP: 20},
		{Label: LabelMinimal, XP: 15},
	}
	if len(result.Bonuses) != len(wantBonuses) {
		t.Fatalf("Bonuses = %+v, want %+v", result.Bonuses, wantBonuses)
	}
	for i, b := range wantBonuses {
		if result.Bonuses[i] != b {
			t.Errorf("Bonuses[%d] = %+v, want %+v", i, result.Bonuses[i], b)
		}
	}
	if result.XPEarned != 85 {
		t.Errorf("XPEarned = %d, want 85", result.XPEarned)
	}
	if result.Badge != "" {
		t.Errorf("Badge = %q, want none with 4 blocks", result.Badge)
	}
}

func TestEvaluate_BuildMissingRequiredType(t *testing.T) {
	ch, err := domain.NewBuildChallenge(spec("build", 50, 3), []domain.BlockType{domain.BlockRole, domain.BlockTask, domain.BlockTarget})
	if err != nil {
		t.Fatalf("NewBuildChallenge() error = %v", err)
	}

	// CONTEXT satisfies the scorer but not the structural requirement
	assembly := blocks(domain.BlockRole, domain.BlockTask, domain.BlockContext, domain.BlockTone, domain.BlockFormat, domain.BlockExample)
	result, err := Evaluate(ch, assembly, 10, 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if result.Score != 100 {
		t.Errorf("Score = %d, want 100", result.Score)
	}
	if result.Passed {
		t.Error("Passed = true, want false when TARGET is missing")
	}
	if result.XPEarned != 0 {
		t.Errorf("XPEarned = %d, want 0", result.XPEarned)
	}

	withTarget := append(assembly, domain.PromptBlock{ID: "t", Type: domain.BlockTarget})
	result, err = Evaluate(ch, withTarget, 10, 2)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Passed {
		t.Errorf("Passed = false with all required types, reasons %v", result.Reasons)
	}
}

func TestEvaluate_AttemptsExhausted(t *testing.T) {
	ch, err := domain.NewMaximizeChallenge(spec("max", 50, 3))
	if err != nil {
		t.Fatalf("NewMaximizeChallenge() error = %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := Evaluate(ch, blocks(fourBlocks...), 10, attempt); err != nil {
			t.Fatalf("attempt %d: Evaluate() error = %v", attempt, err)
		}
	}

	result, err := Evaluate(ch, blocks(fourBlocks...), 10, 4)
	if result != nil {
		t.Errorf("Evaluate() returned a result past the attempt limit: %+v", result)
	}
	if !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("Evaluate() error = %v, want ErrAttemptsExhausted", err)
	}
	var exhausted *domain.AttemptsExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempt != 4 || exhausted.MaxAttempts != 3 {
		t.Errorf("error = %#v, want attempt 4 of 3", err)
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	ch, _ := domain.NewMaximizeChallenge(spec("max", 50, 3))

	tests := []struct {
		name      string
		ch        domain.Challenge
		timeSpent int
		attempt   int
	}{
		{"nil challenge", nil, 0, 1},
		{"zero attempt", ch, 0, 0},
		{"negative time", ch, -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluate(tt.ch, nil, tt.timeSpent, tt.attempt); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Evaluate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestEvaluate_Stars(t *testing.T) {
	tests := []struct {
		name   string
		target int
		want   int
	}{
		{"margin 12", 80, 3},
		{"margin 10", 82, 3},
		{"margin 9", 83, 2},
		{"margin 0", 92, 2},
		{"below target", 93, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := domain.NewMaximizeChallenge(spec("max", tt.target, 1))
			if err != nil {
				t.Fatal(err)
			}
			result, err := Evaluate(ch, blocks(fourBlocks...), 10, 1)
			if err != nil {
				t.Fatal(err)
			}
			if result.Stars != tt.want {
				t.Errorf("Stars = %d, want %d", result.Stars, tt.want)
			}
		})
	}
}

func TestEvaluate_SpeedBonus(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		timeSpent int
		want      bool
	}{
		{"well under half", 100, 20, true},
		{"just under half", 101, 50, true},
		{"exactly half", 100, 50, false},
		{"over half", 100, 70, false},
		{"untimed", 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := spec("fix", 50, 1)
			s.TimeLimitSeconds = tt.limit
			s.StartingBlocks = blocks(domain.BlockTask)
			ch, err := domain.NewFixChallenge(s)
			if err != nil {
				t.Fatal(err)
			}

			result, err := Evaluate(ch, blocks(fourBlocks...), tt.timeSpent, 1)
			if err != nil {
				t.Fatal(err)
			}

			got := false
			for _, b := range result.Bonuses {
				if b.Label == LabelSpeed {
					got = true
				}
			}
			if got != tt.want {
				t.Errorf("speed bonus = %v, want %v (bonuses %+v)", got, tt.want, result.Bonuses)
			}
		})
	}
}

func TestEvaluate_MaximizerBadge(t *testing.T) {
	ch, _ := domain.NewMaximizeChallenge(spec("max", 90, 3))

	full := blocks(domain.BlockRole, domain.BlockTask, domain.BlockTarget, domain.BlockTone, domain.BlockFormat)
	result, err := Evaluate(ch, full, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Badge != domain.BadgeMaximizer {
		t.Errorf("Badge = %q, want %q (score %d)", result.Badge, domain.BadgeMaximizer, result.Score)
	}

	result, _ = Evaluate(ch, blocks(fourBlocks...), 10, 2)
	if result.Badge != "" {
		t.Errorf("Badge = %q at score %d, want none", result.Badge, result.Score)
	}
}

func TestBadgeFor_Minimalist(t *testing.T) {
	ch := mustMinimize(t, spec("min", 50, 3), 5, 0)

	tests := []struct {
		name   string
		blocks int
		score  int
		want   string
	}{
		{"three blocks high score", 3, 90, domain.BadgeMinimalist},
		{"two blocks perfect", 2, 100, domain.BadgeMinimalist},
		{"four blocks", 4, 95, ""},
		{"score too low", 3, 89, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := badgeFor(ch, &domain.ChallengeResult{Passed: true, BlocksUsed: tt.blocks, Score: tt.score})
			if got != tt.want {
				t.Errorf("badgeFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvaluate_NoXPWhenFailed(t *testing.T) {
	minimize := mustMinimize(t, spec("min", 60, 1), 2, 10)
	maximize, _ := domain.NewMaximizeChallenge(spec("max", 95, 1))
	build, _ := domain.NewBuildChallenge(spec("build", 40, 1), []domain.BlockType{domain.BlockExample})
	challenges := []domain.Challenge{minimize, maximize, build}

	for mask := 0; mask < 1<<len(domain.AllBlockTypes); mask++ {
		var types []domain.BlockType
		for i, bt := range domain.AllBlockTypes {
			if mask&(1<<i) != 0 {
				types = append(types, bt)
			}
		}
		for _, ch := range challenges {
			result, err := Evaluate(ch, blocks(types...), 5, 1)
			if err != nil {
				t.Fatal(err)
			}
			if !result.Passed && result.XPEarned > 0 {
				t.Fatalf("%s with %v: XPEarned = %d on a failed evaluation", ch.Spec().ID, types, result.XPEarned)
			}
		}
	}
}

func TestEvaluateAt_Timestamp(t *testing.T) {
	ch, _ := domain.NewMaximizeChallenge(spec("max", 0, 1))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	result, err := EvaluateAt(ch, nil, 0, 1, at)
	if err != nil {
		t.Fatal(err)
	}
	if !result.EvaluatedAt.Equal(at) {
		t.Errorf("EvaluatedAt = %v, want %v", result.EvaluatedAt, at)
	}
	if !result.Passed || result.Score != 0 {
		t.Errorf("zero target should pass with an empty prompt: %+v", result)
	}
}
