package challenge

import (
	"fmt"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/prompt"
)

// Bonus labels
const (
	LabelBase    = "Challenge complete"
	LabelSpeed   = "Speed bonus"
	LabelMinimal = "Minimal bonus"
)

// Star tier thresholds
const (
	threeStarMargin = 10
	speedFraction   = 0.5
)

// Challenge badge thresholds
const (
	minimalistMaxBlocks = 3
	minimalistMinScore  = 90
	maximizerMinScore   = 98
)

// Evaluate scores a submission against a challenge. attempt is 1-based and
// counts this submission. Once attempt exceeds the challenge's MaxAttempts the
// returned error is an *domain.AttemptsExhaustedError and no result is built.
func Evaluate(ch domain.Challenge, blocks []domain.PromptBlock, timeSpent, attempt int) (*domain.ChallengeResult, error) {
	return EvaluateAt(ch, blocks, timeSpent, attempt, time.Now())
}

// EvaluateAt is Evaluate with an explicit evaluation time
func EvaluateAt(ch domain.Challenge, blocks []domain.PromptBlock, timeSpent, attempt int, now time.Time) (*domain.ChallengeResult, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: challenge is required", domain.ErrInvalidInput)
	}
	spec := ch.Spec()
	if attempt < 1 {
		return nil, fmt.Errorf("%w: attempt must be at least 1, got %d", domain.ErrInvalidInput, attempt)
	}
	if timeSpent < 0 {
		return nil, fmt.Errorf("%w: time spent must not be negative", domain.ErrInvalidInput)
	}
	if attempt > spec.MaxAttempts {
		return nil, &domain.AttemptsExhaustedError{
			ChallengeID: spec.ID,
			Attempt:     attempt,
			MaxAttempts: spec.MaxAttempts,
		}
	}

	score := prompt.Score(blocks)
	result := &domain.ChallengeResult{
		ChallengeID: spec.ID,
		Mode:        ch.Mode(),
		Attempt:     attempt,
		Score:       score,
		BlocksUsed:  len(blocks),
		TimeSpent:   timeSpent,
		Bonuses:     []domain.Bonus{},
		EvaluatedAt: now,
	}

	if score < spec.TargetScore {
		result.Reasons = append(result.Reasons, fmt.Sprintf("score %d is below target %d", score, spec.TargetScore))
	}
	result.Reasons = append(result.Reasons, structuralReasons(ch, blocks)...)
	result.Passed = len(result.Reasons) == 0

	if !result.Passed {
		return result, nil
	}

	result.Stars = stars(score, spec.TargetScore)
	result.Bonuses = rewards(ch, result)
	for _, b := range result.Bonuses {
		result.XPEarned += b.XP
	}
	result.Badge = badgeFor(ch, result)

	return result, nil
}

// structuralReasons lists the mode-specific pass conditions the assembly misses
func structuralReasons(ch domain.Challenge, blocks []domain.PromptBlock) []string {
	var reasons []string

	switch c := ch.(type) {
	case *domain.MinimizeChallenge:
		if len(blocks) > c.TargetBlocks {
			reasons = append(reasons, fmt.Sprintf("uses %d blocks, limit is %d", len(blocks), c.TargetBlocks))
		}
	case *domain.BuildChallenge:
		present := domain.BlockTypeSet(blocks)
		for _, t := range c.RequiredBlockTypes {
			if !present[t] {
				reasons = append(reasons, fmt.Sprintf("missing required %s block", t))
			}
		}
	case *domain.MaximizeChallenge, *domain.FixChallenge:
		// score threshold only
	}

	return reasons
}

// stars maps a passing score onto a tier. A non-negative margin always yields
// at least two stars; one star is the floor for a pass.
func stars(score, target int) int {
	margin := score - target
	switch {
	case margin >= threeStarMargin:
		return 3
	case margin >= 0:
		return 2
	default:
		return 1
	}
}

func rewards(ch domain.Challenge, result *domain.ChallengeResult) []domain.Bonus {
	spec := ch.Spec()
	bonuses := []domain.Bonus{{Label: LabelBase, XP: spec.Rewards.BaseXP}}

	if spec.TimeLimitSeconds > 0 && spec.Rewards.SpeedBonusXP > 0 &&
		float64(result.TimeSpent) < float64(spec.TimeLimitSeconds)*speedFraction {
		bonuses = append(bonuses, domain.Bonus{Label: LabelSpeed, XP: spec.Rewards.SpeedBonusXP})
	}

	if c, ok := ch.(*domain.MinimizeChallenge); ok && c.MinimalBonusXP > 0 && result.BlocksUsed <= c.TargetBlocks {
		bonuses = append(bonuses, domain.Bonus{Label: LabelMinimal, XP: c.MinimalBonusXP})
	}

	return bonuses
}

func badgeFor(ch domain.Challenge, result *domain.ChallengeResult) string {
	switch ch.(type) {
	case *domain.MinimizeChallenge:
		if result.BlocksUsed <= minimalistMaxBlocks && result.Score >= minimalistMinScore {
			return domain.BadgeMinimalist
		}
	case *domain.MaximizeChallenge:
		if result.Score >= maximizerMinScore {
			return domain.BadgeMaximizer
		}
	}
	return ""
}
