package domain

import "fmt"

// ChallengeMode selects the pass condition and bonus structure of a challenge
type ChallengeMode string

const (
	ModeMinimize ChallengeMode = "minimize"
	ModeMaximize ChallengeMode = "maximize"
	ModeFix      ChallengeMode = "fix"
	ModeBuild    ChallengeMode = "build"
)

// Rewards shared by every challenge mode
type Rewards struct {
	BaseXP       int `json:"base_xp"`
	SpeedBonusXP int `json:"speed_bonus_xp,omitempty"`
}

// ChallengeSpec holds the fields common to every challenge mode
type ChallengeSpec struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	StartingBlocks   []PromptBlock `json:"starting_blocks"`
	TargetScore      int           `json:"target_score"`
	TimeLimitSeconds int           `json:"time_limit_seconds,omitempty"` // 0 means untimed
	MaxAttempts      int           `json:"max_attempts"`
	Rewards          Rewards       `json:"rewards"`
}

// Challenge is the closed union of challenge modes. Only the types in this
// package implement it; evaluators switch over the concrete types.
type Challenge interface {
	Mode() ChallengeMode
	Spec() ChallengeSpec
	isChallenge()
}

// MinimizeChallenge asks for the fewest blocks that still reach the target
type MinimizeChallenge struct {
	ChallengeSpec
	TargetBlocks   int `json:"target_blocks"`
	MinimalBonusXP int `json:"minimal_bonus_xp,omitempty"`
}

// MaximizeChallenge asks for the highest score possible
type MaximizeChallenge struct {
	ChallengeSpec
}

// FixChallenge starts from a broken prompt that must be repaired
type FixChallenge struct {
	ChallengeSpec
}

// BuildChallenge asks for a prompt that includes specific block types
type BuildChallenge struct {
	ChallengeSpec
	RequiredBlockTypes []BlockType `json:"required_block_types"`
}

func (c *MinimizeChallenge) Mode() ChallengeMode { return ModeMinimize }
func (c *MaximizeChallenge) Mode() ChallengeMode { return ModeMaximize }
func (c *FixChallenge) Mode() ChallengeMode      { return ModeFix }
func (c *BuildChallenge) Mode() ChallengeMode    { return ModeBuild }

func (c *MinimizeChallenge) Spec() ChallengeSpec { return c.ChallengeSpec }
func (c *MaximizeChallenge) Spec() ChallengeSpec { return c.ChallengeSpec }
func (c *FixChallenge) Spec() ChallengeSpec      { return c.ChallengeSpec }
func (c *BuildChallenge) Spec() ChallengeSpec    { return c.ChallengeSpec }

func (*MinimizeChallenge) isChallenge() {}
func (*MaximizeChallenge) isChallenge() {}
func (*FixChallenge) isChallenge()      {}
func (*BuildChallenge) isChallenge()    {}

// NewMinimizeChallenge validates and builds a minimize challenge
func NewMinimizeChallenge(spec ChallengeSpec, targetBlocks, minimalBonusXP int) (*MinimizeChallenge, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if targetBlocks <= 0 {
		return nil, challengeError(spec.ID, "target_blocks", "must be at least 1")
	}
	if minimalBonusXP < 0 {
		return nil, challengeError(spec.ID, "minimal_bonus_xp", "must not be negative")
	}
	return &MinimizeChallenge{
		ChallengeSpec:  spec.normalized(),
		TargetBlocks:   targetBlocks,
		MinimalBonusXP: minimalBonusXP,
	}, nil
}

// NewMaximizeChallenge validates and builds a maximize challenge
func NewMaximizeChallenge(spec ChallengeSpec) (*MaximizeChallenge, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &MaximizeChallenge{ChallengeSpec: spec.normalized()}, nil
}

// NewFixChallenge validates and builds a fix challenge
func NewFixChallenge(spec ChallengeSpec) (*FixChallenge, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if len(spec.StartingBlocks) == 0 {
		return nil, challengeError(spec.ID, "starting_blocks", "fix challenges need a broken prompt to repair")
	}
	return &FixChallenge{ChallengeSpec: spec.normalized()}, nil
}

// NewBuildChallenge validates and builds a build challenge
func NewBuildChallenge(spec ChallengeSpec, required []BlockType) (*BuildChallenge, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if len(required) == 0 {
		return nil, challengeError(spec.ID, "required_block_types", "must name at least one type")
	}
	seen := make(map[BlockType]bool, len(required))
	types := make([]BlockType, 0, len(required))
	for _, t := range required {
		if !t.Valid() {
			return nil, challengeError(spec.ID, "required_block_types", fmt.Sprintf("unknown type %q", t))
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return &BuildChallenge{ChallengeSpec: spec.normalized(), RequiredBlockTypes: types}, nil
}

func (s ChallengeSpec) validate() error {
	if s.ID == "" {
		return challengeError("", "id", "is required")
	}
	if s.TargetScore < 0 || s.TargetScore > 100 {
		return challengeError(s.ID, "target_score", "must be within 0-100")
	}
	if s.MaxAttempts < 1 {
		return challengeError(s.ID, "max_attempts", "must be at least 1")
	}
	if s.TimeLimitSeconds < 0 {
		return challengeError(s.ID, "time_limit_seconds", "must not be negative")
	}
	if s.Rewards.BaseXP < 0 || s.Rewards.SpeedBonusXP < 0 {
		return challengeError(s.ID, "rewards", "must not be negative")
	}
	ids := make(map[string]bool, len(s.StartingBlocks))
	for _, b := range s.StartingBlocks {
		if !b.Type.Valid() {
			return challengeError(s.ID, "starting_blocks", fmt.Sprintf("unknown type %q", b.Type))
		}
		if b.ID == "" || ids[b.ID] {
			return challengeError(s.ID, "starting_blocks", "block ids must be present and unique")
		}
		ids[b.ID] = true
	}
	return nil
}

func (s ChallengeSpec) normalized() ChallengeSpec {
	blocks := make([]PromptBlock, len(s.StartingBlocks))
	for i, b := range s.StartingBlocks {
		blocks[i] = b.Normalized()
	}
	s.StartingBlocks = blocks
	return s
}

func challengeError(id, field, reason string) error {
	return &ConfigError{Kind: ErrInvalidChallenge, ID: id, Field: field, Reason: reason}
}
