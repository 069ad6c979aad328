package challenge

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/salesarmbiz-Dev/aimacademy/internal/content"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"gopkg.in/yaml.v3"
)

// PackFile represents the YAML structure for a challenge pack
type PackFile struct {
	ID          string          `yaml:"id" validate:"required"`
	Name        string          `yaml:"name" validate:"required"`
	Version     string          `yaml:"version"`
	Description string          `yaml:"description"`
	Challenges  []ChallengeFile `yaml:"challenges" validate:"required,min=1,dive"`
}

// ChallengeFile represents the YAML structure for one challenge
type ChallengeFile struct {
	ID               string      `yaml:"id" validate:"required"`
	Mode             string      `yaml:"mode" validate:"required,challenge_mode"`
	Title            string      `yaml:"title" validate:"required"`
	Description      string      `yaml:"description"`
	TargetScore      int         `yaml:"target_score" validate:"gte=0,lte=100"`
	TargetBlocks     int         `yaml:"target_blocks"`
	TimeLimitSeconds int         `yaml:"time_limit_seconds" validate:"gte=0"`
	MaxAttempts      int         `yaml:"max_attempts" validate:"gte=1"`
	Rewards          RewardsFile `yaml:"rewards"`
	RequiredTypes    []string    `yaml:"required_block_types" validate:"dive,block_type"`
	StartingBlocks   []BlockFile `yaml:"starting_blocks" validate:"dive"`
}

// RewardsFile represents challenge rewards
type RewardsFile struct {
	BaseXP         int `yaml:"base_xp" validate:"gte=0"`
	SpeedBonusXP   int `yaml:"speed_bonus_xp" validate:"gte=0"`
	MinimalBonusXP int `yaml:"minimal_bonus_xp" validate:"gte=0"`
}

// BlockFile represents one prompt block
type BlockFile struct {
	ID      string `yaml:"id" validate:"required"`
	Type    string `yaml:"type" validate:"required,block_type"`
	Content string `yaml:"content"`
}

// Loader handles loading challenge packs from YAML files
type Loader struct {
	fsys     fs.FS
	validate *content.Validator
}

// NewLoader creates a new challenge loader over a content filesystem
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, validate: content.NewValidator()}
}

// LoadPack loads a challenge pack from a single YAML file
func (l *Loader) LoadPack(name string) (*Pack, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read pack file: %w", err)
	}

	var packFile PackFile
	if err := yaml.Unmarshal(data, &packFile); err != nil {
		return nil, fmt.Errorf("parse pack file %s: %w", name, err)
	}
	if err := l.validate.Validate(packFile); err != nil {
		return nil, fmt.Errorf("%w: pack %s: %v", domain.ErrInvalidChallenge, name, err)
	}

	pack := &Pack{
		ID:          packFile.ID,
		Name:        packFile.Name,
		Version:     packFile.Version,
		Description: packFile.Description,
		Challenges:  make([]domain.Challenge, 0, len(packFile.Challenges)),
	}

	for _, cf := range packFile.Challenges {
		ch, err := cf.build()
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", name, err)
		}
		pack.Challenges = append(pack.Challenges, ch)
	}

	return pack, nil
}

// LoadAllPacks loads every *.yaml file in the challenges directory
func (l *Loader) LoadAllPacks() ([]*Pack, error) {
	entries, err := fs.ReadDir(l.fsys, content.ChallengesDir)
	if err != nil {
		return nil, fmt.Errorf("read challenges directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	packs := make([]*Pack, 0, len(names))
	for _, name := range names {
		pack, err := l.LoadPack(path.Join(content.ChallengesDir, name))
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}

	return packs, nil
}

func (cf ChallengeFile) build() (domain.Challenge, error) {
	spec := domain.ChallengeSpec{
		ID:               cf.ID,
		Title:            cf.Title,
		Description:      cf.Description,
		TargetScore:      cf.TargetScore,
		TimeLimitSeconds: cf.TimeLimitSeconds,
		MaxAttempts:      cf.MaxAttempts,
		Rewards: domain.Rewards{
			BaseXP:       cf.Rewards.BaseXP,
			SpeedBonusXP: cf.Rewards.SpeedBonusXP,
		},
		StartingBlocks: make([]domain.PromptBlock, 0, len(cf.StartingBlocks)),
	}

	for _, bf := range cf.StartingBlocks {
		bt, err := domain.ParseBlockType(bf.Type)
		if err != nil {
			return nil, err
		}
		block, err := domain.NewBlock(bf.ID, bt, bf.Content)
		if err != nil {
			return nil, err
		}
		spec.StartingBlocks = append(spec.StartingBlocks, block)
	}

	switch domain.ChallengeMode(cf.Mode) {
	case domain.ModeMinimize:
		return domain.NewMinimizeChallenge(spec, cf.TargetBlocks, cf.Rewards.MinimalBonusXP)
	case domain.ModeMaximize:
		return domain.NewMaximizeChallenge(spec)
	case domain.ModeFix:
		return domain.NewFixChallenge(spec)
	case domain.ModeBuild:
		required := make([]domain.BlockType, 0, len(cf.RequiredTypes))
		for _, s := range cf.RequiredTypes {
			bt, err := domain.ParseBlockType(s)
			if err != nil {
				return nil, err
			}
			required = append(required, bt)
		}
		return domain.NewBuildChallenge(spec, required)
	default:
		return nil, &domain.ConfigError{Kind: domain.ErrInvalidChallenge, ID: cf.ID, Field: "mode", Reason: fmt.Sprintf("unknown mode %q", cf.Mode)}
	}
}
