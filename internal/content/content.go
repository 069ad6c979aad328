package content

import (
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// Default embeds the built-in challenge packs, debugger levels, and badge catalog.
//
//go:embed challenges/*.yaml levels/*.yaml badges.yaml
var Default embed.FS

// Content directory layout
const (
	ChallengesDir = "challenges"
	LevelsDir     = "levels"
	BadgesFile    = "badges.yaml"
)

// FS returns the content filesystem rooted at dir, or the embedded defaults
// when dir is empty.
func FS(dir string) (fs.FS, error) {
	if dir == "" {
		return Default, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Validator checks content files before they are turned into domain values
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the content-specific rules registered
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("block_type", validateBlockType)
	v.RegisterValidation("bug_type", validateBugType)
	v.RegisterValidation("challenge_mode", validateChallengeMode)

	return &Validator{validate: v}
}

// Validate validates a struct
func (cv *Validator) Validate(i any) error {
	return cv.validate.Struct(i)
}

func validateBlockType(fl validator.FieldLevel) bool {
	_, err := domain.ParseBlockType(fl.Field().String())
	return err == nil
}

func validateBugType(fl validator.FieldLevel) bool {
	_, err := domain.ParseBugType(fl.Field().String())
	return err == nil
}

func validateChallengeMode(fl validator.FieldLevel) bool {
	switch domain.ChallengeMode(fl.Field().String()) {
	case domain.ModeMinimize, domain.ModeMaximize, domain.ModeFix, domain.ModeBuild:
		return true
	}
	return false
}
