package debugger

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/salesarmbiz-Dev/aimacademy/internal/content"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"gopkg.in/yaml.v3"
)

// LevelsFile represents the YAML structure for a set of debugger levels
type LevelsFile struct {
	Levels []LevelFile `yaml:"levels" validate:"required,min=1,dive"`
}

// LevelFile represents one debugger level. Bug spans are located by searching
// the prompt for each bug's text, in order.
type LevelFile struct {
	Number           int       `yaml:"number" validate:"gte=1"`
	Title            string    `yaml:"title" validate:"required"`
	Prompt           string    `yaml:"prompt" validate:"required"`
	BugCount         int       `yaml:"bug_count" validate:"gte=1"`
	ParTimeSeconds   int       `yaml:"par_time_seconds" validate:"gte=1"`
	TimeLimitSeconds int       `yaml:"time_limit_seconds" validate:"gte=0"`
	XPReward         int       `yaml:"xp_reward" validate:"gte=0"`
	Bugs             []BugFile `yaml:"bugs" validate:"required,dive"`
}

// BugFile represents one planted bug
type BugFile struct {
	ID           string `yaml:"id" validate:"required"`
	Text         string `yaml:"text" validate:"required"`
	Type         string `yaml:"type" validate:"required,bug_type"`
	ReferenceFix string `yaml:"reference_fix" validate:"required"`
	Hint         string `yaml:"hint"`
}

// Levels is the loaded, validated set of debugger levels
type Levels struct {
	fsys     fs.FS
	validate *content.Validator

	mu     sync.RWMutex
	levels map[int]*domain.DebuggerLevel
}

// NewLevels creates an empty level set backed by a content filesystem
func NewLevels(fsys fs.FS) *Levels {
	return &Levels{
		fsys:     fsys,
		validate: content.NewValidator(),
		levels:   make(map[int]*domain.DebuggerLevel),
	}
}

// Load reads every *.yaml file in the levels directory
func (l *Levels) Load() error {
	entries, err := fs.ReadDir(l.fsys, content.LevelsDir)
	if err != nil {
		return fmt.Errorf("read levels directory: %w", err)
	}

	loaded := make(map[int]*domain.DebuggerLevel)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		levels, err := l.loadFile(path.Join(content.LevelsDir, e.Name()))
		if err != nil {
			return err
		}
		for _, level := range levels {
			if _, dup := loaded[level.Number]; dup {
				return fmt.Errorf("%w: duplicate level number %d", domain.ErrInvalidLevel, level.Number)
			}
			loaded[level.Number] = level
		}
	}

	l.mu.Lock()
	l.levels = loaded
	l.mu.Unlock()
	return nil
}

func (l *Levels) loadFile(name string) ([]*domain.DebuggerLevel, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read levels file: %w", err)
	}

	var file LevelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse levels file %s: %w", name, err)
	}
	if err := l.validate.Validate(file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidLevel, name, err)
	}

	levels := make([]*domain.DebuggerLevel, 0, len(file.Levels))
	for _, lf := range file.Levels {
		level, err := lf.build()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func (lf LevelFile) build() (*domain.DebuggerLevel, error) {
	level := &domain.DebuggerLevel{
		Number:           lf.Number,
		Title:            lf.Title,
		Prompt:           lf.Prompt,
		BugCount:         lf.BugCount,
		ParTimeSeconds:   lf.ParTimeSeconds,
		TimeLimitSeconds: lf.TimeLimitSeconds,
		XPReward:         lf.XPReward,
		Bugs:             make([]domain.PlantedBug, 0, len(lf.Bugs)),
	}

	cursor := 0 // byte offset
	for _, bf := range lf.Bugs {
		idx := strings.Index(lf.Prompt[cursor:], bf.Text)
		if idx < 0 {
			return nil, &domain.ConfigError{
				Kind:   domain.ErrInvalidLevel,
				ID:     fmt.Sprintf("level-%d", lf.Number),
				Field:  "bugs",
				Reason: fmt.Sprintf("text of bug %q not found in prompt", bf.ID),
			}
		}
		startByte := cursor + idx
		endByte := startByte + len(bf.Text)
		cursor = endByte

		bt, err := domain.ParseBugType(bf.Type)
		if err != nil {
			return nil, err
		}
		level.Bugs = append(level.Bugs, domain.PlantedBug{
			ID: bf.ID,
			Span: domain.Span{
				Start: utf8.RuneCountInString(lf.Prompt[:startByte]),
				End:   utf8.RuneCountInString(lf.Prompt[:endByte]),
			},
			Type:         bt,
			ReferenceFix: bf.ReferenceFix,
			Hint:         bf.Hint,
		})
	}

	if err := level.Validate(); err != nil {
		return nil, err
	}
	return level, nil
}

// Get returns a level by number
func (l *Levels) Get(number int) (*domain.DebuggerLevel, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	level, ok := l.levels[number]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrLevelNotFound, number)
	}
	return level, nil
}

// List returns all levels ordered by number
func (l *Levels) List() []*domain.DebuggerLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.DebuggerLevel, 0, len(l.levels))
	for _, level := range l.levels {
		out = append(out, level)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
