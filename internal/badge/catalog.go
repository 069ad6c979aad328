package badge

import (
	"fmt"
	"io/fs"

	"github.com/salesarmbiz-Dev/aimacademy/internal/content"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"gopkg.in/yaml.v3"
)

// CatalogFile represents the YAML structure of the badge catalog
type CatalogFile struct {
	Badges []DefinitionFile `yaml:"badges" validate:"required,min=1,dive"`
}

// DefinitionFile is one badge as written in YAML. Exactly one of Metric or
// Predicate is set.
type DefinitionFile struct {
	ID          string `yaml:"id" validate:"required"`
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
	Requirement string `yaml:"requirement" validate:"required"`
	XPReward    int    `yaml:"xp_reward" validate:"gte=0"`
	Metric      string `yaml:"metric" validate:"required_without=Predicate,excluded_with=Predicate"`
	Target      int    `yaml:"target" validate:"required_with=Metric,gte=0"`
	Predicate   string `yaml:"predicate"`
}

// Catalog holds the ordered badge definitions
type Catalog struct {
	defs  []domain.BadgeDefinition
	index map[string]int
}

// LoadCatalog reads and validates the badge catalog from a content filesystem
func LoadCatalog(fsys fs.FS) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, content.BadgesFile)
	if err != nil {
		return nil, fmt.Errorf("read badge catalog: %w", err)
	}

	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse badge catalog: %w", err)
	}
	if err := content.NewValidator().Validate(file); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBadge, err)
	}

	defs := make([]domain.BadgeDefinition, 0, len(file.Badges))
	for _, df := range file.Badges {
		def, err := df.build()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewCatalog(defs)
}

func (df DefinitionFile) build() (domain.BadgeDefinition, error) {
	def := domain.BadgeDefinition{
		ID:          df.ID,
		Name:        df.Name,
		Description: df.Description,
		Requirement: df.Requirement,
		XPReward:    df.XPReward,
		Metric:      df.Metric,
		Target:      df.Target,
	}
	if df.Predicate != "" {
		pred, err := ResolvePredicate(df.Predicate)
		if err != nil {
			return def, fmt.Errorf("badge %q: %w", df.ID, err)
		}
		def.Predicate = pred
	}
	return def, nil
}

// NewCatalog validates definitions and rejects duplicate ids and unknown metrics
func NewCatalog(defs []domain.BadgeDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]domain.BadgeDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if def.Metric != "" {
			if _, err := ResolveMetric(def.Metric); err != nil {
				return nil, &domain.ConfigError{Kind: domain.ErrInvalidBadge, ID: def.ID, Field: "metric", Reason: err.Error()}
			}
		}
		if _, dup := c.index[def.ID]; dup {
			return nil, &domain.ConfigError{Kind: domain.ErrInvalidBadge, ID: def.ID, Field: "id", Reason: "duplicate badge id"}
		}
		c.index[def.ID] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return c, nil
}

// Definitions returns the definitions in catalog order
func (c *Catalog) Definitions() []domain.BadgeDefinition {
	out := make([]domain.BadgeDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get returns a definition by id
func (c *Catalog) Get(id string) (domain.BadgeDefinition, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.BadgeDefinition{}, false
	}
	return c.defs[i], true
}

// Len returns the number of badges
func (c *Catalog) Len() int {
	return len(c.defs)
}
