package domain

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// BlockType - the kind of prompt fragment a block carries
// -----------------------------------------------------------------------------

// BlockType identifies what a prompt block contributes to the prompt
type BlockType string

const (
	BlockRole       BlockType = "ROLE"
	BlockTask       BlockType = "TASK"
	BlockTarget     BlockType = "TARGET"
	BlockContext    BlockType = "CONTEXT"
	BlockTone       BlockType = "TONE"
	BlockFormat     BlockType = "FORMAT"
	BlockExample    BlockType = "EXAMPLE"
	BlockConstraint BlockType = "CONSTRAINT"
	BlockBonus      BlockType = "BONUS"
)

// AllBlockTypes lists every block type in display order
var AllBlockTypes = []BlockType{
	BlockRole,
	BlockTask,
	BlockTarget,
	BlockContext,
	BlockTone,
	BlockFormat,
	BlockExample,
	BlockConstraint,
	BlockBonus,
}

// ParseBlockType parses a block type, accepting any letter case
func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: block type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// Valid reports whether t is a known block type
func (t BlockType) Valid() bool {
	for _, known := range AllBlockTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t BlockType) String() string {
	return string(t)
}

// Priority returns the editorial priority of a block type
func (t BlockType) Priority() Priority {
	switch t {
	case BlockRole, BlockTask:
		return PriorityCritical
	case BlockTarget, BlockContext:
		return PriorityHigh
	case BlockTone, BlockFormat:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Impact returns the score delta attributable to having a block of this type:
// the penalty its presence averts, or the bonus it grants.
func (t BlockType) Impact() int {
	switch t {
	case BlockRole:
		return 34
	case BlockTask:
		return 22
	case BlockTarget, BlockContext:
		return 20
	case BlockTone:
		return 14
	case BlockFormat:
		return 8
	case BlockExample:
		return 4
	default:
		return 0
	}
}

// Priority ranks block types for presentation
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// -----------------------------------------------------------------------------
// PromptBlock - immutable unit of a prompt
// -----------------------------------------------------------------------------

// PromptBlock is one typed fragment of an assembled prompt
type PromptBlock struct {
	ID       string    `json:"id" yaml:"id"`
	Type     BlockType `json:"type" yaml:"type"`
	Content  string    `json:"content" yaml:"content"`
	Priority Priority  `json:"priority" yaml:"-"`
	Impact   int       `json:"impact" yaml:"-"`
}

// NewBlock creates a block with priority and impact derived from its type
func NewBlock(id string, blockType BlockType, content string) (PromptBlock, error) {
	if id == "" {
		return PromptBlock{}, fmt.Errorf("%w: block id is required", ErrInvalidInput)
	}
	if !blockType.Valid() {
		return PromptBlock{}, fmt.Errorf("%w: block type %q", ErrInvalidInput, blockType)
	}
	return PromptBlock{
		ID:       id,
		Type:     blockType,
		Content:  content,
		Priority: blockType.Priority(),
		Impact:   blockType.Impact(),
	}, nil
}

// Normalized returns a copy whose derived fields match its type. Blocks that
// arrive over the wire carry only id, type, and content.
func (b PromptBlock) Normalized() PromptBlock {
	b.Priority = b.Type.Priority()
	b.Impact = b.Type.Impact()
	return b
}

// BlockTypeSet returns the set of types present in blocks
func BlockTypeSet(blocks []PromptBlock) map[BlockType]bool {
	set := make(map[BlockType]bool, len(blocks))
	for _, b := range blocks {
		set[b.Type] = true
	}
	return set
}

// BlockInput is a block as clients send it. Priority and impact are derived,
// never accepted.
type BlockInput struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// BuildBlocks validates client blocks. Missing ids are assigned by position
// as b1, b2, ... and every resulting id must be unique.
func BuildBlocks(in []BlockInput) ([]PromptBlock, error) {
	out := make([]PromptBlock, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, b := range in {
		bt, err := ParseBlockType(b.Type)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		id := b.ID
		if id == "" {
			id = fmt.Sprintf("b%d", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: block %d: duplicate id %q", ErrInvalidInput, i, id)
		}
		seen[id] = true
		block, err := NewBlock(id, bt, b.Content)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, block)
	}
	return out, nil
}
