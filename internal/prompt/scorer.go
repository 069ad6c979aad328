package prompt

import (
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

const (
	baseScore       = 100
	blockCountCap   = 10
	blockCountShift = 8
)

// Adjustment is one explainable step in a score computation
type Adjustment struct {
	Rule  string `json:"rule"`
	Label string `json:"label"`
	Delta int    `json:"delta"`
}

// Analysis is a score with the adjustments that produced it
type Analysis struct {
	Score       int                `json:"score"`
	BlockCount  int                `json:"block_count"`
	Adjustments []Adjustment       `json:"adjustments"`
	Missing     []domain.BlockType `json:"missing,omitempty"`
}

// rule is a fixed structural check applied to the set of block types present
type rule struct {
	ID      string
	Label   string
	Delta   int
	Applies func(types map[domain.BlockType]bool) bool
	Missing []domain.BlockType // reported when the rule fires as a penalty
}

var rules = []rule{
	{
		ID:      "R001",
		Label:   "missing ROLE",
		Delta:   -domain.BlockRole.Impact(),
		Applies: absent(domain.BlockRole),
		Missing: []domain.BlockType{domain.BlockRole},
	},
	{
		ID:      "R002",
		Label:   "missing TASK",
		Delta:   -domain.BlockTask.Impact(),
		Applies: absent(domain.BlockTask),
		Missing: []domain.BlockType{domain.BlockTask},
	},
	{
		ID:    "R003",
		Label: "missing TARGET or CONTEXT",
		Delta: -domain.BlockTarget.Impact(),
		Applies: func(types map[domain.BlockType]bool) bool {
			return !types[domain.BlockTarget] && !types[domain.BlockContext]
		},
		Missing: []domain.BlockType{domain.BlockTarget, domain.BlockContext},
	},
	{
		ID:      "R004",
		Label:   "missing TONE",
		Delta:   -domain.BlockTone.Impact(),
		Applies: absent(domain.BlockTone),
		Missing: []domain.BlockType{domain.BlockTone},
	},
	{
		ID:      "R005",
		Label:   "missing FORMAT",
		Delta:   -domain.BlockFormat.Impact(),
		Applies: absent(domain.BlockFormat),
		Missing: []domain.BlockType{domain.BlockFormat},
	},
	{
		ID:    "R006",
		Label: "EXAMPLE provided",
		Delta: domain.BlockExample.Impact(),
		Applies: func(types map[domain.BlockType]bool) bool {
			return types[domain.BlockExample]
		},
	},
}

func absent(t domain.BlockType) func(map[domain.BlockType]bool) bool {
	return func(types map[domain.BlockType]bool) bool { return !types[t] }
}

// Score returns the prompt quality score in [0,100]. It depends only on the
// set of block types present and the block count, never on order.
func Score(blocks []domain.PromptBlock) int {
	return Analyze(blocks).Score
}

// Analyze scores blocks and records every adjustment applied
func Analyze(blocks []domain.PromptBlock) *Analysis {
	types := domain.BlockTypeSet(blocks)
	a := &Analysis{
		BlockCount:  len(blocks),
		Adjustments: make([]Adjustment, 0, len(rules)+1),
	}

	score := baseScore
	for _, r := range rules {
		if !r.Applies(types) {
			continue
		}
		score += r.Delta
		a.Adjustments = append(a.Adjustments, Adjustment{Rule: r.ID, Label: r.Label, Delta: r.Delta})
		a.Missing = append(a.Missing, r.Missing...)
	}

	countDelta := BlockCountAdjustment(len(blocks))
	score += countDelta
	a.Adjustments = append(a.Adjustments, Adjustment{Rule: "R007", Label: "block count", Delta: countDelta})

	a.Score = clamp(score)
	return a
}

// BlockCountAdjustment rewards supporting blocks up to a fixed ceiling:
// min(n*2, 10) - 8.
func BlockCountAdjustment(n int) int {
	return min(n*2, blockCountCap) - blockCountShift
}

func clamp(score int) int {
	return max(0, min(100, score))
}
