// Package transcript builds serializable summaries of challenge attempts and
// hands them to an external asset store on a best-effort basis.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// ChangeKind classifies one difference between the starting and final blocks
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeEdited  ChangeKind = "edited"
)

// Change is one block-level edit the player made
type Change struct {
	Kind    ChangeKind       `json:"kind"`
	BlockID string           `json:"block_id"`
	Type    domain.BlockType `json:"type"`
	Before  string           `json:"before,omitempty"`
	After   string           `json:"after,omitempty"`
}

// Transcript is the human-readable record of one evaluated attempt
type Transcript struct {
	ID          uuid.UUID            `json:"id"`
	PlayerID    string               `json:"player_id"`
	ChallengeID string               `json:"challenge_id"`
	Title       string               `json:"title"`
	Mode        domain.ChallengeMode `json:"mode"`
	Attempt     int                  `json:"attempt"`
	Passed      bool                 `json:"passed"`
	Score       int                  `json:"score"`
	Stars       int                  `json:"stars"`
	XPEarned    int                  `json:"xp_earned"`
	Blocks      []domain.PromptBlock `json:"blocks"`
	Changes     []Change             `json:"changes"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Summarize builds a transcript for a result. xpCredited is what the player's
// ledger actually received, which is zero on a repeat pass.
func Summarize(playerID string, ch domain.Challenge, blocks []domain.PromptBlock, result *domain.ChallengeResult, xpCredited int) *Transcript {
	spec := ch.Spec()
	final := make([]domain.PromptBlock, len(blocks))
	copy(final, blocks)

	return &Transcript{
		ID:          uuid.New(),
		PlayerID:    playerID,
		ChallengeID: spec.ID,
		Title:       spec.Title,
		Mode:        ch.Mode(),
		Attempt:     result.Attempt,
		Passed:      result.Passed,
		Score:       result.Score,
		Stars:       result.Stars,
		XPEarned:    xpCredited,
		Blocks:      final,
		Changes:     Diff(spec.StartingBlocks, blocks),
		CreatedAt:   result.EvaluatedAt,
	}
}

// Diff compares blocks by ID. Removed blocks are listed first in starting
// order, then edits and additions in final order.
func Diff(start, final []domain.PromptBlock) []Change {
	before := make(map[string]domain.PromptBlock, len(start))
	for _, b := range start {
		before[b.ID] = b
	}
	after := make(map[string]bool, len(final))
	for _, b := range final {
		after[b.ID] = true
	}

	changes := []Change{}
	for _, b := range start {
		if !after[b.ID] {
			changes = append(changes, Change{Kind: ChangeRemoved, BlockID: b.ID, Type: b.Type, Before: b.Content})
		}
	}
	for _, b := range final {
		old, existed := before[b.ID]
		switch {
		case !existed:
			changes = append(changes, Change{Kind: ChangeAdded, BlockID: b.ID, Type: b.Type, After: b.Content})
		case old.Content != b.Content || old.Type != b.Type:
			changes = append(changes, Change{Kind: ChangeEdited, BlockID: b.ID, Type: b.Type, Before: old.Content, After: b.Content})
		}
	}
	return changes
}

// Markdown renders the transcript for people
func (t *Transcript) Markdown() string {
	var sb strings.Builder

	status := "not passed"
	if t.Passed {
		status = fmt.Sprintf("passed, %d stars", t.Stars)
	}
	fmt.Fprintf(&sb, "# %s\n\n", t.Title)
	fmt.Fprintf(&sb, "Mode: %s | Attempt: %d | Score: %d | %s | XP: %d\n\n", t.Mode, t.Attempt, t.Score, status, t.XPEarned)

	sb.WriteString("## Prompt\n\n")
	for _, b := range t.Blocks {
		fmt.Fprintf(&sb, "- **%s** %s\n", b.Type, b.Content)
	}

	if len(t.Changes) > 0 {
		sb.WriteString("\n## Changes\n\n")
		for _, c := range t.Changes {
			switch c.Kind {
			case ChangeAdded:
				fmt.Fprintf(&sb, "- added %s `%s`\n", c.Type, c.BlockID)
			case ChangeRemoved:
				fmt.Fprintf(&sb, "- removed %s `%s`\n", c.Type, c.BlockID)
			case ChangeEdited:
				fmt.Fprintf(&sb, "- edited %s `%s`: %q -> %q\n", c.Type, c.BlockID, c.Before, c.After)
			}
		}
	}
	return sb.String()
}
