package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/salesarmbiz-Dev/aimacademy/internal/challenge"
	"github.com/salesarmbiz-Dev/aimacademy/internal/config"
	"github.com/salesarmbiz-Dev/aimacademy/internal/content"
	"github.com/salesarmbiz-Dev/aimacademy/internal/debugger"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/progression"
	"github.com/salesarmbiz-Dev/aimacademy/internal/prompt"
)

// cmdScore scores a JSON list of blocks without the daemon
func cmdScore(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy score <file|->")
	}

	blocks, err := readBlocks(args[0])
	if err != nil {
		return err
	}
	built, err := domain.BuildBlocks(blocks)
	if err != nil {
		return err
	}

	analysis := prompt.Analyze(built)

	fmt.Printf("Score: %d/100 %s\n", analysis.Score, renderProgressBar(float64(analysis.Score)/100, 20))
	fmt.Printf("Blocks: %d\n", analysis.BlockCount)
	if len(analysis.Adjustments) > 0 {
		fmt.Println("\nAdjustments")
		fmt.Println("-----------")
		for _, adj := range analysis.Adjustments {
			fmt.Printf("  %+4d  %s\n", adj.Delta, adj.Label)
		}
	}
	if len(analysis.Missing) > 0 {
		missing := make([]string, len(analysis.Missing))
		for i, bt := range analysis.Missing {
			missing[i] = string(bt)
		}
		fmt.Printf("\nMissing: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

// cmdLevel shows where a total XP lands on the level curve
func cmdLevel(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy level <xp>")
	}
	xp, err := strconv.Atoi(args[0])
	if err != nil || xp < 0 {
		return fmt.Errorf("xp must be a non-negative integer: %q", args[0])
	}

	info := progression.ComputeLevel(xp)
	fmt.Printf("Level %d - %s\n", info.Level, info.Title)
	fmt.Printf("%s %d/%d XP\n", renderProgressBar(info.ProgressPercent/100, 20), info.XPForCurrent, info.XPForNext)
	return nil
}

// cmdChallenge lists, describes, or submits challenges
func cmdChallenge(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy challenge <list|info|submit>")
	}

	switch args[0] {
	case "list":
		return cmdChallengeList(args[1:])
	case "info":
		return cmdChallengeInfo(args[1:])
	case "submit":
		return cmdChallengeSubmit(args[1:])
	default:
		return fmt.Errorf("unknown challenge command: %s (valid: list, info, submit)", args[0])
	}
}

func cmdChallengeList(args []string) error {
	registry, err := loadChallenges()
	if err != nil {
		return err
	}

	list := registry.List()
	if len(args) > 0 {
		list = registry.ListByMode(domain.ChallengeMode(args[0]))
	}
	if len(list) == 0 {
		fmt.Println("No challenges found.")
		return nil
	}

	for _, pack := range registry.ListPacks() {
		if pack.Version != "" {
			fmt.Printf("%s (v%s)\n", pack.Name, pack.Version)
		} else {
			fmt.Println(pack.Name)
		}
		for _, ch := range pack.Challenges {
			if !contains(list, ch) {
				continue
			}
			spec := ch.Spec()
			fmt.Printf("  %-32s %-9s target %3d  %d XP\n", spec.ID, ch.Mode(), spec.TargetScore, spec.Rewards.BaseXP)
		}
	}
	return nil
}

func cmdChallengeInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: aimacademy challenge info <id>")
	}

	registry, err := loadChallenges()
	if err != nil {
		return err
	}
	ch, err := registry.Get(args[0])
	if err != nil {
		return err
	}

	spec := ch.Spec()
	fmt.Printf("%s\n", spec.Title)
	fmt.Println(strings.Repeat("=", len(spec.Title)))
	if spec.Description != "" {
		fmt.Printf("%s\n\n", spec.Description)
	}
	fmt.Printf("Mode:         %s\n", ch.Mode())
	fmt.Printf("Target score: %d\n", spec.TargetScore)
	fmt.Printf("Attempts:     %d\n", spec.MaxAttempts)
	if spec.TimeLimitSeconds > 0 {
		fmt.Printf("Time limit:   %ds\n", spec.TimeLimitSeconds)
	}
	fmt.Printf("Base XP:      %d\n", spec.Rewards.BaseXP)

	if len(spec.StartingBlocks) > 0 {
		fmt.Println("\nStarting blocks")
		fmt.Println("---------------")
		for _, b := range spec.StartingBlocks {
			fmt.Printf("  %-10s %s\n", b.Type, b.Content)
		}
	}
	return nil
}

func cmdChallengeSubmit(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: aimacademy challenge submit <player> <id> <file|-> [seconds]")
	}
	if err := requireDaemon(); err != nil {
		return err
	}

	blocks, err := readBlocks(args[2])
	if err != nil {
		return err
	}
	seconds := 0
	if len(args) > 3 {
		if seconds, err = strconv.Atoi(args[3]); err != nil {
			return fmt.Errorf("seconds must be an integer: %q", args[3])
		}
	}

	var out struct {
		Result          domain.ChallengeResult `json:"result"`
		XPCredited      int                    `json:"xp_credited"`
		FirstCompletion bool                   `json:"first_completion"`
		AttemptsLeft    int                    `json:"attempts_left"`
		Unlocked        []domain.BadgeUnlock   `json:"unlocked"`
	}
	path := fmt.Sprintf("/v1/players/%s/challenges/%s/submissions", args[0], args[1])
	if err := postJSON(path, map[string]any{"blocks": blocks, "time_spent_seconds": seconds}, &out); err != nil {
		return err
	}

	verdict := "✗ Not yet"
	if out.Result.Passed {
		verdict = "✓ Passed"
	}
	fmt.Printf("%s  score %d  %s\n", verdict, out.Result.Score, strings.Repeat("★", out.Result.Stars))
	for _, b := range out.Result.Bonuses {
		fmt.Printf("  bonus %-16s +%d XP\n", b.Label, b.XP)
	}
	if out.XPCredited > 0 {
		fmt.Printf("XP credited: %d\n", out.XPCredited)
	}
	fmt.Printf("Attempts left: %d\n", out.AttemptsLeft)
	for _, u := range out.Unlocked {
		fmt.Printf("🏅 Badge unlocked: %s (+%d XP)\n", u.Name, u.XPReward)
	}
	return nil
}

// cmdDebugger browses Prompt Debugger levels
func cmdDebugger(args []string) error {
	if len(args) < 1 || args[0] != "levels" {
		return fmt.Errorf("usage: aimacademy debugger levels")
	}

	fsys, err := contentFS()
	if err != nil {
		return err
	}
	levels := debugger.NewLevels(fsys)
	if err := levels.Load(); err != nil {
		return err
	}

	for _, l := range levels.List() {
		limit := "untimed"
		if l.TimeLimitSeconds > 0 {
			limit = fmt.Sprintf("%ds limit", l.TimeLimitSeconds)
		}
		fmt.Printf("%3d  %-32s %d bugs  par %ds  %s  %d XP\n",
			l.Number, l.Title, l.BugCount, l.ParTimeSeconds, limit, l.XPReward)
	}
	return nil
}

func contentFS() (fs.FS, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return content.FS(cfg.Content.Path)
}

func loadChallenges() (*challenge.Registry, error) {
	fsys, err := contentFS()
	if err != nil {
		return nil, err
	}
	registry := challenge.NewRegistry(challenge.NewLoader(fsys))
	if err := registry.Load(); err != nil {
		return nil, fmt.Errorf("load challenges: %w", err)
	}
	return registry, nil
}

// readBlocks reads a JSON array of blocks from a file, or stdin for "-"
func readBlocks(path string) ([]domain.BlockInput, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var blocks []domain.BlockInput
	if err := json.NewDecoder(r).Decode(&blocks); err != nil {
		return nil, fmt.Errorf("parse blocks: %w", err)
	}
	return blocks, nil
}

func contains(list []domain.Challenge, ch domain.Challenge) bool {
	id := ch.Spec().ID
	for _, c := range list {
		if c.Spec().ID == id {
			return true
		}
	}
	return false
}
