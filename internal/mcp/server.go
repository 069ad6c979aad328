package mcp

import (
	"context"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/salesarmbiz-Dev/aimacademy/internal/app"
	"github.com/salesarmbiz-Dev/aimacademy/internal/debugger"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/player"
	"github.com/salesarmbiz-Dev/aimacademy/internal/progression"
	"github.com/salesarmbiz-Dev/aimacademy/internal/prompt"
)

// Server wraps the MCP server with AIM Academy functionality
type Server struct {
	mcpServer *server.Server
	app       *app.App
}

// Config contains configuration for the MCP server
type Config struct {
	App *app.App
}

// NewServer creates a new MCP server for the scoring engine
func NewServer(cfg Config) *Server {
	s := &Server{app: cfg.App}

	s.mcpServer = server.New(server.Info{
		Name:    "aimacademy",
		Version: "0.1.0",
	}, server.WithInstructions(`
AIM Academy scores prompt-engineering exercises and tracks player progression.

Prompt Lab:
- aim_score: Score a list of typed prompt blocks (0-100) with a breakdown
- aim_challenges: List challenges, optionally by mode
- aim_submit: Submit blocks to a challenge for a player

Prompt Debugger:
- aim_debugger_start: Start a timed run of a debugger level
- aim_debugger_state: Phase, flags, classifications, and time left
- aim_debugger_flag: Flag a suspected bug span [start,end) in runes
- aim_debugger_classify: Assign a bug type to a flagged bug
- aim_debugger_hint: Reveal the hint for a bug
- aim_debugger_fix: Record replacement text for a bug
- aim_debugger_submit: Score the run

Progression:
- aim_add_xp: Credit XP to a named pool
- aim_stats: Level, title, and XP per pool
- aim_badges: Badge progress and unlocks

Block types: ROLE, TASK, TARGET, CONTEXT, TONE, FORMAT, EXAMPLE, CONSTRAINT, BONUS.
`))

	s.registerTools()

	return s
}

// registerTools registers all engine MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("aim_score").
		Description("Score prompt blocks. The score depends only on which block types are present and how many blocks there are.").
		Handler(s.handleScore)

	s.mcpServer.Tool("aim_challenges").
		Description("List Prompt Lab challenges.").
		Handler(s.handleChallenges)

	s.mcpServer.Tool("aim_submit").
		Description("Submit blocks to a challenge. XP is credited on the first pass only.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("aim_debugger_start").
		Description("Start a Prompt Debugger run. The stopwatch starts now.").
		Handler(s.handleDebuggerStart)

	s.mcpServer.Tool("aim_debugger_state").
		Description("Get the current state of a debugger run, including remaining time.").
		Handler(s.handleDebuggerState)

	s.mcpServer.Tool("aim_debugger_flag").
		Description("Flag a suspected bug span in the level prompt.").
		Handler(s.handleDebuggerFlag)

	s.mcpServer.Tool("aim_debugger_classify").
		Description("Classify a flagged bug.").
		Handler(s.handleDebuggerClassify)

	s.mcpServer.Tool("aim_debugger_hint").
		Description("Reveal the hint for a bug.").
		Handler(s.handleDebuggerHint)

	s.mcpServer.Tool("aim_debugger_fix").
		Description("Record replacement text for a bug.").
		Handler(s.handleDebuggerFix)

	s.mcpServer.Tool("aim_debugger_submit").
		Description("Submit a debugger run for scoring.").
		Handler(s.handleDebuggerSubmit)

	s.mcpServer.Tool("aim_add_xp").
		Description("Credit XP to a named pool.").
		Handler(s.handleAddXP)

	s.mcpServer.Tool("aim_stats").
		Description("Get a player's level and XP.").
		Handler(s.handleStats)

	s.mcpServer.Tool("aim_badges").
		Description("Get a player's badge progress.").
		Handler(s.handleBadges)
}

// Input/Output types for tools

type ScoreInput struct {
	Blocks []domain.BlockInput `json:"blocks" jsonschema:"description=Prompt blocks with type and content"`
}

type ChallengesInput struct {
	Mode string `json:"mode,omitempty" jsonschema:"description=Challenge mode,enum=minimize,enum=maximize,enum=fix,enum=build"`
}

type ChallengeSummary struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Mode        domain.ChallengeMode `json:"mode"`
	TargetScore int                  `json:"target_score"`
	MaxAttempts int                  `json:"max_attempts"`
	BaseXP      int                  `json:"base_xp"`
}

type ChallengesOutput struct {
	Challenges []ChallengeSummary `json:"challenges"`
}

type SubmitInput struct {
	PlayerID    string              `json:"player_id" jsonschema:"description=Player ID"`
	ChallengeID string              `json:"challenge_id" jsonschema:"description=Challenge ID from aim_challenges"`
	Blocks      []domain.BlockInput `json:"blocks" jsonschema:"description=Assembled prompt blocks"`
	TimeSpent   int                 `json:"time_spent_seconds,omitempty" jsonschema:"description=Seconds spent on the attempt"`
}

type DebuggerStartInput struct {
	PlayerID string `json:"player_id" jsonschema:"description=Player ID"`
	Level    int    `json:"level" jsonschema:"description=Debugger level number"`
}

type RunInput struct {
	RunID string `json:"run_id" jsonschema:"description=Run ID from aim_debugger_start"`
}

type FlagInput struct {
	RunID string `json:"run_id" jsonschema:"description=Run ID from aim_debugger_start"`
	Start int    `json:"start" jsonschema:"description=First rune of the span"`
	End   int    `json:"end" jsonschema:"description=Rune after the span"`
}

type ClassifyInput struct {
	RunID string `json:"run_id" jsonschema:"description=Run ID from aim_debugger_start"`
	BugID string `json:"bug_id" jsonschema:"description=Bug ID returned by aim_debugger_flag"`
	Type  string `json:"type" jsonschema:"description=Bug type,enum=ambiguity,enum=missing_context,enum=wrong_role,enum=conflicting_instructions,enum=vague_format,enum=tone_mismatch,enum=scope_creep,enum=hallucination_risk"`
}

type HintInput struct {
	RunID string `json:"run_id" jsonschema:"description=Run ID from aim_debugger_start"`
	BugID string `json:"bug_id" jsonschema:"description=Bug ID"`
}

type HintOutput struct {
	BugID string `json:"bug_id"`
	Hint  string `json:"hint"`
}

type FixInput struct {
	RunID string `json:"run_id" jsonschema:"description=Run ID from aim_debugger_start"`
	BugID string `json:"bug_id" jsonschema:"description=Bug ID"`
	Text  string `json:"text" jsonschema:"description=Replacement text"`
}

type SubmitRunOutput struct {
	Progress *domain.LevelProgress `json:"progress"`
	Stats    progression.UserStats `json:"stats"`
}

type AddXPInput struct {
	PlayerID string `json:"player_id" jsonschema:"description=Player ID"`
	Pool     string `json:"pool" jsonschema:"description=XP pool, e.g. prompt_lab or debugger"`
	Amount   int    `json:"amount" jsonschema:"description=Non-negative XP amount"`
}

type PlayerInput struct {
	PlayerID string `json:"player_id" jsonschema:"description=Player ID"`
}

type BadgesOutput struct {
	Badges []domain.BadgeView `json:"badges"`
}

// Tool handlers

func (s *Server) handleScore(ctx context.Context, input ScoreInput) (prompt.Analysis, error) {
	blocks, err := domain.BuildBlocks(input.Blocks)
	if err != nil {
		return prompt.Analysis{}, err
	}
	return *prompt.Analyze(blocks), nil
}

func (s *Server) handleChallenges(ctx context.Context, input ChallengesInput) (ChallengesOutput, error) {
	list := s.app.Challenges.List()
	if input.Mode != "" {
		switch m := domain.ChallengeMode(input.Mode); m {
		case domain.ModeMinimize, domain.ModeMaximize, domain.ModeFix, domain.ModeBuild:
			list = s.app.Challenges.ListByMode(m)
		default:
			return ChallengesOutput{}, fmt.Errorf("%w: unknown challenge mode %q", domain.ErrInvalidInput, input.Mode)
		}
	}

	out := ChallengesOutput{Challenges: make([]ChallengeSummary, 0, len(list))}
	for _, ch := range list {
		spec := ch.Spec()
		out.Challenges = append(out.Challenges, ChallengeSummary{
			ID:          spec.ID,
			Title:       spec.Title,
			Mode:        ch.Mode(),
			TargetScore: spec.TargetScore,
			MaxAttempts: spec.MaxAttempts,
			BaseXP:      spec.Rewards.BaseXP,
		})
	}
	return out, nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (player.ChallengeOutcome, error) {
	blocks, err := domain.BuildBlocks(input.Blocks)
	if err != nil {
		return player.ChallengeOutcome{}, err
	}
	out, err := s.app.Players.SubmitChallenge(ctx, input.PlayerID, input.ChallengeID, blocks, input.TimeSpent)
	if err != nil {
		return player.ChallengeOutcome{}, fmt.Errorf("submission rejected: %w", err)
	}
	return *out, nil
}

func (s *Server) handleDebuggerStart(ctx context.Context, input DebuggerStartInput) (debugger.State, error) {
	level, err := s.app.Levels.Get(input.Level)
	if err != nil {
		return debugger.State{}, err
	}
	sess, err := s.app.Debugger.Start(input.PlayerID, level)
	if err != nil {
		return debugger.State{}, err
	}
	s.app.Metrics.SetActiveRuns(s.app.Debugger.Count())
	return sessionState(ctx, sess)
}

func (s *Server) handleDebuggerFlag(ctx context.Context, input FlagInput) (debugger.FlagResult, error) {
	sess, err := s.app.Debugger.Get(input.RunID)
	if err != nil {
		return debugger.FlagResult{}, err
	}
	res, err := sess.Flag(ctx, domain.Span{Start: input.Start, End: input.End})
	if err != nil {
		return debugger.FlagResult{}, err
	}
	return *res, nil
}

func (s *Server) handleDebuggerClassify(ctx context.Context, input ClassifyInput) (debugger.ClassifyResult, error) {
	sess, err := s.app.Debugger.Get(input.RunID)
	if err != nil {
		return debugger.ClassifyResult{}, err
	}
	bugType, err := domain.ParseBugType(input.Type)
	if err != nil {
		return debugger.ClassifyResult{}, err
	}
	res, err := sess.Classify(ctx, input.BugID, bugType)
	if err != nil {
		return debugger.ClassifyResult{}, err
	}
	return *res, nil
}

func (s *Server) handleDebuggerHint(ctx context.Context, input HintInput) (HintOutput, error) {
	sess, err := s.app.Debugger.Get(input.RunID)
	if err != nil {
		return HintOutput{}, err
	}
	hint, err := sess.Hint(ctx, input.BugID)
	if err != nil {
		return HintOutput{}, err
	}
	return HintOutput{BugID: input.BugID, Hint: hint}, nil
}

func (s *Server) handleDebuggerFix(ctx context.Context, input FixInput) (debugger.State, error) {
	sess, err := s.app.Debugger.Get(input.RunID)
	if err != nil {
		return debugger.State{}, err
	}
	if err := sess.SetFix(ctx, input.BugID, input.Text); err != nil {
		return debugger.State{}, err
	}
	return sessionState(ctx, sess)
}

func (s *Server) handleDebuggerState(ctx context.Context, input RunInput) (debugger.State, error) {
	sess, err := s.app.Debugger.Get(input.RunID)
	if err != nil {
		return debugger.State{}, err
	}
	return sessionState(ctx, sess)
}

func sessionState(ctx context.Context, sess *debugger.Session) (debugger.State, error) {
	st, err := sess.State(ctx)
	if err != nil {
		return debugger.State{}, err
	}
	return *st, nil
}

func (s *Server) handleDebuggerSubmit(ctx context.Context, input RunInput) (SubmitRunOutput, error) {
	sess, err := s.app.Debugger.Get(input.RunID)
	if err != nil {
		return SubmitRunOutput{}, err
	}
	progress, err := sess.Submit(ctx)
	if err != nil {
		return SubmitRunOutput{}, err
	}
	stats, err := s.app.Players.Stats(ctx, sess.PlayerID)
	if err != nil {
		return SubmitRunOutput{}, err
	}
	return SubmitRunOutput{Progress: progress, Stats: stats}, nil
}

func (s *Server) handleAddXP(ctx context.Context, input AddXPInput) (progression.UserStats, error) {
	if err := s.app.Players.AddXP(ctx, input.PlayerID, input.Pool, input.Amount); err != nil {
		return progression.UserStats{}, err
	}
	return s.app.Players.Stats(ctx, input.PlayerID)
}

func (s *Server) handleStats(ctx context.Context, input PlayerInput) (progression.UserStats, error) {
	return s.app.Players.Stats(ctx, input.PlayerID)
}

func (s *Server) handleBadges(ctx context.Context, input PlayerInput) (BadgesOutput, error) {
	views, err := s.app.Players.Badges(ctx, input.PlayerID)
	if err != nil {
		return BadgesOutput{}, err
	}
	return BadgesOutput{Badges: views}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
