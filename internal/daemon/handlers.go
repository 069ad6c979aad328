package daemon

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/salesarmbiz-Dev/aimacademy/internal/debugger"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/prompt"
)

// Request bodies

// ScoreRequest is the body of POST /v1/score
type ScoreRequest struct {
	Blocks []domain.BlockInput `json:"blocks"`
}

// SubmissionRequest is the body of a challenge submission
type SubmissionRequest struct {
	Blocks    []domain.BlockInput `json:"blocks"`
	TimeSpent int                 `json:"time_spent_seconds"`
}

// StartRunRequest selects the debugger level to play
type StartRunRequest struct {
	Level int `json:"level"`
}

// ClassifyRequest assigns a bug type to a found bug
type ClassifyRequest struct {
	BugID string `json:"bug_id"`
	Type  string `json:"type"`
}

// HintRequest asks for the hint of a bug
type HintRequest struct {
	BugID string `json:"bug_id"`
}

// FixRequest holds replacement text for a bug
type FixRequest struct {
	Text string `json:"text"`
}

// AddXPRequest credits a pool directly
type AddXPRequest struct {
	Pool   string `json:"pool"`
	Amount int    `json:"amount"`
}

// LevelView is a debugger level without its answers
type LevelView struct {
	Number           int    `json:"number"`
	Title            string `json:"title"`
	Prompt           string `json:"prompt"`
	BugCount         int    `json:"bug_count"`
	ParTimeSeconds   int    `json:"par_time_seconds"`
	TimeLimitSeconds int    `json:"time_limit_seconds,omitempty"`
	XPReward         int    `json:"xp_reward"`
}

func newLevelView(l *domain.DebuggerLevel) LevelView {
	return LevelView{
		Number:           l.Number,
		Title:            l.Title,
		Prompt:           l.Prompt,
		BugCount:         l.BugCount,
		ParTimeSeconds:   l.ParTimeSeconds,
		TimeLimitSeconds: l.TimeLimitSeconds,
		XPReward:         l.XPReward,
	}
}

// Prompt scoring

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	blocks, err := domain.BuildBlocks(req.Blocks)
	if err != nil {
		s.writeError(w, r, "invalid blocks", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, prompt.Analyze(blocks))
}

// Challenge handlers

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	list := s.app.Challenges.List()
	if mode := r.URL.Query().Get("mode"); mode != "" {
		switch m := domain.ChallengeMode(mode); m {
		case domain.ModeMinimize, domain.ModeMaximize, domain.ModeFix, domain.ModeBuild:
			list = s.app.Challenges.ListByMode(m)
		default:
			s.jsonError(w, http.StatusBadRequest, "unknown challenge mode", fmt.Errorf("mode %q", mode))
			return
		}
	}

	result := make([]map[string]interface{}, 0, len(list))
	for _, ch := range list {
		spec := ch.Spec()
		result = append(result, map[string]interface{}{
			"id":           spec.ID,
			"title":        spec.Title,
			"mode":         ch.Mode(),
			"target_score": spec.TargetScore,
			"max_attempts": spec.MaxAttempts,
			"base_xp":      spec.Rewards.BaseXP,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"challenges": result,
	})
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := s.app.Challenges.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "challenge not found", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"mode":      ch.Mode(),
		"challenge": ch,
	})
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	packs := s.app.Challenges.ListPacks()

	result := make([]map[string]interface{}, 0, len(packs))
	for _, pack := range packs {
		result = append(result, map[string]interface{}{
			"id":              pack.ID,
			"name":            pack.Name,
			"description":     pack.Description,
			"challenge_count": len(pack.Challenges),
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"packs": result,
	})
}

func (s *Server) handleSubmitChallenge(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	blocks, err := domain.BuildBlocks(req.Blocks)
	if err != nil {
		s.writeError(w, r, "invalid blocks", err)
		return
	}

	out, err := s.app.Players.SubmitChallenge(r.Context(), r.PathValue("id"), r.PathValue("challenge"), blocks, req.TimeSpent)
	if err != nil {
		s.writeError(w, r, "submission rejected", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, out)
}

// Debugger handlers

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels := s.app.Levels.List()
	views := make([]LevelView, 0, len(levels))
	for _, l := range levels {
		views = append(views, newLevelView(l))
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"levels": views,
	})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "level must be a number", err)
		return
	}

	level, err := s.app.Levels.Get(number)
	if err != nil {
		s.writeError(w, r, "level not found", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, newLevelView(level))
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	level, err := s.app.Levels.Get(req.Level)
	if err != nil {
		s.writeError(w, r, "level not found", err)
		return
	}

	sess, err := s.app.Debugger.Start(r.PathValue("id"), level)
	if err != nil {
		s.writeError(w, r, "failed to start run", err)
		return
	}
	s.app.Metrics.SetActiveRuns(s.app.Debugger.Count())

	state, err := sess.State(r.Context())
	if err != nil {
		s.writeError(w, r, "failed to read run", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, state)
}

// session resolves the run named in the path, writing the error response
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*debugger.Session, bool) {
	sess, err := s.app.Debugger.Get(r.PathValue("run"))
	if err != nil {
		s.writeError(w, r, "run not found", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	state, err := sess.State(r.Context())
	if err != nil {
		s.writeError(w, r, "failed to read run", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleAbandonRun(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Debugger.Abandon(r.PathValue("run")); err != nil {
		s.writeError(w, r, "run not found", err)
		return
	}
	s.app.Metrics.SetActiveRuns(s.app.Debugger.Count())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var span domain.Span
	if err := decodeJSON(w, r, &span); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := sess.Flag(r.Context(), span)
	if err != nil {
		s.writeError(w, r, "flag rejected", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req ClassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	bugType, err := domain.ParseBugType(req.Type)
	if err != nil {
		s.writeError(w, r, "unknown bug type", err)
		return
	}

	result, err := sess.Classify(r.Context(), req.BugID, bugType)
	if err != nil {
		s.writeError(w, r, "classification rejected", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req HintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	hint, err := sess.Hint(r.Context(), req.BugID)
	if err != nil {
		s.writeError(w, r, "hint unavailable", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"bug_id": req.BugID,
		"hint":   hint,
	})
}

func (s *Server) handleSetFix(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req FixRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := sess.SetFix(r.Context(), r.PathValue("bug"), req.Text); err != nil {
		s.writeError(w, r, "fix rejected", err)
		return
	}

	state, err := sess.State(r.Context())
	if err != nil {
		s.writeError(w, r, "failed to read run", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	progress, err := sess.Submit(r.Context())
	if err != nil {
		s.writeError(w, r, "submission rejected", err)
		return
	}

	stats, err := s.app.Players.Stats(r.Context(), sess.PlayerID)
	if err != nil {
		s.writeError(w, r, "failed to load stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"progress": progress,
		"stats":    stats,
	})
}

// Player handlers

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	rec, err := s.app.Players.Player(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "player not found", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleAddXP(w http.ResponseWriter, r *http.Request) {
	var req AddXPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	playerID := r.PathValue("id")
	if err := s.app.Players.AddXP(r.Context(), playerID, req.Pool, req.Amount); err != nil {
		s.writeError(w, r, "failed to add xp", err)
		return
	}

	stats, err := s.app.Players.Stats(r.Context(), playerID)
	if err != nil {
		s.writeError(w, r, "failed to load stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Players.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "failed to load stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	views, err := s.app.Players.Badges(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "failed to load badges", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"badges": views,
	})
}

func (s *Server) handleLevelProgress(w http.ResponseWriter, r *http.Request) {
	levels, err := s.app.Players.LevelProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "failed to load level progress", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"levels": levels,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a non-negative number", err)
			return
		}
		limit = n
	}

	credits, err := s.app.Players.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, r, "failed to load history", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"credits": credits,
	})
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	if s.app.Archive == nil {
		s.jsonError(w, http.StatusNotFound, "transcript archive is disabled", nil)
		return
	}

	list, err := s.app.Archive.List(r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to list transcripts", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"transcripts": list,
	})
}
