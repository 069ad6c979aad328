package debugger

import (
	"fmt"
	"strings"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// Phase is a step of the debugger minigame
type Phase string

const (
	PhaseRead      Phase = "read"
	PhaseIdentify  Phase = "identify"
	PhaseFix       Phase = "fix"
	PhaseSubmitted Phase = "submitted"
)

// FlagResult reports what a flagged span matched
type FlagResult struct {
	Hit   bool   `json:"hit"`
	BugID string `json:"bug_id,omitempty"`
	Phase Phase  `json:"phase"`
}

// ClassifyResult reports the outcome of assigning a type to a flagged bug
type ClassifyResult struct {
	Correct  bool  `json:"correct"`
	Resolved int   `json:"resolved"`
	Phase    Phase `json:"phase"`
}

// Run is one play-through of a debugger level. It is not safe for concurrent
// use; Session serialises access.
type Run struct {
	level *domain.DebuggerLevel
	phase Phase

	found     map[string]bool
	guesses   map[string]domain.BugType // last type chosen per bug
	resolved  map[string]bool
	wrong     map[string]int
	misses    int
	fixes     map[string]string
	hintsUsed int

	result *domain.LevelProgress
}

// NewRun starts a run in the read phase. The level must be valid.
func NewRun(level *domain.DebuggerLevel) (*Run, error) {
	if level == nil {
		return nil, fmt.Errorf("%w: level is required", domain.ErrInvalidInput)
	}
	if err := level.Validate(); err != nil {
		return nil, err
	}
	return &Run{
		level:    level,
		phase:    PhaseRead,
		found:    make(map[string]bool),
		guesses:  make(map[string]domain.BugType),
		resolved: make(map[string]bool),
		wrong:    make(map[string]int),
		fixes:    make(map[string]string),
	}, nil
}

// Phase returns the current phase
func (r *Run) Phase() Phase { return r.phase }

// Level returns the level being played
func (r *Run) Level() *domain.DebuggerLevel { return r.level }

// Flag marks a span the player suspects. The first flag moves the run from
// read to identify. A span overlapping a planted bug marks that bug found.
func (r *Run) Flag(span domain.Span) (*FlagResult, error) {
	if r.phase != PhaseRead && r.phase != PhaseIdentify {
		return nil, r.transitionError("flag")
	}
	if span.Start < 0 || span.End <= span.Start {
		return nil, fmt.Errorf("%w: span [%d,%d)", domain.ErrInvalidInput, span.Start, span.End)
	}

	r.phase = PhaseIdentify

	bug, ok := r.level.BugAt(span)
	if !ok {
		r.misses++
		return &FlagResult{Phase: r.phase}, nil
	}
	r.found[bug.ID] = true
	return &FlagResult{Hit: true, BugID: bug.ID, Phase: r.phase}, nil
}

// Classify assigns a type to a found bug. A wrong type leaves the bug
// unresolved and counts against it for telemetry only. The run moves to fix
// once every planted bug is resolved.
func (r *Run) Classify(bugID string, bugType domain.BugType) (*ClassifyResult, error) {
	if r.phase != PhaseIdentify {
		return nil, r.transitionError("classify")
	}
	bug, ok := r.level.Bug(bugID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBug, bugID)
	}
	if !r.found[bugID] {
		return nil, fmt.Errorf("%w: %q has not been flagged", domain.ErrUnknownBug, bugID)
	}
	if !bugType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBugType, bugType)
	}

	correct := r.resolved[bugID]
	if !correct {
		r.guesses[bugID] = bugType
		if bugType == bug.Type {
			r.resolved[bugID] = true
			correct = true
		} else {
			r.wrong[bugID]++
		}
	}

	if len(r.resolved) == r.level.BugCount {
		r.phase = PhaseFix
	}
	return &ClassifyResult{Correct: correct, Resolved: len(r.resolved), Phase: r.phase}, nil
}

// UseHint returns the hint for a bug and counts its use
func (r *Run) UseHint(bugID string) (string, error) {
	if r.phase == PhaseSubmitted {
		return "", r.transitionError("hint")
	}
	bug, ok := r.level.Bug(bugID)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownBug, bugID)
	}
	r.hintsUsed++
	return bug.Hint, nil
}

// SetFix records replacement text for a bug
func (r *Run) SetFix(bugID, text string) error {
	if r.phase != PhaseFix {
		return r.transitionError("fix")
	}
	if _, ok := r.level.Bug(bugID); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownBug, bugID)
	}
	r.fixes[bugID] = text
	return nil
}

// Missing lists the bugs that still lack a non-empty fix
func (r *Run) Missing() []string {
	var missing []string
	for _, b := range r.level.Bugs {
		if strings.TrimSpace(r.fixes[b.ID]) == "" {
			missing = append(missing, b.ID)
		}
	}
	return missing
}

// Submit scores the run. It is accepted only in the fix phase with every
// bug fixed.
func (r *Run) Submit(elapsed int, now time.Time) (*domain.LevelProgress, error) {
	if r.phase == PhaseSubmitted {
		return nil, domain.ErrAlreadySubmitted
	}
	if r.phase != PhaseFix {
		return nil, r.transitionError("submit")
	}
	if missing := r.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: no fix for %s", domain.ErrIncompleteSubmission, strings.Join(missing, ", "))
	}
	return r.finish(elapsed, now, false)
}

// TimeUp forces submission from any phase with whatever has been entered
func (r *Run) TimeUp(elapsed int, now time.Time) (*domain.LevelProgress, error) {
	if r.phase == PhaseSubmitted {
		return nil, domain.ErrAlreadySubmitted
	}
	return r.finish(elapsed, now, true)
}

// Result returns the scored outcome once submitted
func (r *Run) Result() *domain.LevelProgress { return r.result }

// Telemetry returns wrong classification counts per bug and missed flags
func (r *Run) Telemetry() (wrong map[string]int, misses int) {
	wrong = make(map[string]int, len(r.wrong))
	for id, n := range r.wrong {
		wrong[id] = n
	}
	return wrong, r.misses
}

func (r *Run) finish(elapsed int, now time.Time, timedOut bool) (*domain.LevelProgress, error) {
	selections := make(map[string]domain.BugType, len(r.found))
	for id := range r.found {
		selections[id] = r.guesses[id]
	}

	progress, err := SubmitLevelAt(r.level, selections, r.fixes, elapsed, r.hintsUsed, now)
	if err != nil {
		return nil, err
	}
	progress.TimedOut = timedOut

	r.phase = PhaseSubmitted
	r.result = progress
	return progress, nil
}

func (r *Run) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s in %s phase", domain.ErrInvalidTransition, action, r.phase)
}
