package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are returned by the scoring engine, its stores, and services
// to communicate recoverable domain-specific failures to callers.
// -----------------------------------------------------------------------------

// Configuration errors
var (
	ErrInvalidChallenge = errors.New("invalid challenge configuration")
	ErrInvalidLevel     = errors.New("invalid debugger level configuration")
	ErrInvalidBadge     = errors.New("invalid badge definition")
)

// General errors. The specific not-found errors below wrap ErrNotFound.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Challenge errors
var (
	ErrChallengeNotFound = fmt.Errorf("challenge %w", ErrNotFound)
	ErrAttemptsExhausted = errors.New("attempts exhausted")
)

// Debugger errors
var (
	ErrLevelNotFound        = fmt.Errorf("debugger level %w", ErrNotFound)
	ErrRunNotFound          = fmt.Errorf("debugger run %w", ErrNotFound)
	ErrInvalidTransition    = errors.New("invalid debugger phase transition")
	ErrIncompleteSubmission = errors.New("incomplete submission")
	ErrUnknownBug           = errors.New("unknown bug")
	ErrUnknownBugType       = errors.New("unknown bug type")
	ErrAlreadySubmitted     = errors.New("run already submitted")
)

// Player errors
var (
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
)

// ConfigError describes why a piece of static content was rejected at
// construction time. It unwraps to the sentinel for its content kind.
type ConfigError struct {
	Kind   error
	ID     string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("%v %q: %s: %s", e.Kind, e.ID, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Kind }

// AttemptsExhaustedError is the terminal signal returned instead of a result
// once a challenge has been submitted more than MaxAttempts times.
type AttemptsExhaustedError struct {
	ChallengeID string
	Attempt     int
	MaxAttempts int
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("challenge %q: attempt %d exceeds limit of %d", e.ChallengeID, e.Attempt, e.MaxAttempts)
}

func (e *AttemptsExhaustedError) Is(target error) bool {
	return target == ErrAttemptsExhausted
}
