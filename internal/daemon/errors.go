package daemon

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownBugType),
		errors.Is(err, domain.ErrInvalidChallenge),
		errors.Is(err, domain.ErrInvalidLevel):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownBug):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAttemptsExhausted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrIncompleteSubmission),
		errors.Is(err, domain.ErrAlreadySubmitted):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err with request context and writes the mapped status
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)

	logAttrs := []any{
		"message", message,
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"correlation_id", GetCorrelationID(r.Context()),
		"error", err,
	}
	if status >= 500 {
		slog.Error("api error", logAttrs...)
	} else {
		slog.Debug("api error", logAttrs...)
	}

	response := map[string]interface{}{
		"error":   message,
		"status":  status,
		"details": err.Error(),
	}
	var exhausted *domain.AttemptsExhaustedError
	if errors.As(err, &exhausted) {
		response["attempt"] = exhausted.Attempt
		response["max_attempts"] = exhausted.MaxAttempts
	}
	s.jsonResponse(w, status, response)
}
