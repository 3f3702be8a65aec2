package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/matching"
	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, talent.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
	case errors.Is(err, talent.ErrInvalid), errors.Is(err, matching.ErrInvalidThreshold):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, talent.ErrInvalidTransition),
		errors.Is(err, talent.ErrPostingClosed),
		errors.Is(err, talent.ErrCandidateExists):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, matching.ErrJobNotEmbeddable):
		httpError(w, http.StatusUnprocessableEntity, "unprocessable_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to handle %s: %v", what, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
