// Package api contains the HTTP handlers for the generation pipeline.
package api

import (
	"errors"
	"net/http"

	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/generation"
	"github.com/studyhall/studyhall-api/internal/service/quota"
	"github.com/studyhall/studyhall-api/internal/store"
	"github.com/studyhall/studyhall-api/internal/task"
)

// MapErrorToStatusCode translates service-layer errors into HTTP status
// codes. Both quota denials and provider rate limiting surface as 429 so
// clients handle them uniformly.
func MapErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, quota.ErrDailyLimitReached),
		errors.Is(err, generation.ErrQuotaExceeded),
		errors.Is(err, task.ErrQueueFull):
		return http.StatusTooManyRequests
	case store.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidArtifactKind),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, task.ErrInvalidExecutionMode),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// safeMessage returns an error message fit for a client. Internal
// failures collapse to a generic message so nothing sensitive leaks.
func safeMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
