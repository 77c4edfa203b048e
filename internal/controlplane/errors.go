package controlplane

import (
	"errors"
	"net/http"

	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/backend"
	"github.com/finey-app/finey/internal/lifecycle"
)

// Sentinel errors for request handling.
var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidBody   = errors.New("invalid request body")
)

// statusFor maps an operation error to an HTTP status code.
func statusFor(err error) int {
	var apiErr *backend.APIError

	switch {
	case errors.Is(err, ErrInvalidBody), errors.Is(err, lifecycle.ErrInvalidTask):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingBearer),
		errors.Is(err, auth.ErrNoSession),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, lifecycle.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrAlreadyCompleted),
		errors.Is(err, lifecycle.ErrNotCompleted),
		errors.Is(err, lifecycle.ErrTaskOutdated),
		errors.Is(err, lifecycle.ErrDeletionLocked):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrProofUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, lifecycle.ErrCompletionFailed),
		errors.Is(err, lifecycle.ErrDeletionFailed),
		errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
