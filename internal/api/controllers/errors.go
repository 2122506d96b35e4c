package controllers

import (
	"errors"

	"github.com/curaious/synergy/internal/access"
	"github.com/curaious/synergy/internal/perrors"
	"github.com/curaious/synergy/internal/ratelimit"
	"github.com/curaious/synergy/internal/services/task"
	"github.com/curaious/synergy/internal/services/user"
)

// toHTTPError maps service sentinels onto perrors codes. Anything unknown is
// an internal server error.
func toHTTPError(message string, err error) error {
	var perr perrors.Err
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, user.ErrDuplicateEmail):
		return perrors.New(perrors.ErrCodeDuplicateEmail, message, err)
	case errors.Is(err, user.ErrInvalidCredential):
		return perrors.New(perrors.ErrCodeInvalidCredential, message, err)
	case errors.Is(err, user.ErrUnauthorized), errors.Is(err, access.ErrUnauthenticated):
		return perrors.NewErrUnauthorized(message, err)
	case errors.Is(err, access.ErrForbidden):
		return perrors.NewErrForbidden(message, err)
	case errors.Is(err, access.ErrProjectNotFound),
		errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return perrors.NewErrNotFound(message, err)
	case errors.Is(err, perrors.ErrValidation):
		return perrors.NewErrValidation(message, err)
	case errors.Is(err, ratelimit.ErrRateLimited):
		return perrors.New(perrors.ErrCodeTooManyRequests, message, err)
	default:
		return perrors.NewErrInternalServerError(message, err)
	}
}
