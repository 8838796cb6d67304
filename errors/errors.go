package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrNotFound           = fmt.Errorf("not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrInvalidRequest     = fmt.Errorf("invalid request")

	ErrEmptyContent    = fmt.Errorf("message content is empty")
	ErrContentTooLong  = fmt.Errorf("message content is too long")
	ErrMissingReceiver = fmt.Errorf("recipient is required")
	ErrNothingToSend   = fmt.Errorf("nothing to send")

	ErrUnknownStorageDriver = fmt.Errorf("unknown storage driver")
)

// HTTPStatus maps a service error onto the status code returned at the HTTP edge.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrMissingReceiver):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
