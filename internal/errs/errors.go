// Package errs defines the error taxonomy shared by services and handlers.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest marks malformed or missing request data.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized marks a missing, invalid, or expired token, or bad
	// credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an invite-code mismatch or a non-admin attempting
	// an admin operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks an unknown user, thread, reply, or route.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate registration.
	ErrConflict = errors.New("already exists")
	// ErrStorageLimit marks a mutation that would push the thread
	// collection past its size ceiling. It wraps ErrBadRequest so
	// errors.Is treats it as a specialization.
	ErrStorageLimit = fmt.Errorf("storage limit exceeded: %w", ErrBadRequest)
	// ErrInternal marks unexpected failures in the storage engine or below.
	ErrInternal = errors.New("internal error")
)

// HTTPStatus maps a taxonomy error to its response status code. Unknown
// errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
