package session

import (
	"errors"
	"fmt"
)

// Domain errors for the session package.
//
// These errors can be checked using errors.Is() / errors.As() in calling code.
var (
	// ErrNoCredential is returned by Authenticate when no credential has been
	// supplied, now or previously.
	ErrNoCredential = errors.New("session: no credential")
)

// AuthError is returned when the remote credential exchange rejects the
// credential. It wraps the remote cause.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session: authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RevocationError is returned when the remote revocation endpoint fails.
// StatusCode carries the HTTP status when the endpoint answered with a
// non-2xx response; it is zero for transport-level failures.
type RevocationError struct {
	StatusCode int
	Err        error
}

func (e *RevocationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("session: revocation failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("session: revocation failed: %v", e.Err)
}

func (e *RevocationError) Unwrap() error { return e.Err }
