package mirror

import "errors"

// Domain errors for the mirror package.
//
// These errors can be checked using errors.Is() in calling code.
var (
	// ErrNotFound is returned when a structure or device identifier is not
	// present in the registry.
	ErrNotFound = errors.New("mirror: not found")

	// ErrMalformedSnapshot marks a snapshot entry missing required identity
	// fields. The feed legitimately delivers transient partial states, so
	// the registry logs and drops such entries instead of surfacing them.
	ErrMalformedSnapshot = errors.New("mirror: malformed snapshot")

	// ErrClosed is returned when operating on a closed multiplexer.
	ErrClosed = errors.New("mirror: multiplexer closed")
)
