package stream

import "errors"

// Domain-specific errors for the websocket feed.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDialFailed is returned when the websocket upgrade fails.
	ErrDialFailed = errors.New("stream: dial failed")

	// ErrClosed is returned for operations on a closed client.
	ErrClosed = errors.New("stream: client closed")

	// ErrInvalidPath is returned when an empty store path is provided.
	ErrInvalidPath = errors.New("stream: path cannot be empty")
)
