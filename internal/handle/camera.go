package handle

import (
	"context"
	"fmt"

	"github.com/rfoxley/hearthsync/internal/mirror"
	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Camera is the typed handle for a camera unit.
//
// Observable capabilities: last event and the streaming flag.
type Camera struct {
	*base
}

// NewCamera builds a camera handle from a registry entry.
func NewCamera(device *mirror.Device, source realtime.Source, auth Authenticator, lookup StructureLookup) (*Camera, error) {
	if device.Category != mirror.CategoryCamera {
		return nil, fmt.Errorf("%w: %s", ErrWrongCategory, device.Category)
	}
	return &Camera{base: newBase(device, source, auth, lookup)}, nil
}

// LastEvent returns the most recent camera event payload.
func (c *Camera) LastEvent() (any, bool) {
	return c.Value(mirror.CapLastEvent)
}

// IsStreaming reports whether the camera is currently streaming.
func (c *Camera) IsStreaming() bool {
	return c.boolField(mirror.CapIsStreaming)
}

// SetStreaming writes the streaming flag. There is no contract beyond "write
// issued": the accepted value is observed back through the subscription.
func (c *Camera) SetStreaming(ctx context.Context, streaming bool) error {
	return c.writeField(ctx, mirror.CapIsStreaming, streaming)
}
