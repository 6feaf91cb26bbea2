// Package hearthsync mirrors a cloud home-automation account into local
// memory and exposes typed device handles over the mirror.
//
// The package wires four layers together:
//
//	session    credential exchange, revocation, auth-state tracking
//	mirror     registry of structures/devices + subscription multiplexer
//	handle     typed climate/hazard/camera views with command preconditions
//	realtime   the push-feed transport abstraction (MQTT or websocket)
//
// A Client owns one mirror. Typical use:
//
//	client, err := hearthsync.New(hearthsync.Config{
//	    Credential: cfg.Cloud.Credential,
//	    Source:     feed,
//	    Auth:       transport,
//	    Revoker:    transport,
//	})
//	if err != nil { ... }
//	if err := client.Start(ctx); err != nil { ... }
//	<-client.Initialized() // first full sync done
//
//	thermostat, err := client.Climate(ctx, "cl-1")
//	if err != nil { ... }
//	accepted, err := thermostat.SetTargetTemperature(ctx, 21.5)
//
// All state is in memory; nothing survives a restart. The remote store is
// authoritative and commands are optimistic: a successful write means the
// transport accepted it, and the new value shows up through the mirror once
// the remote store applies it.
package hearthsync

import (
	"github.com/rfoxley/hearthsync/internal/handle"
	"github.com/rfoxley/hearthsync/internal/mirror"
	"github.com/rfoxley/hearthsync/internal/session"
)

// Re-exported domain types, so callers rarely need the internal paths.
type (
	// Structure is a mirrored building.
	Structure = mirror.Structure

	// Device is a mirrored device record.
	Device = mirror.Device

	// Category is a device category (climate, hazard, camera).
	Category = mirror.Category

	// AwayState is a structure's occupancy state.
	AwayState = mirror.AwayState

	// Event is a single detected capability change.
	Event = handle.Event

	// PreconditionError reports a rejected command with its reason.
	PreconditionError = handle.PreconditionError

	// Range is the allowed bounds carried by locked-range rejections.
	Range = handle.Range

	// SessionState is the authentication state.
	SessionState = session.State
)

// Device categories.
const (
	CategoryClimate = mirror.CategoryClimate
	CategoryHazard  = mirror.CategoryHazard
	CategoryCamera  = mirror.CategoryCamera
)

// Away states.
const (
	AwayHome     = mirror.AwayHome
	AwayAway     = mirror.AwayAway
	AwayAutoAway = mirror.AwayAutoAway
)

// Session states.
const (
	StateUnauthenticated = session.StateUnauthenticated
	StateAuthenticating  = session.StateAuthenticating
	StateAuthenticated   = session.StateAuthenticated
)
