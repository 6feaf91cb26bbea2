package hearthsync

import (
	"context"
	"errors"
	"sync"

	"github.com/rfoxley/hearthsync/internal/handle"
	"github.com/rfoxley/hearthsync/internal/history"
	"github.com/rfoxley/hearthsync/internal/infrastructure/logging"
	"github.com/rfoxley/hearthsync/internal/mirror"
	"github.com/rfoxley/hearthsync/internal/realtime"
	"github.com/rfoxley/hearthsync/internal/session"
)

// Configuration errors.
var (
	// ErrNoSource is returned by New when no push-feed transport is given.
	ErrNoSource = errors.New("hearthsync: source is required")

	// ErrNoAuth is returned by New when no auth transport is given.
	ErrNoAuth = errors.New("hearthsync: auth transport is required")
)

// Config assembles a Client. Source and Auth are required; everything else
// has a working zero value.
type Config struct {
	// Credential is the long-lived account credential. It may be empty at
	// construction and supplied later via Authenticate.
	Credential string

	// Source is the push-feed transport (mqtt.Client or stream.Client).
	Source realtime.Source

	// Auth exchanges the credential for an authenticated channel.
	Auth session.AuthTransport

	// Revoker invalidates the credential remotely. Optional; without it
	// Revoke only signs out locally.
	Revoker session.RevocationTransport

	// Logger receives structured logs from all layers. Optional.
	Logger *logging.Logger

	// History records detected capability changes. Optional.
	History *history.Recorder
}

// Client is the top-level mirror: one session, one registry, one
// subscription multiplexer, and any number of device handles on top.
//
// All methods are safe for concurrent use.
type Client struct {
	source   realtime.Source
	session  *session.Session
	registry *mirror.Registry
	mux      *mirror.Multiplexer
	history  *history.Recorder
	logger   *logging.Logger

	mu      sync.Mutex
	handles []watcher
	closed  bool
}

// watcher is the lifecycle surface shared by all handle types.
type watcher interface {
	SetLogger(handle.Logger)
	OnEvent(func(handle.Event))
	Watch(ctx context.Context) error
	Close()
}

// New assembles a Client from its transports. Nothing touches the network
// until Start.
func New(cfg Config) (*Client, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.Auth == nil {
		return nil, ErrNoAuth
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	sess := session.New(cfg.Auth, cfg.Revoker, cfg.Credential)
	sess.SetLogger(logger)

	registry := mirror.NewRegistry()
	registry.SetLogger(logger)

	mux := mirror.NewMultiplexer(cfg.Source, registry, sess)
	mux.SetLogger(logger)

	return &Client{
		source:   cfg.Source,
		session:  sess,
		registry: registry,
		mux:      mux,
		history:  cfg.History,
		logger:   logger,
	}, nil
}

// Start authenticates and opens the collection subscriptions. The first
// full sync completes when Initialized fires; Start itself returns as soon
// as the structures subscription is open.
func (c *Client) Start(ctx context.Context) error {
	if err := c.mux.Start(ctx); err != nil {
		return err
	}
	if c.history != nil {
		go c.recordAwayChanges(ctx)
	}
	return nil
}

// Initialized returns the one-shot sync barrier. The channel closes once
// every collection subscription has delivered at least one snapshot. When
// the sync fails instead, the channel never closes; use WaitInitialized to
// observe either outcome.
func (c *Client) Initialized() <-chan struct{} {
	return c.mux.Initialized()
}

// WaitInitialized blocks until the first full sync completes, fails, or the
// context is cancelled.
func (c *Client) WaitInitialized(ctx context.Context) error {
	return c.mux.WaitInitialized(ctx)
}

// Authenticate exchanges the credential for an authenticated channel.
// An empty credential reuses the one given at construction. Concurrent
// calls coalesce onto a single exchange.
func (c *Client) Authenticate(ctx context.Context, credential string) error {
	return c.session.Authenticate(ctx, credential)
}

// Revoke signs out locally and invalidates the credential remotely.
func (c *Client) Revoke(ctx context.Context) error {
	return c.session.Revoke(ctx)
}

// State returns the current authentication state.
func (c *Client) State() SessionState {
	return c.session.State()
}

// OnStateChange registers a callback for authentication state transitions.
func (c *Client) OnStateChange(fn func(SessionState)) {
	c.session.OnStateChange(fn)
}

// Session exposes the underlying session, mainly for status reporting.
func (c *Client) Session() *session.Session {
	return c.session
}

// Registry exposes the underlying registry, mainly for status reporting.
// All lookups return copies; mutating them never touches the mirror.
func (c *Client) Registry() *mirror.Registry {
	return c.registry
}

// Structures returns the mirrored structures.
func (c *Client) Structures() []Structure {
	return c.registry.Structures()
}

// Devices returns the mirrored devices in a category.
func (c *Client) Devices(category Category) []Device {
	return c.registry.Devices(category)
}

// Climate returns a watching handle for a mirrored thermostat.
// The handle is live until Close, on it or on the Client.
func (c *Client) Climate(ctx context.Context, id string) (*handle.Climate, error) {
	device, err := c.registry.Device(CategoryClimate, id)
	if err != nil {
		return nil, err
	}
	h, err := handle.NewClimate(device, c.source, c.session, c.registry)
	if err != nil {
		return nil, err
	}
	if err := c.adopt(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Hazard returns a watching handle for a mirrored smoke/CO detector.
func (c *Client) Hazard(ctx context.Context, id string) (*handle.Hazard, error) {
	device, err := c.registry.Device(CategoryHazard, id)
	if err != nil {
		return nil, err
	}
	h, err := handle.NewHazard(device, c.source, c.session, c.registry)
	if err != nil {
		return nil, err
	}
	if err := c.adopt(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Camera returns a watching handle for a mirrored camera.
func (c *Client) Camera(ctx context.Context, id string) (*handle.Camera, error) {
	device, err := c.registry.Device(CategoryCamera, id)
	if err != nil {
		return nil, err
	}
	h, err := handle.NewCamera(device, c.source, c.session, c.registry)
	if err != nil {
		return nil, err
	}
	if err := c.adopt(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// adopt wires a handle into the client: logging, history recording, the
// watch subscription, and shutdown tracking.
func (c *Client) adopt(ctx context.Context, h watcher) error {
	h.SetLogger(c.logger)
	if c.history != nil {
		recorder := c.history
		h.OnEvent(func(e handle.Event) {
			recorder.RecordChange(e.DeviceID, string(e.Category), e.Capability, e.Value)
		})
	}
	if err := h.Watch(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		h.Close()
		return mirror.ErrClosed
	}
	c.handles = append(c.handles, h)
	return nil
}

// recordAwayChanges keeps its own structures subscription and writes away
// transitions to history. Best effort; a failed subscription only costs
// history coverage.
func (c *Client) recordAwayChanges(ctx context.Context) {
	ch, err := c.source.Subscribe(ctx, mirror.PathStructures)
	if err != nil {
		c.logger.Warn("away history subscription failed", "error", err)
		return
	}

	last := make(map[string]AwayState)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			for id, entry := range snap.Entries() {
				away, present := entry.String("away")
				if !present {
					continue
				}
				state := AwayState(away)
				if prev, seen := last[id]; seen && prev == state {
					continue
				}
				last[id] = state
				c.history.RecordAway(id, away)
			}
		}
	}
}

// Close tears the mirror down: every adopted handle, then the multiplexer.
// The transports are owned by the caller and stay open.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handles := c.handles
	c.handles = nil
	c.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
	c.mux.Close()
}
