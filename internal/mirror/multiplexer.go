package mirror

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Authenticator guards remote access. Every subscription setup goes through
// it, relying on its idempotence. Implemented by *session.Session.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) error
}

// Multiplexer opens one push subscription per remote collection and feeds
// every incoming snapshot into the Registry. Structures are subscribed
// first; the device-category subscriptions open only after the first
// structures snapshot, so devices can resolve their owning structure.
//
// Initialized() is a one-shot barrier: it fires only after every opened
// subscription has delivered at least one value, regardless of arrival
// order. Later snapshots keep flowing into the registry but never re-fire.
type Multiplexer struct {
	source   realtime.Source
	registry *Registry
	auth     Authenticator
	logger   Logger

	initialized chan struct{}
	remaining   atomic.Int32

	// failed is closed when a device-category subscription cannot be
	// opened; failErr holds the cause. The barrier can then never fire,
	// so the failure is surfaced instead of leaving waiters hanging.
	failed  chan struct{}
	failErr error

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMultiplexer creates a multiplexer over the given source and registry.
func NewMultiplexer(source realtime.Source, registry *Registry, auth Authenticator) *Multiplexer {
	m := &Multiplexer{
		source:      source,
		registry:    registry,
		auth:        auth,
		logger:      noopLogger{},
		initialized: make(chan struct{}),
		failed:      make(chan struct{}),
	}
	m.remaining.Store(int32(1 + len(AllCategories())))
	return m
}

// SetLogger sets the logger for the multiplexer.
func (m *Multiplexer) SetLogger(logger Logger) {
	m.mu.Lock()
	m.logger = logger
	m.mu.Unlock()
}

// Initialized returns a channel closed once the initial sync completes:
// every subscription has delivered its first snapshot.
func (m *Multiplexer) Initialized() <-chan struct{} {
	return m.initialized
}

// Failed returns a channel closed when the initial sync can no longer
// complete. Err reports the cause.
func (m *Multiplexer) Failed() <-chan struct{} {
	return m.failed
}

// Err returns the initial-sync failure, or nil.
func (m *Multiplexer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failErr
}

// WaitInitialized blocks until the initial sync completes, fails, or the
// context is cancelled.
func (m *Multiplexer) WaitInitialized(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.failed:
		return m.Err()
	case <-m.initialized:
		return nil
	}
}

// Start authenticates, opens the structures subscription, and begins
// consuming. Device-category subscriptions open once structures have synced.
// Start returns once the structures subscription is established; snapshot
// consumption continues in the background until Close or context cancel.
func (m *Multiplexer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	if err := m.auth.Authenticate(ctx, ""); err != nil {
		return fmt.Errorf("authenticating before structures subscription: %w", err)
	}

	ch, err := m.source.Subscribe(ctx, PathStructures)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", PathStructures, err)
	}

	var once sync.Once
	m.wg.Add(1)
	go m.consume(ctx, ch, func(snap realtime.Snapshot) {
		m.registry.ApplyStructureSnapshot(snap)
		once.Do(func() {
			m.arrived(PathStructures)
			m.openDeviceSubscriptions(ctx)
		})
	})

	return nil
}

// Close stops all consumption goroutines. Subscriptions otherwise live for
// the session lifetime; Close exists for graceful shutdown only.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// openDeviceSubscriptions opens one subscription per device category. Runs
// once, after the first structures snapshot has been applied. A category
// that cannot be opened means the barrier can never fire, so the first
// failure marks the sync as failed and stops.
func (m *Multiplexer) openDeviceSubscriptions(ctx context.Context) {
	for _, category := range AllCategories() {
		category := category
		path := CategoryPath(category)

		if err := m.auth.Authenticate(ctx, ""); err != nil {
			m.fail(fmt.Errorf("authenticating before %s subscription: %w", path, err))
			return
		}
		ch, err := m.source.Subscribe(ctx, path)
		if err != nil {
			m.fail(fmt.Errorf("subscribing to %s: %w", path, err))
			return
		}

		var once sync.Once
		m.wg.Add(1)
		go m.consume(ctx, ch, func(snap realtime.Snapshot) {
			m.registry.ApplyDeviceSnapshot(snap, category)
			once.Do(func() { m.arrived(path) })
		})
	}
}

// consume drains one subscription channel until the context is cancelled or
// the source closes the channel.
func (m *Multiplexer) consume(ctx context.Context, ch <-chan realtime.Snapshot, apply func(realtime.Snapshot)) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			apply(snap)
		}
	}
}

// fail records the first initial-sync failure and wakes waiters.
func (m *Multiplexer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return
	}
	m.failErr = err
	m.logger.Warn("initial sync failed", "error", err)
	close(m.failed)
}

// arrived records one subscription's first snapshot and fires the barrier
// when the last one lands.
func (m *Multiplexer) arrived(path string) {
	m.logger.Debug("collection synced", "path", path)
	if m.remaining.Add(-1) == 0 {
		close(m.initialized)
	}
}
