package handle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rfoxley/hearthsync/internal/mirror"
	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Event is one capability change notification: Capability now holds Value.
type Event struct {
	DeviceID   string
	Category   mirror.Category
	Capability string
	Value      any
}

// StructureLookup resolves a structure by identifier. Implemented by
// *mirror.Registry.
type StructureLookup interface {
	Structure(id string) (*mirror.Structure, error)
}

// deviceUpserter is the optional write-back side of the registry. When the
// lookup implements it, the handle feeds its merged record state back after
// every snapshot so registry reads stay current between collection updates.
type deviceUpserter interface {
	UpsertDevice(entry realtime.Snapshot, category mirror.Category) error
}

// Authenticator guards remote access; every subscription setup and every
// command goes through it. Implemented by *session.Session.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) error
}

// Logger is the minimal logging interface used by handles.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// base carries the behavior shared by all device handles: a change detector
// over the device's fixed capability set, an independent subscription to the
// device's own record, and listener fan-out.
//
// A handle is a derived view: it copies the registry entry's values at
// construction and is kept current only by its own subscription. The owning
// structure reference is re-read on each device snapshot, never live on
// structure updates.
type base struct {
	id       string
	name     string
	category mirror.Category

	detector *mirror.Detector
	source   realtime.Source
	auth     Authenticator
	lookup   StructureLookup
	upsert   deviceUpserter
	logger   Logger

	mu        sync.Mutex
	structure *mirror.Structure
	listeners []func(Event)
	watching  bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func newBase(device *mirror.Device, source realtime.Source, auth Authenticator, lookup StructureLookup) *base {
	upsert, _ := lookup.(deviceUpserter)
	return &base{
		upsert:    upsert,
		id:        device.ID,
		name:      device.Name,
		category:  device.Category,
		detector:  mirror.NewDetector(device.Capabilities, device.State),
		source:    source,
		auth:      auth,
		lookup:    lookup,
		logger:    noopLogger{},
		structure: device.Structure,
	}
}

// ID returns the device identifier.
func (b *base) ID() string { return b.id }

// Name returns the device display name.
func (b *base) Name() string { return b.name }

// Category returns the device category.
func (b *base) Category() mirror.Category { return b.category }

// SetLogger sets the logger for the handle.
func (b *base) SetLogger(logger Logger) {
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// OnEvent registers a listener for capability change events. Listeners run
// on the handle's watch goroutine and must not block.
func (b *base) OnEvent(fn func(Event)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Value returns the current value of a field from the handle's own state.
func (b *base) Value(field string) (any, bool) {
	return b.detector.Value(field)
}

// StructureAway returns the owning structure's away state as last observed
// by this handle. ok is false while the reference is unresolved.
func (b *base) StructureAway() (mirror.AwayState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.structure == nil {
		return "", false
	}
	return b.structure.Away, true
}

// Watch authenticates and subscribes to the device's own record, running the
// change detector on every update. It returns once the subscription is
// established; detection continues in the background until Close.
func (b *base) Watch(ctx context.Context) error {
	b.mu.Lock()
	if b.watching {
		b.mu.Unlock()
		return nil
	}
	b.watching = true
	ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	if err := b.auth.Authenticate(ctx, ""); err != nil {
		return fmt.Errorf("authenticating before device subscription: %w", err)
	}

	path := mirror.DevicePath(b.category, b.id)
	ch, err := b.source.Subscribe(ctx, path)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", path, err)
	}

	b.wg.Add(1)
	go b.watch(ctx, ch)
	return nil
}

// Close stops the handle's subscription goroutine.
func (b *base) Close() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

func (b *base) watch(ctx context.Context, ch <-chan realtime.Snapshot) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			b.onSnapshot(snap)
		}
	}
}

// onSnapshot re-resolves the owning structure, diffs the snapshot, and fans
// detected changes out to listeners, one event per capability.
func (b *base) onSnapshot(snap realtime.Snapshot) {
	b.refreshStructure(snap)

	changes := b.detector.ApplySnapshot(snap)
	b.feedRegistry()
	if len(changes) == 0 {
		return
	}

	b.mu.Lock()
	listeners := make([]func(Event), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, change := range changes {
		event := Event{
			DeviceID:   b.id,
			Category:   b.category,
			Capability: change.Capability,
			Value:      change.Value,
		}
		for _, fn := range listeners {
			fn(event)
		}
	}
}

// feedRegistry writes the handle's merged record state back so registry
// lookups see per-device updates, not just collection snapshots. The merged
// state always carries the identity fields from construction, so a partial
// record snapshot never produces a malformed upsert.
func (b *base) feedRegistry() {
	if b.upsert == nil {
		return
	}
	if err := b.upsert.UpsertDevice(b.detector.State(), b.category); err != nil {
		b.logger.Warn("registry write-back failed", "device", b.id, "error", err)
	}
}

// refreshStructure re-resolves the owning structure reference against the
// registry. The snapshot may carry a new structure_id; otherwise the held
// one is looked up again so a renamed or re-flagged structure is picked up
// on the next device event.
func (b *base) refreshStructure(snap realtime.Snapshot) {
	id, ok := snap.String("structure_id")
	if !ok {
		b.mu.Lock()
		if b.structure != nil {
			id = b.structure.ID
		}
		b.mu.Unlock()
	}
	if id == "" {
		return
	}

	structure, err := b.lookup.Structure(id)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.structure = structure
	b.mu.Unlock()
}

// writeField authenticates and writes one field of the device's record.
func (b *base) writeField(ctx context.Context, field string, value any) error {
	if err := b.auth.Authenticate(ctx, ""); err != nil {
		return err
	}
	path := mirror.DeviceFieldPath(b.category, b.id, field)
	if err := b.source.Write(ctx, path, value); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	b.logger.Debug("field written", "path", path)
	return nil
}

// Typed field accessors over the raw snapshot values.

func (b *base) floatField(field string) (float64, bool) {
	v, ok := b.detector.Value(field)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func (b *base) stringField(field string) (string, bool) {
	v, ok := b.detector.Value(field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (b *base) boolField(field string) bool {
	v, ok := b.detector.Value(field)
	if !ok {
		return false
	}
	flag, ok := v.(bool)
	return ok && flag
}
