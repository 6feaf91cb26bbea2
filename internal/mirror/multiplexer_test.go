package mirror

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

// fakeSource is an in-memory realtime.Source for tests.
type fakeSource struct {
	mu       sync.Mutex
	channels map[string]chan realtime.Snapshot
	writes   []fakeWrite
	subErrs  map[string]error
}

type fakeWrite struct {
	path  string
	value any
}

func newFakeSource() *fakeSource {
	return &fakeSource{channels: make(map[string]chan realtime.Snapshot)}
}

func (f *fakeSource) channel(path string) chan realtime.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[path]
	if !ok {
		ch = make(chan realtime.Snapshot, 16)
		f.channels[path] = ch
	}
	return ch
}

func (f *fakeSource) Subscribe(_ context.Context, path string) (<-chan realtime.Snapshot, error) {
	f.mu.Lock()
	err := f.subErrs[path]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.channel(path), nil
}

func (f *fakeSource) failSubscribe(path string, err error) {
	f.mu.Lock()
	if f.subErrs == nil {
		f.subErrs = make(map[string]error)
	}
	f.subErrs[path] = err
	f.mu.Unlock()
}

func (f *fakeSource) Write(_ context.Context, path string, value any) error {
	f.mu.Lock()
	f.writes = append(f.writes, fakeWrite{path: path, value: value})
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) push(path string, snap realtime.Snapshot) {
	f.channel(path) <- snap
}

func (f *fakeSource) subscribed(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.channels[path]
	return ok
}

// fakeAuth is an Authenticator counting calls.
type fakeAuth struct {
	calls atomic.Int32
	err   error
}

func (f *fakeAuth) Authenticate(context.Context, string) error {
	f.calls.Add(1)
	return f.err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestMultiplexerBarrierFiresOnceAfterAllCollections(t *testing.T) {
	source := newFakeSource()
	registry := NewRegistry()
	m := NewMultiplexer(source, registry, &fakeAuth{})
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	source.push(PathStructures, realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})

	// Device subscriptions open only after the first structures snapshot.
	waitFor(t, "device subscriptions", func() bool {
		for _, c := range AllCategories() {
			if !source.subscribed(CategoryPath(c)) {
				return false
			}
		}
		return true
	})

	select {
	case <-m.Initialized():
		t.Fatal("barrier fired before device collections synced")
	default:
	}

	// Deliver device snapshots in arbitrary order.
	source.push(CategoryPath(CategoryCamera), realtime.Snapshot{
		"c1": deviceEntry("c1", "Porch", "s1", nil),
	})
	source.push(CategoryPath(CategoryHazard), realtime.Snapshot{
		"h1": deviceEntry("h1", "Kitchen", "s1", nil),
	})

	select {
	case <-m.Initialized():
		t.Fatal("barrier fired with one collection still pending")
	case <-time.After(20 * time.Millisecond):
	}

	source.push(CategoryPath(CategoryClimate), realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", nil),
	})

	select {
	case <-m.Initialized():
	case <-time.After(2 * time.Second):
		t.Fatal("barrier never fired")
	}

	// Later snapshots keep flowing but do not re-fire (channel stays closed).
	source.push(CategoryPath(CategoryClimate), realtime.Snapshot{
		"d2": deviceEntry("d2", "Bedroom", "s1", nil),
	})
	waitFor(t, "second climate device", func() bool {
		return registry.DeviceCount(CategoryClimate) == 2
	})
}

func TestMultiplexerFeedsRegistry(t *testing.T) {
	source := newFakeSource()
	registry := NewRegistry()
	m := NewMultiplexer(source, registry, &fakeAuth{})
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	source.push(PathStructures, realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})
	waitFor(t, "climate subscription", func() bool {
		return source.subscribed(CategoryPath(CategoryClimate))
	})

	source.push(CategoryPath(CategoryClimate), realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", map[string]any{CapHVACState: "off"}),
	})

	waitFor(t, "device in registry", func() bool {
		return registry.DeviceCount(CategoryClimate) == 1
	})

	d, err := registry.Device(CategoryClimate, "d1")
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	if d.Structure == nil || d.Structure.ID != "s1" {
		t.Errorf("expected resolved structure, got %+v", d.Structure)
	}
}

func TestMultiplexerAuthenticatesBeforeEverySubscription(t *testing.T) {
	source := newFakeSource()
	auth := &fakeAuth{}
	m := NewMultiplexer(source, NewRegistry(), auth)
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	source.push(PathStructures, realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})

	waitFor(t, "all subscriptions", func() bool {
		return auth.calls.Load() == int32(1+len(AllCategories()))
	})
}

func TestMultiplexerSurfacesDeviceSubscriptionFailure(t *testing.T) {
	source := newFakeSource()
	subErr := errors.New("feed refused")
	source.failSubscribe(CategoryPath(CategoryClimate), subErr)

	m := NewMultiplexer(source, NewRegistry(), &fakeAuth{})
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	source.push(PathStructures, realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := m.WaitInitialized(ctx)
	if err == nil {
		t.Fatal("WaitInitialized returned nil after a device subscription failed")
	}
	if !errors.Is(err, subErr) {
		t.Errorf("WaitInitialized error = %v, want wrapped %v", err, subErr)
	}
	if m.Err() == nil {
		t.Error("Err() = nil after failed sync")
	}

	select {
	case <-m.Initialized():
		t.Error("barrier fired despite a failed device subscription")
	default:
	}
}

func TestMultiplexerWaitInitializedSucceeds(t *testing.T) {
	source := newFakeSource()
	m := NewMultiplexer(source, NewRegistry(), &fakeAuth{})
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	source.push(PathStructures, realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})
	for _, c := range AllCategories() {
		source.push(CategoryPath(c), realtime.Snapshot{
			string(c) + "1": deviceEntry(string(c)+"1", "Dev", "s1", nil),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.WaitInitialized(ctx); err != nil {
		t.Fatalf("WaitInitialized: %v", err)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v after successful sync", m.Err())
	}
}

func TestMultiplexerStartIsIdempotent(t *testing.T) {
	source := newFakeSource()
	m := NewMultiplexer(source, NewRegistry(), &fakeAuth{})
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
}

func TestMultiplexerCloseStopsConsumption(t *testing.T) {
	source := newFakeSource()
	m := NewMultiplexer(source, NewRegistry(), &fakeAuth{})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Close()

	if err := m.Start(context.Background()); err != ErrClosed {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}
