package handle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rfoxley/hearthsync/internal/mirror"
	"github.com/rfoxley/hearthsync/internal/realtime"
)

// eventSink collects events from a handle.
type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) record(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *eventSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *eventSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
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

func recordSnapshot(fields map[string]any) realtime.Snapshot {
	snap := realtime.Snapshot{
		"device_id":    "d1",
		"name":         "Hallway",
		"structure_id": "s1",
	}
	for k, v := range fields {
		snap[k] = v
	}
	return snap
}

func TestWatchEmitsOneEventPerChangedCapability(t *testing.T) {
	source := newFakeSource()
	lookup := newFakeLookup(*homeStructure())
	c, err := NewClimate(climateDevice(map[string]any{
		mirror.CapTargetTemperature:  19.0,
		mirror.CapAmbientTemperature: 18.5,
		mirror.CapHVACState:          "off",
	}, homeStructure()), source, &fakeAuth{}, lookup)
	if err != nil {
		t.Fatalf("new climate: %v", err)
	}
	defer c.Close()

	sink := &eventSink{}
	c.OnEvent(sink.record)

	if err := c.Watch(context.Background()); err != nil {
		t.Fatalf("watch: %v", err)
	}

	path := mirror.DevicePath(mirror.CategoryClimate, "d1")
	source.channel(path) <- recordSnapshot(map[string]any{
		mirror.CapTargetTemperature:  21.0,
		mirror.CapAmbientTemperature: 18.5,
		mirror.CapHVACState:          "heating",
	})

	waitFor(t, "two events", func() bool { return sink.len() == 2 })

	byCap := map[string]any{}
	for _, e := range sink.all() {
		if e.DeviceID != "d1" || e.Category != mirror.CategoryClimate {
			t.Errorf("unexpected event identity: %+v", e)
		}
		byCap[e.Capability] = e.Value
	}
	if byCap[mirror.CapTargetTemperature] != 21.0 {
		t.Errorf("expected target temperature event with 21, got %v", byCap)
	}
	if byCap[mirror.CapHVACState] != "heating" {
		t.Errorf("expected hvac state event with 'heating', got %v", byCap)
	}
	if _, ok := byCap[mirror.CapAmbientTemperature]; ok {
		t.Error("unchanged capability must not emit an event")
	}

	// Identical snapshot: no further events.
	source.channel(path) <- recordSnapshot(map[string]any{
		mirror.CapTargetTemperature:  21.0,
		mirror.CapAmbientTemperature: 18.5,
		mirror.CapHVACState:          "heating",
	})
	time.Sleep(20 * time.Millisecond)
	if sink.len() != 2 {
		t.Errorf("identical snapshot re-emitted events: %d total", sink.len())
	}
}

func TestWatchFeedsRegistry(t *testing.T) {
	source := newFakeSource()
	registry := mirror.NewRegistry()
	registry.ApplyStructureSnapshot(realtime.Snapshot{
		"s1": map[string]any{"structure_id": "s1", "name": "Home", "away": "home"},
	})
	registry.ApplyDeviceSnapshot(realtime.Snapshot{
		"d1": map[string]any{
			"device_id":                 "d1",
			"name":                      "Hallway",
			"structure_id":              "s1",
			mirror.CapTargetTemperature: 19.0,
		},
	}, mirror.CategoryClimate)

	device, err := registry.Device(mirror.CategoryClimate, "d1")
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	c, err := NewClimate(device, source, &fakeAuth{}, registry)
	if err != nil {
		t.Fatalf("new climate: %v", err)
	}
	defer c.Close()

	if err := c.Watch(context.Background()); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// A record snapshot seen only by the handle must still land in the
	// registry, so registry reads stay current between collection updates.
	path := mirror.DevicePath(mirror.CategoryClimate, "d1")
	source.channel(path) <- recordSnapshot(map[string]any{mirror.CapTargetTemperature: 22.5})

	waitFor(t, "registry write-back", func() bool {
		d, err := registry.Device(mirror.CategoryClimate, "d1")
		return err == nil && d.State[mirror.CapTargetTemperature] == 22.5
	})
}

func TestHandleDoesNotAliasRegistryEntry(t *testing.T) {
	device := climateDevice(map[string]any{mirror.CapHVACState: "off"}, homeStructure())
	c, err := NewClimate(device.DeepCopy(), newFakeSource(), &fakeAuth{}, newFakeLookup())
	if err != nil {
		t.Fatalf("new climate: %v", err)
	}

	// Mutating the original entry after construction must not reach the handle.
	device.State[mirror.CapHVACState] = "cooling"
	if v, _ := c.HVACState(); v != "off" {
		t.Errorf("handle state aliased the registry entry: got %q", v)
	}
}

func TestStructureStaleUntilNextDeviceEvent(t *testing.T) {
	source := newFakeSource()
	lookup := newFakeLookup(*homeStructure())
	c, err := NewClimate(climateDevice(nil, homeStructure()), source, &fakeAuth{}, lookup)
	if err != nil {
		t.Fatalf("new climate: %v", err)
	}
	defer c.Close()

	if err := c.Watch(context.Background()); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// The structure flips to away, but no device snapshot has arrived yet:
	// the handle still sees the stale state.
	lookup.set(mirror.Structure{ID: "s1", Name: "Home", Away: mirror.AwayAway})
	if away, _ := c.StructureAway(); away != mirror.AwayHome {
		t.Errorf("expected stale away state 'home', got %q", away)
	}

	// The next device snapshot re-resolves the reference.
	path := mirror.DevicePath(mirror.CategoryClimate, "d1")
	source.channel(path) <- recordSnapshot(map[string]any{mirror.CapHVACState: "off"})

	waitFor(t, "structure re-resolution", func() bool {
		away, _ := c.StructureAway()
		return away == mirror.AwayAway
	})
}

func TestCameraSetStreaming(t *testing.T) {
	source := newFakeSource()
	auth := &fakeAuth{}
	device := &mirror.Device{
		ID:           "cam1",
		Name:         "Porch",
		StructureID:  "s1",
		Structure:    homeStructure(),
		Category:     mirror.CategoryCamera,
		Capabilities: mirror.Capabilities(mirror.CategoryCamera),
		State:        realtime.Snapshot{mirror.CapIsStreaming: false},
	}
	cam, err := NewCamera(device, source, auth, newFakeLookup())
	if err != nil {
		t.Fatalf("new camera: %v", err)
	}

	if err := cam.SetStreaming(context.Background(), true); err != nil {
		t.Fatalf("set streaming: %v", err)
	}
	w, ok := source.lastWrite()
	if !ok {
		t.Fatal("expected a write")
	}
	wantPath := mirror.DeviceFieldPath(mirror.CategoryCamera, "cam1", mirror.CapIsStreaming)
	if w.path != wantPath || w.value != true {
		t.Errorf("unexpected write %+v", w)
	}
	if auth.calls.Load() == 0 {
		t.Error("expected command to authenticate first")
	}
	if cam.IsStreaming() {
		t.Error("streaming flag must not update optimistically")
	}
}

func TestHazardAccessors(t *testing.T) {
	device := &mirror.Device{
		ID:           "h1",
		Name:         "Kitchen",
		StructureID:  "s1",
		Category:     mirror.CategoryHazard,
		Capabilities: mirror.Capabilities(mirror.CategoryHazard),
		State: realtime.Snapshot{
			mirror.CapBatteryHealth:   "ok",
			mirror.CapCOAlarmState:    "ok",
			mirror.CapSmokeAlarmState: "warning",
		},
	}
	h, err := NewHazard(device, newFakeSource(), &fakeAuth{}, newFakeLookup())
	if err != nil {
		t.Fatalf("new hazard: %v", err)
	}

	if v, _ := h.BatteryHealth(); v != "ok" {
		t.Errorf("battery health: got %q", v)
	}
	if v, _ := h.SmokeAlarmState(); v != "warning" {
		t.Errorf("smoke alarm state: got %q", v)
	}
	if v, _ := h.COAlarmState(); v != "ok" {
		t.Errorf("co alarm state: got %q", v)
	}
}
