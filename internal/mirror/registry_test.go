package mirror

import (
	"errors"
	"testing"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

func structureEntry(id, name, away string) map[string]any {
	return map[string]any{
		"structure_id": id,
		"name":         name,
		"away":         away,
	}
}

func deviceEntry(id, name, structureID string, fields map[string]any) map[string]any {
	entry := map[string]any{
		"device_id":    id,
		"name":         name,
		"structure_id": structureID,
	}
	for k, v := range fields {
		entry[k] = v
	}
	return entry
}

func TestApplyStructureSnapshotUpsert(t *testing.T) {
	r := NewRegistry()

	snap := realtime.Snapshot{
		"s1": structureEntry("s1", "Home", "home"),
		"s2": structureEntry("s2", "Cabin", "away"),
	}
	r.ApplyStructureSnapshot(snap)

	s, err := r.Structure("s1")
	if err != nil {
		t.Fatalf("structure s1: %v", err)
	}
	if s.Name != "Home" || s.Away != AwayHome {
		t.Errorf("unexpected structure: %+v", s)
	}
	if got := len(r.Structures()); got != 2 {
		t.Errorf("expected 2 structures, got %d", got)
	}
}

func TestApplyStructureSnapshotIdempotent(t *testing.T) {
	r := NewRegistry()
	snap := realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")}

	r.ApplyStructureSnapshot(snap)
	r.ApplyStructureSnapshot(snap)

	if got := len(r.Structures()); got != 1 {
		t.Errorf("expected 1 structure after duplicate snapshot, got %d", got)
	}
}

func TestStructureReplaceNotDuplicate(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 5; i++ {
		away := "home"
		if i%2 == 1 {
			away = "away"
		}
		r.ApplyStructureSnapshot(realtime.Snapshot{"s1": structureEntry("s1", "Home", away)})
	}

	if got := len(r.Structures()); got != 1 {
		t.Fatalf("expected 1 structure after 5 upserts, got %d", got)
	}
	s, _ := r.Structure("s1")
	if s.Away != AwayHome {
		t.Errorf("expected latest away state 'home', got %q", s.Away)
	}
}

func TestApplyStructureSnapshotEmptyIsNoop(t *testing.T) {
	r := NewRegistry()
	r.ApplyStructureSnapshot(nil)
	r.ApplyStructureSnapshot(realtime.Snapshot{})

	if got := len(r.Structures()); got != 0 {
		t.Errorf("expected no structures, got %d", got)
	}
}

func TestMalformedStructureEntryDropped(t *testing.T) {
	r := NewRegistry()
	r.ApplyStructureSnapshot(realtime.Snapshot{
		"bad":  map[string]any{"name": "No ID"},
		"good": structureEntry("s1", "Home", "home"),
	})

	if got := len(r.Structures()); got != 1 {
		t.Errorf("expected malformed entry to be dropped, got %d structures", got)
	}
}

func TestApplyDeviceSnapshotUpsertAndResolve(t *testing.T) {
	r := NewRegistry()
	r.ApplyStructureSnapshot(realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})

	r.ApplyDeviceSnapshot(realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", map[string]any{
			CapTargetTemperature: 21.0,
		}),
	}, CategoryClimate)

	d, err := r.Device(CategoryClimate, "d1")
	if err != nil {
		t.Fatalf("device d1: %v", err)
	}
	if d.Structure == nil || d.Structure.ID != "s1" {
		t.Errorf("expected resolved structure s1, got %+v", d.Structure)
	}
	if d.State[CapTargetTemperature] != 21.0 {
		t.Errorf("expected state to carry snapshot fields, got %+v", d.State)
	}
	if len(d.Capabilities) != 3 {
		t.Errorf("expected climate capability set, got %v", d.Capabilities)
	}
}

func TestDeviceReplaceNotDuplicate(t *testing.T) {
	r := NewRegistry()
	r.ApplyStructureSnapshot(realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})

	for i := 0; i < 4; i++ {
		r.ApplyDeviceSnapshot(realtime.Snapshot{
			"d1": deviceEntry("d1", "Hallway", "s1", map[string]any{
				CapTargetTemperature: float64(18 + i),
			}),
		}, CategoryClimate)
	}

	if got := r.DeviceCount(CategoryClimate); got != 1 {
		t.Fatalf("expected 1 device after 4 upserts, got %d", got)
	}
	d, _ := r.Device(CategoryClimate, "d1")
	if d.State[CapTargetTemperature] != 21.0 {
		t.Errorf("expected latest value 21, got %v", d.State[CapTargetTemperature])
	}
}

func TestDeviceReplacePreservesNothing(t *testing.T) {
	r := NewRegistry()
	r.ApplyStructureSnapshot(realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})

	r.ApplyDeviceSnapshot(realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", map[string]any{"extra": "x"}),
	}, CategoryClimate)
	r.ApplyDeviceSnapshot(realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", nil),
	}, CategoryClimate)

	d, _ := r.Device(CategoryClimate, "d1")
	if _, ok := d.State["extra"]; ok {
		t.Error("replace must not preserve fields from the prior entry")
	}
}

func TestDeviceBeforeStructureResolvesOnReupsert(t *testing.T) {
	r := NewRegistry()

	// Device arrives first: accepted with an unresolved reference.
	r.ApplyDeviceSnapshot(realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", nil),
	}, CategoryClimate)

	d, err := r.Device(CategoryClimate, "d1")
	if err != nil {
		t.Fatalf("device d1: %v", err)
	}
	if d.Structure != nil {
		t.Error("expected unresolved structure reference")
	}

	// Structure arrives; reference stays unresolved until the next upsert.
	r.ApplyStructureSnapshot(realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})
	d, _ = r.Device(CategoryClimate, "d1")
	if d.Structure != nil {
		t.Error("reference must not resolve retroactively")
	}

	// Next device upsert re-resolves.
	r.ApplyDeviceSnapshot(realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", nil),
	}, CategoryClimate)
	d, _ = r.Device(CategoryClimate, "d1")
	if d.Structure == nil || d.Structure.ID != "s1" {
		t.Errorf("expected resolved structure after re-upsert, got %+v", d.Structure)
	}
}

func TestMalformedDeviceEntriesDropped(t *testing.T) {
	r := NewRegistry()
	r.ApplyStructureSnapshot(realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})

	tests := []struct {
		name  string
		entry map[string]any
	}{
		{"missing device_id", map[string]any{"name": "X", "structure_id": "s1"}},
		{"missing name", map[string]any{"device_id": "d9", "structure_id": "s1"}},
		{"missing structure_id", map[string]any{"device_id": "d9", "name": "X"}},
		{"not an object", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := realtime.Snapshot{"entry": any(tt.entry)}
			if tt.entry == nil {
				snap = realtime.Snapshot{"entry": "scalar"}
			}
			r.ApplyDeviceSnapshot(snap, CategoryHazard)
			if got := r.DeviceCount(CategoryHazard); got != 0 {
				t.Errorf("expected entry to be dropped, registry has %d devices", got)
			}
		})
	}
}

func TestDeviceLookupMiss(t *testing.T) {
	r := NewRegistry()

	_, err := r.Device(CategoryCamera, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = r.Structure("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeviceCopyDoesNotAliasRegistry(t *testing.T) {
	r := NewRegistry()
	r.ApplyStructureSnapshot(realtime.Snapshot{"s1": structureEntry("s1", "Home", "home")})
	r.ApplyDeviceSnapshot(realtime.Snapshot{
		"d1": deviceEntry("d1", "Hallway", "s1", map[string]any{CapHVACState: "off"}),
	}, CategoryClimate)

	d, _ := r.Device(CategoryClimate, "d1")
	d.State[CapHVACState] = "heating"
	d.Structure.Away = AwayAway

	again, _ := r.Device(CategoryClimate, "d1")
	if again.State[CapHVACState] != "off" {
		t.Error("mutating a copy leaked into registry state")
	}
	if again.Structure.Away != AwayHome {
		t.Error("mutating a copied structure leaked into registry state")
	}
}
