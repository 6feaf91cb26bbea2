package mirror

import (
	"testing"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

func TestDetectorEmitsOnlyChangedCapabilities(t *testing.T) {
	d := NewDetector([]string{"a", "b"}, realtime.Snapshot{"a": 1.0, "b": 2.0})

	changes := d.ApplySnapshot(realtime.Snapshot{"a": 1.0, "b": 5.0})
	if len(changes) != 1 {
		t.Fatalf("expected exactly 1 change, got %d: %v", len(changes), changes)
	}
	if changes[0].Capability != "b" || changes[0].Value != 5.0 {
		t.Errorf("expected change b=5, got %+v", changes[0])
	}
}

func TestDetectorNoopSuppression(t *testing.T) {
	d := NewDetector([]string{"a", "b"}, realtime.Snapshot{"a": 1.0, "b": 2.0})
	snap := realtime.Snapshot{"a": 1.0, "b": 5.0}

	if changes := d.ApplySnapshot(snap); len(changes) != 1 {
		t.Fatalf("expected 1 change on first application, got %d", len(changes))
	}
	if changes := d.ApplySnapshot(snap); len(changes) != 0 {
		t.Errorf("expected 0 changes on identical snapshot, got %d", len(changes))
	}
}

func TestDetectorMultipleSimultaneousChanges(t *testing.T) {
	d := NewDetector([]string{"a", "b", "c"}, realtime.Snapshot{"a": 1.0, "b": "x", "c": true})

	changes := d.ApplySnapshot(realtime.Snapshot{"a": 2.0, "b": "y", "c": true})
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, one per capability, got %d: %v", len(changes), changes)
	}
	seen := map[string]any{}
	for _, c := range changes {
		if _, dup := seen[c.Capability]; dup {
			t.Errorf("duplicate change for capability %s", c.Capability)
		}
		seen[c.Capability] = c.Value
	}
	if seen["a"] != 2.0 || seen["b"] != "y" {
		t.Errorf("unexpected change values: %v", seen)
	}
}

func TestDetectorUndefinedPreviousValueIsSilent(t *testing.T) {
	// No prior value for "b": first observation is not a transition.
	d := NewDetector([]string{"a", "b"}, realtime.Snapshot{"a": 1.0})

	changes := d.ApplySnapshot(realtime.Snapshot{"a": 1.0, "b": 7.0})
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %v", changes)
	}

	// Now "b" is settled; the next transition reports.
	changes = d.ApplySnapshot(realtime.Snapshot{"b": 8.0})
	if len(changes) != 1 || changes[0].Capability != "b" {
		t.Fatalf("expected change for b, got %v", changes)
	}
}

func TestDetectorMergesUndeclaredFields(t *testing.T) {
	d := NewDetector([]string{"a"}, realtime.Snapshot{"a": 1.0})

	changes := d.ApplySnapshot(realtime.Snapshot{"a": 1.0, "vendor_extra": "kept"})
	if len(changes) != 0 {
		t.Fatalf("undeclared fields must not produce changes, got %v", changes)
	}
	if v, ok := d.Value("vendor_extra"); !ok || v != "kept" {
		t.Error("expected undeclared field to be merged into state")
	}
}

func TestDetectorWithoutCapabilitiesIgnoresSnapshots(t *testing.T) {
	d := NewDetector(nil, nil)

	if changes := d.ApplySnapshot(realtime.Snapshot{"a": 1.0}); changes != nil {
		t.Errorf("expected nil changes, got %v", changes)
	}
	if d.Synced() {
		t.Error("capability-less detector must not transition to synced")
	}
}

func TestDetectorSyncedStateMachine(t *testing.T) {
	d := NewDetector([]string{"a"}, nil)
	if d.Synced() {
		t.Error("expected constructed state before first snapshot")
	}
	d.ApplySnapshot(realtime.Snapshot{"a": 1.0})
	if !d.Synced() {
		t.Error("expected synced state after first snapshot")
	}
}

func TestDetectorDetectsBeforeMerging(t *testing.T) {
	d := NewDetector([]string{"a", "b"}, realtime.Snapshot{"a": 1.0, "b": 1.0})

	// Both change in one snapshot; each reported against the previous
	// settled state, not against the partially merged one.
	changes := d.ApplySnapshot(realtime.Snapshot{"a": 2.0, "b": 2.0})
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if v, _ := d.Value("a"); v != 2.0 {
		t.Error("expected merge to follow detection")
	}
}
