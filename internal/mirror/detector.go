package mirror

import (
	"reflect"
	"sync"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Change is one detected capability transition: the named capability now
// holds Value. One snapshot producing N capability transitions yields N
// changes, never a composite.
type Change struct {
	Capability string
	Value      any
}

// Detector performs capability-based change detection for one device
// instance. It holds the previous settled field values; each snapshot is
// diffed against them before being merged in.
//
// The detect-then-merge ordering guarantees every change reflects a
// transition from the previous settled state, and feeding an identical
// snapshot twice yields zero changes the second time.
type Detector struct {
	mu           sync.Mutex
	capabilities []string
	state        realtime.Snapshot
	synced       bool
}

// NewDetector creates a detector with a fixed capability list seeded from
// the given initial state. The initial state is copied, not aliased.
func NewDetector(capabilities []string, initial realtime.Snapshot) *Detector {
	state := make(realtime.Snapshot, len(initial))
	for k, v := range initial {
		state[k] = v
	}
	return &Detector{
		capabilities: capabilities,
		state:        state,
	}
}

// ApplySnapshot diffs the raw snapshot against the held state and returns
// the detected changes, then merges every field of the snapshot in. Fields
// not declared as capabilities are merged but never reported, supporting
// forward-compatible extra attributes. A detector constructed without
// capabilities ignores snapshots entirely.
func (d *Detector) ApplySnapshot(raw realtime.Snapshot) []Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.capabilities) == 0 {
		return nil
	}

	var changes []Change
	for _, capability := range d.capabilities {
		prev, prevOK := d.state[capability]
		next, nextOK := raw[capability]
		if prevOK && nextOK && !scalarEqual(prev, next) {
			changes = append(changes, Change{Capability: capability, Value: next})
		}
	}

	for k, v := range raw {
		d.state[k] = v
	}
	d.synced = true

	return changes
}

// Value returns the held value for a field.
func (d *Detector) Value(field string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.state[field]
	return v, ok
}

// State returns a copy of the held field values.
func (d *Detector) State() realtime.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := make(realtime.Snapshot, len(d.state))
	for k, v := range d.state {
		state[k] = v
	}
	return state
}

// Synced reports whether at least one snapshot has been processed.
func (d *Detector) Synced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.synced
}

// scalarEqual compares capability values. They are scalars on the wire
// (numbers, strings, booleans); reflect.DeepEqual keeps the comparison safe
// should a feed ever deliver something richer.
func scalarEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
