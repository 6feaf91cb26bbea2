package mirror

import (
	"fmt"
	"sync"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Raw snapshot field keys.
const (
	fieldStructureID = "structure_id"
	fieldDeviceID    = "device_id"
	fieldName        = "name"
	fieldAway        = "away"
)

// Logger is the minimal logging interface used by mirror components.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Registry holds the canonical, deduplicated collections of structures and
// devices. Collections are keyed maps, so uniqueness per identifier is
// structural: re-observing an identifier replaces the entry instead of
// appending a duplicate.
//
// All methods are safe for concurrent use. Lookups return copies; callers
// never alias registry state.
type Registry struct {
	mu         sync.RWMutex
	structures map[string]*Structure
	devices    map[Category]map[string]*Device
	logger     Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	devices := make(map[Category]map[string]*Device, len(AllCategories()))
	for _, category := range AllCategories() {
		devices[category] = make(map[string]*Device)
	}
	return &Registry{
		structures: make(map[string]*Structure),
		devices:    devices,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// ApplyStructureSnapshot upserts every valid entry of a structures
// collection snapshot. An empty or absent collection is a no-op. Entries
// missing identity fields are logged and dropped; partial feeds are normal.
func (r *Registry) ApplyStructureSnapshot(snap realtime.Snapshot) {
	entries := snap.Entries()
	if len(entries) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range entries {
		structure, err := parseStructure(entry)
		if err != nil {
			r.logger.Debug("dropping structure entry", "key", key, "error", err)
			continue
		}
		r.structures[structure.ID] = structure
	}
}

// ApplyDeviceSnapshot upserts every valid entry of a device collection
// snapshot into the given category. The new entry is authoritative: a
// replace preserves nothing from the prior entry. The owning-structure
// reference is resolved by lookup at upsert time; an unknown structure
// leaves it unresolved until the device's next upsert.
func (r *Registry) ApplyDeviceSnapshot(snap realtime.Snapshot, category Category) {
	entries := snap.Entries()
	if len(entries) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	collection, ok := r.devices[category]
	if !ok {
		r.logger.Warn("unknown device category", "category", category)
		return
	}

	for key, entry := range entries {
		device, err := r.parseDeviceLocked(entry, category)
		if err != nil {
			r.logger.Debug("dropping device entry", "key", key, "category", category, "error", err)
			continue
		}
		collection[device.ID] = device
	}
}

// UpsertDevice applies a single-record device snapshot. Device handles call
// it with their merged record state after each update, so lookups stay
// current between collection snapshots.
func (r *Registry) UpsertDevice(entry realtime.Snapshot, category Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	collection, ok := r.devices[category]
	if !ok {
		return fmt.Errorf("%w: unknown category %q", ErrNotFound, category)
	}
	device, err := r.parseDeviceLocked(entry, category)
	if err != nil {
		return err
	}
	collection[device.ID] = device
	return nil
}

// Structure returns a copy of the structure with the given identifier.
func (r *Registry) Structure(id string) (*Structure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	structure, ok := r.structures[id]
	if !ok {
		return nil, fmt.Errorf("%w: structure %q", ErrNotFound, id)
	}
	cpy := *structure
	return &cpy, nil
}

// Structures returns copies of all known structures.
func (r *Registry) Structures() []Structure {
	r.mu.RLock()
	defer r.mu.RUnlock()

	structures := make([]Structure, 0, len(r.structures))
	for _, s := range r.structures {
		structures = append(structures, *s)
	}
	return structures
}

// Device returns a deep copy of the device with the given identifier.
// Handles are built from this copy; they never share mutable state with the
// registry entry.
func (r *Registry) Device(category Category, id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collection, ok := r.devices[category]
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrNotFound, category)
	}
	device, ok := collection[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s device %q", ErrNotFound, category, id)
	}
	return device.DeepCopy(), nil
}

// Devices returns deep copies of all devices in a category.
func (r *Registry) Devices(category Category) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collection := r.devices[category]
	devices := make([]Device, 0, len(collection))
	for _, d := range collection {
		devices = append(devices, *d.DeepCopy())
	}
	return devices
}

// DeviceCount returns the number of devices in a category.
func (r *Registry) DeviceCount(category Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices[category])
}

// parseStructure validates and converts one raw structure entry.
func parseStructure(entry realtime.Snapshot) (*Structure, error) {
	id, ok := entry.String(fieldStructureID)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, fieldStructureID)
	}
	name, ok := entry.String(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, fieldName)
	}
	away, _ := entry.String(fieldAway)
	return &Structure{ID: id, Name: name, Away: AwayState(away)}, nil
}

// parseDeviceLocked validates and converts one raw device entry, resolving
// the owning-structure reference against the current structure collection.
// Callers must hold r.mu.
func (r *Registry) parseDeviceLocked(entry realtime.Snapshot, category Category) (*Device, error) {
	id, ok := entry.String(fieldDeviceID)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, fieldDeviceID)
	}
	name, ok := entry.String(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, fieldName)
	}
	structureID, ok := entry.String(fieldStructureID)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, fieldStructureID)
	}

	state := make(realtime.Snapshot, len(entry))
	for k, v := range entry {
		state[k] = v
	}

	return &Device{
		ID:           id,
		Name:         name,
		StructureID:  structureID,
		Structure:    r.structures[structureID],
		Category:     category,
		Capabilities: Capabilities(category),
		State:        state,
	}, nil
}
