package mirror

import (
	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Category identifies a device class. Each category has its own remote
// collection and a fixed capability set.
type Category string

// Device categories.
const (
	CategoryClimate Category = "climate"
	CategoryHazard  Category = "hazard"
	CategoryCamera  Category = "camera"
)

// AllCategories returns all device categories, in subscription order.
func AllCategories() []Category {
	return []Category{CategoryClimate, CategoryHazard, CategoryCamera}
}

// AwayState is a structure's occupancy state. It is authoritative upstream;
// the mirror never sets it.
type AwayState string

// Away states.
const (
	AwayHome     AwayState = "home"
	AwayAway     AwayState = "away"
	AwayAutoAway AwayState = "auto-away"
)

// Structure is a location grouping one or more devices.
type Structure struct {
	ID   string
	Name string
	Away AwayState
}

// Capability names, per category. A capability is a named scalar field on a
// device whose changes are individually notified.
const (
	CapTargetTemperature  = "target_temperature_c"
	CapAmbientTemperature = "ambient_temperature_c"
	CapHVACState          = "hvac_state"

	CapBatteryHealth   = "battery_health"
	CapCOAlarmState    = "co_alarm_state"
	CapSmokeAlarmState = "smoke_alarm_state"

	CapLastEvent   = "last_event"
	CapIsStreaming = "is_streaming"
)

// Capabilities returns the fixed capability set for a category.
func Capabilities(category Category) []string {
	switch category {
	case CategoryClimate:
		return []string{CapTargetTemperature, CapAmbientTemperature, CapHVACState}
	case CategoryHazard:
		return []string{CapBatteryHealth, CapCOAlarmState, CapSmokeAlarmState}
	case CategoryCamera:
		return []string{CapLastEvent, CapIsStreaming}
	default:
		return nil
	}
}

// Device is one mirrored device record.
//
// Structure is the resolved owning-structure reference. It may be nil when
// the structure has not yet synced; the reference is re-resolved on the next
// upsert of this device, never retroactively.
type Device struct {
	ID           string
	Name         string
	StructureID  string
	Structure    *Structure
	Category     Category
	Capabilities []string
	State        realtime.Snapshot
}

// DeepCopy returns an independent copy of the device. The state map and the
// resolved structure are cloned so the copy never aliases registry state.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.Structure != nil {
		s := *d.Structure
		cpy.Structure = &s
	}
	if d.Capabilities != nil {
		cpy.Capabilities = make([]string, len(d.Capabilities))
		copy(cpy.Capabilities, d.Capabilities)
	}
	if d.State != nil {
		state := make(realtime.Snapshot, len(d.State))
		for k, v := range d.State {
			state[k] = v
		}
		cpy.State = state
	}
	return &cpy
}
