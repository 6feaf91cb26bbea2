package handle

import (
	"fmt"

	"github.com/rfoxley/hearthsync/internal/mirror"
	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Hazard is the typed handle for a hazard-alarm unit. It is observe-only:
// battery health, CO alarm state, and smoke alarm state.
type Hazard struct {
	*base
}

// NewHazard builds a hazard handle from a registry entry.
func NewHazard(device *mirror.Device, source realtime.Source, auth Authenticator, lookup StructureLookup) (*Hazard, error) {
	if device.Category != mirror.CategoryHazard {
		return nil, fmt.Errorf("%w: %s", ErrWrongCategory, device.Category)
	}
	return &Hazard{base: newBase(device, source, auth, lookup)}, nil
}

// BatteryHealth returns the reported battery health.
func (h *Hazard) BatteryHealth() (string, bool) {
	return h.stringField(mirror.CapBatteryHealth)
}

// COAlarmState returns the carbon monoxide alarm state.
func (h *Hazard) COAlarmState() (string, bool) {
	return h.stringField(mirror.CapCOAlarmState)
}

// SmokeAlarmState returns the smoke alarm state.
func (h *Hazard) SmokeAlarmState() (string, bool) {
	return h.stringField(mirror.CapSmokeAlarmState)
}
