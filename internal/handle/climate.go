package handle

import (
	"context"
	"fmt"

	"github.com/rfoxley/hearthsync/internal/mirror"
	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Climate device fields consulted by command preconditions.
const (
	fieldEmergencyHeat = "is_using_emergency_heat"
	fieldLocked        = "is_locked"
	fieldLockedMin     = "locked_temp_min_c"
	fieldLockedMax     = "locked_temp_max_c"
	fieldHVACMode      = "hvac_mode"

	hvacModeHeatCool = "heat-cool"
)

// Climate is the typed handle for a climate control unit.
//
// Observable capabilities: target temperature, ambient temperature, and
// operating state.
type Climate struct {
	*base
}

// NewClimate builds a climate handle from a registry entry.
func NewClimate(device *mirror.Device, source realtime.Source, auth Authenticator, lookup StructureLookup) (*Climate, error) {
	if device.Category != mirror.CategoryClimate {
		return nil, fmt.Errorf("%w: %s", ErrWrongCategory, device.Category)
	}
	return &Climate{base: newBase(device, source, auth, lookup)}, nil
}

// TargetTemperature returns the current target temperature in Celsius.
func (c *Climate) TargetTemperature() (float64, bool) {
	return c.floatField(mirror.CapTargetTemperature)
}

// AmbientTemperature returns the measured ambient temperature in Celsius.
func (c *Climate) AmbientTemperature() (float64, bool) {
	return c.floatField(mirror.CapAmbientTemperature)
}

// HVACState returns the current operating state.
func (c *Climate) HVACState() (string, bool) {
	return c.stringField(mirror.CapHVACState)
}

// SetTargetTemperature writes a new target temperature after checking local
// preconditions. A violated precondition returns *PreconditionError and
// issues no remote call. On success the accepted value is returned; the new
// value is observed back through the normal subscription path, never applied
// optimistically.
func (c *Climate) SetTargetTemperature(ctx context.Context, value float64) (float64, error) {
	if err := c.auth.Authenticate(ctx, ""); err != nil {
		return 0, err
	}

	if err := c.checkSetTemperature(value); err != nil {
		return 0, err
	}

	path := mirror.DeviceFieldPath(mirror.CategoryClimate, c.id, mirror.CapTargetTemperature)
	if err := c.source.Write(ctx, path, value); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return value, nil
}

// checkSetTemperature enforces the local rules gating a target-temperature
// write.
func (c *Climate) checkSetTemperature(value float64) error {
	if c.boolField(fieldEmergencyHeat) {
		return &PreconditionError{Reason: "emergency heat is active"}
	}

	if c.boolField(fieldLocked) {
		min, minOK := c.floatField(fieldLockedMin)
		max, maxOK := c.floatField(fieldLockedMax)
		if minOK && maxOK && (value < min || value > max) {
			return &PreconditionError{
				Reason: fmt.Sprintf("temperature %g is outside the locked range", value),
				Bounds: &Range{Min: min, Max: max},
			}
		}
	}

	away, ok := c.StructureAway()
	if !ok {
		return &PreconditionError{Reason: "owning structure has not synced"}
	}
	if away != mirror.AwayHome {
		return &PreconditionError{Reason: fmt.Sprintf("structure is %s", away)}
	}

	if mode, ok := c.stringField(fieldHVACMode); ok && mode == hvacModeHeatCool {
		return &PreconditionError{Reason: "thermostat is in heat-cool mode"}
	}
	return nil
}
