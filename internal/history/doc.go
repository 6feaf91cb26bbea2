// Package history records capability changes to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library so every change the
// mirror detects can be graphed later: temperature over time, alarm state
// transitions, streaming on/off, structure away changes.
//
// # Usage
//
//	recorder, err := history.Connect(cfg.History)
//	if errors.Is(err, history.ErrDisabled) {
//	    // run without history
//	}
//	defer recorder.Close()
//
//	recorder.RecordChange("cl-1", "climate", "ambient_temperature_c", 21.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package history
