package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/rfoxley/hearthsync/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Recorder persists capability changes and away transitions to InfluxDB.
//
// Writes are non-blocking and batched by the underlying write API; a lost
// point costs a gap in history, never a stalled event pipeline.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.HistoryConfig

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication
//  2. Verifies connectivity with a ping
//  3. Configures the non-blocking write API with batching
//  4. Sets up error callback for async write failures
//
// Returns ErrDisabled when history recording is off in config; callers
// treat that as "run without history" rather than a failure.
func Connect(cfg config.HistoryConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &Recorder{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	errorsCh := writeAPI.Errors()
	go r.handleWriteErrors(errorsCh)

	return r, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (r *Recorder) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.mu.RLock()
		callback := r.onError
		r.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending writes and shuts the client down.
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()

	return nil
}

// HealthCheck verifies the InfluxDB connection is alive.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := r.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("history health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("history health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the current connection state.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// SetOnError sets a callback to be invoked when async write errors occur.
//
// Since writes are non-blocking, errors are delivered asynchronously.
// Use this callback to log or handle write failures.
func (r *Recorder) SetOnError(callback func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// Flush forces all pending writes to be sent to InfluxDB.
//
// This blocks until all buffered points are written.
// Safe to call after Close() (no-op).
func (r *Recorder) Flush() {
	if r.writeAPI == nil {
		return
	}

	r.mu.RLock()
	connected := r.connected
	r.mu.RUnlock()

	if !connected {
		return
	}

	r.writeAPI.Flush()
}

// RecordChange writes one capability change for a device.
//
// Numeric values land in the "value" field, booleans in "value_bool"
// (as 0/1 too, so both can be graphed), strings in "value_text". The
// write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	recorder.RecordChange("cl-1", "climate", "ambient_temperature_c", 21.5)
func (r *Recorder) RecordChange(deviceID, category, capability string, value any) {
	if !r.IsConnected() {
		return
	}

	fields := make(map[string]interface{}, 2)
	switch v := value.(type) {
	case float64:
		fields["value"] = v
	case int:
		fields["value"] = float64(v)
	case bool:
		fields["value_bool"] = v
		if v {
			fields["value"] = 1.0
		} else {
			fields["value"] = 0.0
		}
	case string:
		fields["value_text"] = v
	default:
		fields["value_text"] = fmt.Sprintf("%v", v)
	}

	point := write.NewPoint(
		"capability_changes",
		map[string]string{
			"device_id":  deviceID,
			"category":   category,
			"capability": capability,
		},
		fields,
		time.Now(),
	)

	r.writeAPI.WritePoint(point)
}

// RecordAway writes an away-state transition for a structure.
func (r *Recorder) RecordAway(structureID, away string) {
	if !r.IsConnected() {
		return
	}

	point := write.NewPoint(
		"away_changes",
		map[string]string{
			"structure_id": structureID,
		},
		map[string]interface{}{
			"away": away,
		},
		time.Now(),
	)

	r.writeAPI.WritePoint(point)
}
