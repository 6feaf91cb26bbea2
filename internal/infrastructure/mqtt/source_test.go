package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

// =============================================================================
// Topic Mapping Tests
// =============================================================================

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "hearthsync"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state collection", topics.State("structures"), "hearthsync/state/structures"},
		{"state nested", topics.State("devices/climate"), "hearthsync/state/devices/climate"},
		{"command field", topics.Command("devices/climate/cl-1/target_temperature_c"), "hearthsync/command/devices/climate/cl-1/target_temperature_c"},
		{"client status", topics.ClientStatus(), "hearthsync/client/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Feed Dispatch Tests
// =============================================================================

func TestFeedDispatch(t *testing.T) {
	f := &feed{subs: make(map[*subscriber]struct{})}
	sub := &subscriber{ch: make(chan realtime.Snapshot, subscriberBuffer)}
	f.subs[sub] = struct{}{}

	payload := []byte(`{"st-1":{"structure_id":"st-1","name":"Home","away":"home"}}`)
	if err := f.dispatch("hearthsync/state/structures", payload); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}

	select {
	case snap := <-sub.ch:
		entries := snap.Entries()
		if _, ok := entries["st-1"]; !ok {
			t.Errorf("snapshot missing entry st-1: %v", snap)
		}
	default:
		t.Fatal("dispatch() delivered nothing")
	}
}

func TestFeedDispatchMalformedPayload(t *testing.T) {
	f := &feed{subs: make(map[*subscriber]struct{})}
	sub := &subscriber{ch: make(chan realtime.Snapshot, subscriberBuffer)}
	f.subs[sub] = struct{}{}

	err := f.dispatch("hearthsync/state/structures", []byte(`"not an object"`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("dispatch() error = %v, want ErrMalformedPayload", err)
	}

	select {
	case snap := <-sub.ch:
		t.Errorf("dispatch() delivered %v for malformed payload", snap)
	default:
	}
}

// TestDeliverCoalesces verifies that a slow subscriber converges on the
// latest snapshot instead of blocking the dispatcher.
func TestDeliverCoalesces(t *testing.T) {
	sub := &subscriber{ch: make(chan realtime.Snapshot, 2)}

	for i := 0; i < 10; i++ {
		sub.deliver(realtime.Snapshot{"seq": float64(i)})
	}

	var last realtime.Snapshot
	for {
		select {
		case snap := <-sub.ch:
			last = snap
			continue
		default:
		}
		break
	}

	if last == nil {
		t.Fatal("no snapshot delivered")
	}
	if seq := last["seq"].(float64); seq != 9 {
		t.Errorf("last snapshot seq = %v, want 9", seq)
	}
}

// =============================================================================
// Write Envelope Tests
// =============================================================================

func TestWriteEnvelopeShape(t *testing.T) {
	payload, err := json.Marshal(writeEnvelope{
		RequestID: "req-1",
		Value:     21.5,
		Timestamp: "2026-01-02T03:04:05Z",
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", decoded["request_id"])
	}
	if decoded["value"] != 21.5 {
		t.Errorf("value = %v, want 21.5", decoded["value"])
	}
	if decoded["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp = %v", decoded["timestamp"])
	}
}
