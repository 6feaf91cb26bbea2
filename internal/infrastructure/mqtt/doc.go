// Package mqtt provides an MQTT-backed push feed for Hearthsync.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained state topics mapped from store paths
//   - Command publishing with request IDs for deduplication
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The remote account store is shadowed onto retained MQTT topics by an
// edge publisher. Hearthsync subscribes to the state topics and publishes
// writes to command topics; the accepted value comes back through the
// state topic, never through a command acknowledgement.
//
//	Remote store → edge publisher → MQTT broker → Hearthsync
//	Hearthsync → command topic → edge publisher → remote store
//
// Because state topics are retained, a fresh subscription immediately
// yields the current value, and a reconnect after an outage converges on
// the latest state without replaying intermediate changes.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Realtime.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	snaps, err := client.Subscribe(ctx, "structures")
package mqtt
