// Package realtime defines the transport abstraction between the mirror and
// the remote store's push feed.
//
// The core never speaks a wire protocol. It consumes a Source: subscribe to a
// path and receive a stream of complete snapshots, or write a value to a
// path. Concrete implementations live in internal/infrastructure (MQTT and
// websocket); tests substitute in-memory fakes.
package realtime
