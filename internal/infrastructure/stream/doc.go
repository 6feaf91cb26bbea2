// Package stream provides a websocket-backed push feed for Hearthsync.
//
// The client holds one long-lived connection to the feed endpoint and
// multiplexes every subscribed store path over it. Frames are small JSON
// envelopes:
//
//	→ {"type":"subscribe","path":"structures"}
//	← {"type":"snapshot","path":"structures","data":{...}}
//	→ {"type":"write","path":"devices/climate/cl-1/target_temperature_c",
//	   "request_id":"...","value":21.5}
//
// Snapshot frames always carry the full current value for a path, never a
// delta. The server sends the current value immediately after a subscribe,
// then again on every change.
//
// One reader and one writer goroutine own the connection; subscribers get
// their own buffered channels and a lagging subscriber is caught up by
// evicting stale snapshots rather than by blocking the reader.
//
// There is no transparent reconnect. When the connection drops, every
// subscriber channel closes and the owner decides whether to dial again.
package stream
