package realtime

import "context"

// Snapshot is a complete value for a remote collection or record, delivered
// by the push feed at a point in time. It is never a delta: the feed re-sends
// the full current value on every change and may coalesce rapid intermediate
// states into a single latest value.
type Snapshot map[string]any

// Entries interprets the snapshot as a collection keyed by identifier and
// returns the child records. Non-object children are skipped.
func (s Snapshot) Entries() map[string]Snapshot {
	if len(s) == 0 {
		return nil
	}
	entries := make(map[string]Snapshot, len(s))
	for key, v := range s {
		child, ok := v.(map[string]any)
		if !ok {
			continue
		}
		entries[key] = Snapshot(child)
	}
	return entries
}

// String returns the value under key if it is a non-empty string.
func (s Snapshot) String(key string) (string, bool) {
	v, ok := s[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Source is the push-subscription transport to the remote store.
//
// Subscribe opens a lazy, effectively infinite stream of snapshots for one
// path. The returned channel is owned by the Source: it delivers values in
// the order the transport observed them (at least once) and is closed only
// when the context is cancelled or the source shuts down. There is no
// in-core retry; reconnection, if any, is the implementation's business.
//
// Write pushes a value to a path, fire and forget. A nil error means the
// write was handed to the transport, not that the remote store accepted it;
// accepted values are observed back through the subscription stream.
type Source interface {
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, error)
	Write(ctx context.Context, path string, value any) error
}
