// Package mirror is the synchronization core: it keeps an in-process mirror
// of the remote account's structures and devices consistent with the push
// feed, and turns raw snapshots into typed change events.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                          mirror                            │
//	│                                                            │
//	│  ┌───────────────┐    ┌──────────────┐    ┌─────────────┐  │
//	│  │  Multiplexer  │───▶│   Registry   │    │   Detector  │  │
//	│  │ one sub per   │    │ keyed maps,  │    │ diff-then-  │  │
//	│  │ collection +  │    │ upsert, ref  │    │ merge per   │  │
//	│  │ sync barrier  │    │ resolution   │    │ capability  │  │
//	│  └───────────────┘    └──────────────┘    └─────────────┘  │
//	└────────────────────────────────────────────────────────────┘
//	        ▲                       ▲                  ▲
//	   realtime.Source        internal/handle    internal/handle
//
// The Registry owns the canonical collections; device handles are built from
// deep copies of its entries and keep themselves current through their own
// subscriptions, running a Detector per snapshot.
//
// Snapshots are complete values, not deltas: the most recent complete
// snapshot for an identifier always wins. Entries missing identity fields
// are logged and dropped, since the feed legitimately delivers transient
// partial states.
package mirror
