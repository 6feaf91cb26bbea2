// Package handle provides the typed device front ends: climate control,
// hazard alarm, and camera.
//
// The categories differ only by data: each handle composes the shared change
// detector with its category's fixed capability list and adds its own
// command methods. Handles are built from deep copies of registry entries
// and keep themselves current through their own subscription to the device's
// record, emitting one event per changed capability.
//
// Commands authenticate first, check local preconditions, and only then
// write. A rejected precondition (*PreconditionError) never reaches the
// remote store, and a successful write is never applied optimistically: the
// new value arrives back through the subscription like any other update.
package handle
