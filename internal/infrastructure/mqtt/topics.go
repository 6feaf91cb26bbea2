package mqtt

import "fmt"

// Topics maps store paths to MQTT topics. Every topic is rooted at the
// configured prefix so several mirrors can share one broker.
//
// The scheme is flat and mirrors the store's path hierarchy:
//
//	state:   {prefix}/state/{path}      retained, one per collection/record
//	command: {prefix}/command/{path}    not retained, carries a write envelope
//	status:  {prefix}/client/status     retained, online/offline for this mirror
type Topics struct {
	// Prefix is the topic root, e.g. "hearthsync".
	Prefix string
}

// State returns the retained state topic for a store path.
//
// Example: hearthsync/state/devices/climate
func (t Topics) State(path string) string {
	return fmt.Sprintf("%s/state/%s", t.Prefix, path)
}

// Command returns the command topic for a store path.
//
// Example: hearthsync/command/devices/climate/cl-1/target_temperature_c
func (t Topics) Command(path string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix, path)
}

// ClientStatus returns the mirror's own status topic, used for the
// online/offline announcements and the LWT.
//
// Example: hearthsync/client/status
func (t Topics) ClientStatus() string {
	return fmt.Sprintf("%s/client/status", t.Prefix)
}
