package mirror

// Remote store paths. The feed is organised as one collection of structures
// plus one collection per device category; individual records hang off their
// collection by identifier.

// PathStructures is the structures collection path.
const PathStructures = "structures"

// CategoryPath returns the collection path for a device category.
func CategoryPath(category Category) string {
	return "devices/" + string(category)
}

// DevicePath returns the record path for one device.
func DevicePath(category Category, id string) string {
	return CategoryPath(category) + "/" + id
}

// DeviceFieldPath returns the path of a single writable field on a device.
func DeviceFieldPath(category Category, id, field string) string {
	return DevicePath(category, id) + "/" + field
}
