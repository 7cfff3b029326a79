package resource

// DiffType represents the type of change detected between two snapshots.
type DiffType string

const (
	// DiffAdded indicates a new resource appeared.
	DiffAdded DiffType = "added"
	// DiffDeleted indicates a resource is no longer in the inventory.
	DiffDeleted DiffType = "deleted"
	// DiffModified indicates a resource's properties changed.
	DiffModified DiffType = "modified"
)

// Change represents a single field change.
// The field name is the map key in ResourceDiff.Changes.
type Change struct {
	Previous string
	Current  string
}

// ResourceDiff represents a detected change in a resource.
type ResourceDiff struct {
	Type     DiffType
	Resource Resource
	Previous *Resource         // nil for added resources
	Changes  map[string]Change // field name → change details
}

// ResourceKey returns a unique key for identifying a resource across snapshots.
func ResourceKey(r Resource) string {
	return r.ID + "|" + string(r.Provider) + "|" + r.Region + "|" + r.AccountID
}
