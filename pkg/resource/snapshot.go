package resource

import "time"

// Snapshot is one complete, wholesale load of the inventory.
// A published snapshot is never mutated; a refresh produces a new one.
type Snapshot struct {
	Revision  uint64        `json:"revision"`
	Source    string        `json:"source"`            // plugin name or "import"
	Account   string        `json:"account,omitempty"` // caller-supplied account label
	LoadedAt  time.Time     `json:"loadedAt"`
	Duration  time.Duration `json:"duration"`
	Resources []Resource    `json:"resources"`
}

// Len returns the number of resources in the snapshot. Nil snapshots are empty.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Resources)
}

// Find returns the resource with the given id.
func (s *Snapshot) Find(id string) (Resource, bool) {
	if s == nil {
		return Resource{}, false
	}
	for _, r := range s.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}
