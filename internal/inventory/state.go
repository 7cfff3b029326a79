package inventory

import (
	"sync/atomic"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// State owns the current inventory snapshot.
// Readers always see a complete snapshot; writers replace it wholesale.
type State struct {
	current  atomic.Pointer[resource.Snapshot]
	revision atomic.Uint64
}

// NewState creates a state holding an empty revision-0 snapshot.
func NewState() *State {
	s := &State{}
	s.current.Store(&resource.Snapshot{Resources: []resource.Resource{}})
	return s
}

// Current returns the published snapshot. Callers must not modify it.
func (s *State) Current() *resource.Snapshot {
	return s.current.Load()
}

// Replace assigns the next revision to snap and publishes it.
// Concurrent replaces are not ordered: the last store wins.
func (s *State) Replace(snap resource.Snapshot) *resource.Snapshot {
	if snap.Resources == nil {
		snap.Resources = []resource.Resource{}
	}
	snap.Revision = s.revision.Add(1)
	published := &snap
	s.current.Store(published)
	return published
}
