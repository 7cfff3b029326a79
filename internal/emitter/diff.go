package emitter

import (
	"cmp"
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// DiffTracker remembers the previous snapshot and reports what changed.
type DiffTracker struct {
	mu          sync.RWMutex
	previous    map[string]resource.Resource
	initialized bool
}

// NewDiffTracker creates a new diff tracker.
func NewDiffTracker() *DiffTracker {
	return &DiffTracker{
		previous: make(map[string]resource.Resource),
	}
}

// ComputeDiff compares current resources against the previous baseline.
// Returns nil before the first Update and an empty slice when nothing changed.
// Diffs are ordered by resource key.
func (d *DiffTracker) ComputeDiff(current []resource.Resource) []resource.ResourceDiff {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil
	}

	currentMap := indexResources(current)
	diffs := make([]resource.ResourceDiff, 0)
	diffs = append(diffs, d.findDeletedAndModified(currentMap)...)
	diffs = append(diffs, d.findAdded(currentMap)...)

	slices.SortFunc(diffs, func(a, b resource.ResourceDiff) int {
		return cmp.Compare(resource.ResourceKey(a.Resource), resource.ResourceKey(b.Resource))
	})
	return diffs
}

func indexResources(resources []resource.Resource) map[string]resource.Resource {
	m := make(map[string]resource.Resource, len(resources))
	for _, r := range resources {
		m[resource.ResourceKey(r)] = r
	}
	return m
}

func (d *DiffTracker) findDeletedAndModified(currentMap map[string]resource.Resource) []resource.ResourceDiff {
	var diffs []resource.ResourceDiff
	for key, prev := range d.previous {
		prevCopy := prev
		curr, exists := currentMap[key]
		if !exists {
			diffs = append(diffs, resource.ResourceDiff{
				Type:     resource.DiffDeleted,
				Resource: prev,
				Previous: &prevCopy,
			})
			continue
		}
		if changes := detectChanges(prev, curr); len(changes) > 0 {
			diffs = append(diffs, resource.ResourceDiff{
				Type:     resource.DiffModified,
				Resource: curr,
				Previous: &prevCopy,
				Changes:  changes,
			})
		}
	}
	return diffs
}

func (d *DiffTracker) findAdded(currentMap map[string]resource.Resource) []resource.ResourceDiff {
	var diffs []resource.ResourceDiff
	for key, curr := range currentMap {
		if _, exists := d.previous[key]; !exists {
			diffs = append(diffs, resource.ResourceDiff{
				Type:     resource.DiffAdded,
				Resource: curr,
			})
		}
	}
	return diffs
}

// Update stores the current resources as the baseline for the next comparison.
func (d *DiffTracker) Update(current []resource.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.previous = indexResources(current)
	d.initialized = true
}

// detectChanges compares the fields an operator cares about between snapshots.
// Metadata is left out: provider attributes churn without meaning.
func detectChanges(prev, curr resource.Resource) map[string]resource.Change {
	changes := make(map[string]resource.Change)

	if prev.Name != curr.Name {
		changes["name"] = resource.Change{Previous: prev.Name, Current: curr.Name}
	}
	if prev.Status != curr.Status {
		changes["status"] = resource.Change{Previous: string(prev.Status), Current: string(curr.Status)}
	}
	if prev.RiskLevel != curr.RiskLevel {
		changes["riskLevel"] = resource.Change{Previous: string(prev.RiskLevel), Current: string(curr.RiskLevel)}
	}
	if prev.CostPerMonth != curr.CostPerMonth {
		changes["costPerMonth"] = resource.Change{
			Previous: strconv.FormatFloat(prev.CostPerMonth, 'f', 2, 64),
			Current:  strconv.FormatFloat(curr.CostPerMonth, 'f', 2, 64),
		}
	}
	if !maps.Equal(prev.Tags, curr.Tags) {
		changes["tags"] = resource.Change{Previous: mapToJSON(prev.Tags), Current: mapToJSON(curr.Tags)}
	}
	if !slices.Equal(prev.SecurityIssues, curr.SecurityIssues) {
		changes["securityIssues"] = resource.Change{Previous: listToJSON(prev.SecurityIssues), Current: listToJSON(curr.SecurityIssues)}
	}

	return changes
}

// mapToJSON renders a map with sorted keys so equal maps compare equal.
func mapToJSON(m map[string]string) string {
	if m == nil {
		return "{}"
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func listToJSON(l []string) string {
	if l == nil {
		return "[]"
	}
	b, _ := json.Marshal(l)
	return string(b)
}
