package compliance

import (
	"math"
	"slices"
	"strings"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Summary is the compliance overview derived from a scored inventory.
type Summary struct {
	SecurityScore int `json:"securityScore"` // percentage of Secure resources
	TotalRisks    int `json:"totalRisks"`
	CriticalCount int `json:"criticalCount"`
	HighCount     int `json:"highCount"`
	MediumCount   int `json:"mediumCount"`
	UntaggedCount int `json:"untaggedCount"`
}

// ViolationFilter narrows the violation list.
type ViolationFilter string

// Supported violation filters.
const (
	FilterAll        ViolationFilter = "All"
	FilterCritical   ViolationFilter = "Critical"
	FilterHigh       ViolationFilter = "High"
	FilterMedium     ViolationFilter = "Medium"
	FilterGovernance ViolationFilter = "Governance"
)

// ParseViolationFilter matches a filter name case-insensitively. Empty means All.
func ParseViolationFilter(s string) (ViolationFilter, bool) {
	if s == "" {
		return FilterAll, true
	}
	for _, f := range []ViolationFilter{FilterAll, FilterCritical, FilterHigh, FilterMedium, FilterGovernance} {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return "", false
}

// Summarize computes the compliance overview. An empty inventory scores 100.
func Summarize(resources []resource.Resource) Summary {
	var s Summary
	for _, r := range resources {
		if r.RiskLevel != resource.RiskSecure {
			s.TotalRisks++
		}
		switch r.RiskLevel {
		case resource.RiskCritical:
			s.CriticalCount++
		case resource.RiskHigh:
			s.HighCount++
		case resource.RiskMedium:
			s.MediumCount++
		}
		if r.IsUntagged() {
			s.UntaggedCount++
		}
	}

	s.SecurityScore = 100
	if n := len(resources); n > 0 {
		pct := float64(n-s.TotalRisks) / float64(n) * 100
		s.SecurityScore = max(0, int(math.Floor(pct+0.5)))
	}
	return s
}

// Violations returns the resources that carry risk or lack tags.
// FilterAll orders them by severity, most severe first.
func Violations(resources []resource.Resource, filter ViolationFilter) []resource.Resource {
	relevant := make([]resource.Resource, 0, len(resources))
	for _, r := range resources {
		if r.RiskLevel != resource.RiskSecure || r.IsUntagged() {
			relevant = append(relevant, r)
		}
	}

	switch filter {
	case FilterCritical:
		return byLevel(relevant, resource.RiskCritical)
	case FilterHigh:
		return byLevel(relevant, resource.RiskHigh)
	case FilterMedium:
		return byLevel(relevant, resource.RiskMedium)
	case FilterGovernance:
		return slices.DeleteFunc(relevant, func(r resource.Resource) bool {
			return !r.IsUntagged()
		})
	}

	slices.SortStableFunc(relevant, func(a, b resource.Resource) int {
		return b.RiskLevel.Rank() - a.RiskLevel.Rank()
	})
	return relevant
}

func byLevel(resources []resource.Resource, level resource.RiskLevel) []resource.Resource {
	return slices.DeleteFunc(resources, func(r resource.Resource) bool {
		return r.RiskLevel != level
	})
}
