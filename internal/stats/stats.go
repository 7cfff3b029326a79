// Package stats computes aggregate inventory statistics.
package stats

import "github.com/yairfalse/nimbus/pkg/resource"

// ProviderCount is one slice of the provider split.
type ProviderCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// CostPoint is one month of historical spend per provider.
type CostPoint struct {
	Name  string  `json:"name"`
	AWS   float64 `json:"AWS"`
	Azure float64 `json:"Azure"`
	GCP   float64 `json:"GCP"`
}

// Stats is recomputed from scratch for every inventory.
type Stats struct {
	TotalResources    int             `json:"totalResources"`
	TotalCost         float64         `json:"totalCost"`
	UntaggedCount     int             `json:"untaggedCount"`
	CriticalRiskCount int             `json:"criticalRiskCount"`
	ProviderSplit     []ProviderCount `json:"providerSplit"`
	CostTrend         []CostPoint     `json:"costTrend"`
}

// costHistory is billing history that does not derive from the live inventory.
var costHistory = []CostPoint{
	{Name: "Jan", AWS: 4000, Azure: 2400, GCP: 2400},
	{Name: "Feb", AWS: 3000, Azure: 1398, GCP: 2210},
	{Name: "Mar", AWS: 2000, Azure: 9800, GCP: 2290},
	{Name: "Apr", AWS: 2780, Azure: 3908, GCP: 2000},
	{Name: "May", AWS: 1890, Azure: 4800, GCP: 2181},
	{Name: "Jun", AWS: 2390, Azure: 3800, GCP: 2500},
}

// CostTrend returns a copy of the historical spend series.
func CostTrend() []CostPoint {
	return append([]CostPoint(nil), costHistory...)
}

// Compute reduces a scored inventory. The provider split keeps first-seen order.
func Compute(resources []resource.Resource) Stats {
	s := Stats{
		TotalResources: len(resources),
		ProviderSplit:  make([]ProviderCount, 0, len(resource.Providers)),
		CostTrend:      CostTrend(),
	}

	index := make(map[resource.Provider]int)
	for _, r := range resources {
		s.TotalCost += r.CostPerMonth
		if r.IsUntagged() {
			s.UntaggedCount++
		}
		if r.RiskLevel.IsCriticalOrHigh() {
			s.CriticalRiskCount++
		}

		i, ok := index[r.Provider]
		if !ok {
			i = len(s.ProviderSplit)
			index[r.Provider] = i
			s.ProviderSplit = append(s.ProviderSplit, ProviderCount{Name: string(r.Provider)})
		}
		s.ProviderSplit[i].Value++
	}
	return s
}
