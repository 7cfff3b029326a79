package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// reservedThreshold is the monthly cost above which reserved capacity is
// actively recommended.
const reservedThreshold = 1000

// Reserved capacity descriptions.
const (
	reservedDefault = "Running Compute Instances and Databases suitable for Reserved Instances or Savings Plans."
	reservedHigh    = "High potential for savings! Recommend purchasing Reserved Instances (AWS/Azure) or Savings Plans (AWS/GCP) for a 1-3 year term to save 40-72% on these consistent workloads."
)

// Summary is the condensed inventory handed to the model.
type Summary struct {
	Overview                 Overview             `json:"overview"`
	ComplianceFindings       []ComplianceFinding  `json:"complianceFindings"`
	CostsByProvider          ProviderCosts        `json:"costsByProvider"`
	ResourceTypeDistribution TypeCounts           `json:"resourceTypeDistribution"`
	OptimizationInsights     OptimizationInsights `json:"optimizationInsights"`
}

// Overview holds inventory totals.
type Overview struct {
	TotalMonthlyCost      float64 `json:"totalMonthlyCost"`
	TotalResourceCount    int     `json:"totalResourceCount"`
	UntaggedResourceCount int     `json:"untaggedResourceCount"`
	HighRiskCount         int     `json:"highRiskCount"`
}

// ComplianceFinding describes one Critical or High resource.
type ComplianceFinding struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Issues    []string           `json:"issues"`
	Type      resource.Type      `json:"type"`
	RiskLevel resource.RiskLevel `json:"riskLevel"`
}

// ProviderCosts is monthly cost per supported provider.
type ProviderCosts struct {
	AWS   float64 `json:"AWS"`
	Azure float64 `json:"Azure"`
	GCP   float64 `json:"GCP"`
}

// TypeCount is the number of resources of one type.
type TypeCount struct {
	Type  resource.Type
	Count int
}

// TypeCounts marshals as a JSON object whose keys keep slice order.
type TypeCounts []TypeCount

// MarshalJSON implements json.Marshaler.
func (tc TypeCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range tc {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(c.Type))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", c.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// OptimizationInsights groups cost saving opportunities.
type OptimizationInsights struct {
	StoppedResources              StoppedResources    `json:"stoppedResources"`
	ReservedInstanceOpportunities ReservedInstances   `json:"reservedInstanceOpportunities"`
	TopExpensiveResources         []ExpensiveResource `json:"topExpensiveResources"`
}

// StoppedResources are still billed while idle.
type StoppedResources struct {
	Count             int      `json:"count"`
	MonthlyWastedCost float64  `json:"monthlyWastedCost"`
	Examples          []string `json:"examples"`
}

// ReservedInstances summarizes running compute and databases.
type ReservedInstances struct {
	EligibleResourceCount int     `json:"eligibleResourceCount"`
	MonthlyEligibleCost   float64 `json:"monthlyEligibleCost"`
	Description           string  `json:"description"`
}

// ExpensiveResource is one entry of the cost leaderboard.
type ExpensiveResource struct {
	Name     string            `json:"name"`
	Type     resource.Type     `json:"type"`
	Provider resource.Provider `json:"provider"`
	Status   resource.Status   `json:"status"`
	Cost     float64           `json:"cost"`
}

// Summarize condenses resources into the model input.
func Summarize(resources []resource.Resource) Summary {
	s := Summary{
		ComplianceFindings: []ComplianceFinding{},
		OptimizationInsights: OptimizationInsights{
			StoppedResources:      StoppedResources{Examples: []string{}},
			TopExpensiveResources: []ExpensiveResource{},
		},
	}
	s.Overview.TotalResourceCount = len(resources)

	var (
		types   = map[resource.Type]int{}
		order   []resource.Type
		stopped = &s.OptimizationInsights.StoppedResources
		ri      = &s.OptimizationInsights.ReservedInstanceOpportunities
	)

	for _, r := range resources {
		s.Overview.TotalMonthlyCost += r.CostPerMonth
		if r.IsUntagged() {
			s.Overview.UntaggedResourceCount++
		}
		if r.RiskLevel.IsCriticalOrHigh() {
			s.Overview.HighRiskCount++
			issues := r.SecurityIssues
			if issues == nil {
				issues = []string{}
			}
			s.ComplianceFindings = append(s.ComplianceFindings, ComplianceFinding{
				ID: r.ID, Name: r.Name, Issues: issues, Type: r.Type, RiskLevel: r.RiskLevel,
			})
		}

		switch r.Provider {
		case resource.ProviderAWS:
			s.CostsByProvider.AWS += r.CostPerMonth
		case resource.ProviderAzure:
			s.CostsByProvider.Azure += r.CostPerMonth
		case resource.ProviderGCP:
			s.CostsByProvider.GCP += r.CostPerMonth
		}

		if _, ok := types[r.Type]; !ok {
			order = append(order, r.Type)
		}
		types[r.Type]++

		if r.Status == resource.StatusStopped {
			stopped.Count++
			stopped.MonthlyWastedCost += r.CostPerMonth
			if len(stopped.Examples) < 3 {
				stopped.Examples = append(stopped.Examples, fmt.Sprintf("%s (%s)", r.Name, r.Type))
			}
		}

		if (r.Type == resource.TypeCompute || r.Type == resource.TypeDatabase) && r.Status == resource.StatusRunning {
			ri.EligibleResourceCount++
			ri.MonthlyEligibleCost += r.CostPerMonth
		}
	}

	ri.Description = reservedDefault
	if ri.MonthlyEligibleCost > reservedThreshold && ri.EligibleResourceCount > 0 {
		ri.Description = reservedHigh
	}

	for _, t := range order {
		s.ResourceTypeDistribution = append(s.ResourceTypeDistribution, TypeCount{Type: t, Count: types[t]})
	}
	slices.SortStableFunc(s.ResourceTypeDistribution, func(a, b TypeCount) int {
		return b.Count - a.Count
	})
	if len(s.ResourceTypeDistribution) > 5 {
		s.ResourceTypeDistribution = s.ResourceTypeDistribution[:5]
	}

	byCost := slices.Clone(resources)
	slices.SortStableFunc(byCost, func(a, b resource.Resource) int {
		switch {
		case a.CostPerMonth > b.CostPerMonth:
			return -1
		case a.CostPerMonth < b.CostPerMonth:
			return 1
		default:
			return 0
		}
	})
	for _, r := range byCost[:min(5, len(byCost))] {
		s.OptimizationInsights.TopExpensiveResources = append(s.OptimizationInsights.TopExpensiveResources, ExpensiveResource{
			Name: r.Name, Type: r.Type, Provider: r.Provider, Status: r.Status, Cost: r.CostPerMonth,
		})
	}

	return s
}

// JSON renders the summary with two-space indentation and no HTML escaping.
func (s Summary) JSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
