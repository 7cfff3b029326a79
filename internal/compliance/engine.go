// Package compliance scores inventory resources against a fixed set of
// governance and CIS-style security controls.
//
// Scoring is pure and total: it never fails and never mutates its input.
// The risk level starts at Secure and is only ever raised by fired controls.
package compliance

import (
	"context"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Result is the outcome of scoring one resource.
type Result struct {
	RiskLevel resource.RiskLevel `json:"riskLevel"`
	Issues    []string           `json:"securityIssues"`
	Findings  []Finding          `json:"findings"`
}

// Rule is an additional control evaluated after the built-in table.
// Implementations must not fail; anything they cannot evaluate yields no findings.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, r resource.Resource) []Finding
}

// Score runs the built-in controls against r.
func Score(r resource.Resource) Result {
	return merge(builtinFindings(r))
}

// Apply returns a copy of r with RiskLevel and SecurityIssues derived by Score.
func Apply(r resource.Resource) resource.Resource {
	return withResult(r, Score(r))
}

// ApplyAll scores every resource, preserving order.
func ApplyAll(resources []resource.Resource) []resource.Resource {
	out := make([]resource.Resource, len(resources))
	for i, r := range resources {
		out[i] = Apply(r)
	}
	return out
}

// Engine scores resources with the built-in controls plus extra rules.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine. With no rules it behaves exactly like Score.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the names of the extra rules in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, rule := range e.rules {
		names[i] = rule.Name()
	}
	return names
}

// Score evaluates built-in controls first, then each extra rule in order.
func (e *Engine) Score(ctx context.Context, r resource.Resource) Result {
	findings := builtinFindings(r)
	for _, rule := range e.rules {
		for _, f := range rule.Evaluate(ctx, r) {
			if !f.Severity.Valid() || f.Severity == resource.RiskSecure || f.Message == "" {
				continue
			}
			findings = append(findings, f)
		}
	}
	return merge(findings)
}

// Apply returns a scored copy of r.
func (e *Engine) Apply(ctx context.Context, r resource.Resource) resource.Resource {
	return withResult(r, e.Score(ctx, r))
}

// ApplyAll scores every resource, preserving order.
func (e *Engine) ApplyAll(ctx context.Context, resources []resource.Resource) []resource.Resource {
	out := make([]resource.Resource, len(resources))
	for i, r := range resources {
		out[i] = e.Apply(ctx, r)
	}
	return out
}

// merge folds findings into a result with raise-if-higher semantics.
func merge(findings []Finding) Result {
	res := Result{
		RiskLevel: resource.RiskSecure,
		Issues:    make([]string, 0, len(findings)),
		Findings:  make([]Finding, 0, len(findings)),
	}
	for _, f := range findings {
		res.RiskLevel = res.RiskLevel.Raise(f.Severity)
		res.Issues = append(res.Issues, f.Message)
		res.Findings = append(res.Findings, f)
	}
	return res
}

func withResult(r resource.Resource, res Result) resource.Resource {
	out := r.Clone()
	out.RiskLevel = res.RiskLevel
	out.SecurityIssues = res.Issues
	return out
}
