// Package policy loads custom Rego controls that extend the built-in
// compliance rule table.
//
// A policy module lives under package nimbus and defines a partial set rule
// named findings whose elements are objects of the form
//
//	{"control": "ORG-1", "message": "...", "severity": "High"}
//
// The resource being scored is passed as input.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/internal/telemetry"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// Query is the Rego query every policy module is evaluated with.
const Query = "data.nimbus.findings"

// Rule is a compiled Rego policy. It implements compliance.Rule.
type Rule struct {
	name   string
	query  rego.PreparedEvalQuery
	logger *telemetry.Logger
	tracer trace.Tracer
}

var _ compliance.Rule = (*Rule)(nil)

// Compile prepares a Rego module for evaluation.
func Compile(ctx context.Context, name, src string) (*Rule, error) {
	query, err := rego.New(
		rego.Query(Query),
		rego.Module(name+".rego", src),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy %s: %w", name, err)
	}

	return &Rule{
		name:   name,
		query:  query,
		logger: telemetry.NewLogger("policy"),
		tracer: otel.Tracer("nimbus/policy"),
	}, nil
}

// Name returns the policy name.
func (p *Rule) Name() string {
	return p.name
}

// Evaluate runs the policy against r. Evaluation errors and malformed
// results are logged and produce no findings.
func (p *Rule) Evaluate(ctx context.Context, r resource.Resource) []compliance.Finding {
	ctx, span := p.tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(
			attribute.String("policy.name", p.name),
			attribute.String("resource.id", r.ID),
		))
	defer span.End()

	results, err := p.query.Eval(ctx, rego.EvalInput(r))
	if err != nil {
		p.logger.WithContext(ctx).Error().
			Err(err).
			Str("policy", p.name).
			Str("resource_id", r.ID).
			Msg("policy evaluation failed")
		return nil
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil
	}

	items, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		p.logger.WithContext(ctx).Warn().
			Str("policy", p.name).
			Msgf("findings is %T, want a set", results[0].Expressions[0].Value)
		return nil
	}

	findings := make([]compliance.Finding, 0, len(items))
	for _, item := range items {
		f, err := p.parseFinding(item)
		if err != nil {
			p.logger.WithContext(ctx).Warn().
				Err(err).
				Str("policy", p.name).
				Str("resource_id", r.ID).
				Msg("skipping malformed finding")
			continue
		}
		findings = append(findings, f)
	}
	span.SetAttributes(attribute.Int("policy.findings", len(findings)))
	return findings
}

func (p *Rule) parseFinding(v interface{}) (compliance.Finding, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return compliance.Finding{}, fmt.Errorf("finding is %T, want an object", v)
	}

	message, _ := obj["message"].(string)
	if strings.TrimSpace(message) == "" {
		return compliance.Finding{}, fmt.Errorf("finding has no message")
	}

	raw, _ := obj["severity"].(string)
	severity, ok := resource.ParseRiskLevel(raw)
	if !ok || severity == resource.RiskSecure {
		return compliance.Finding{}, fmt.Errorf("invalid severity %q", raw)
	}

	control, _ := obj["control"].(string)
	if control == "" {
		control = p.name
	}

	return compliance.Finding{Control: control, Message: message, Severity: severity}, nil
}
