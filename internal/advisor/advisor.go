// Package advisor produces natural-language security and cost advice for an
// inventory by prompting a generative text model.
//
// Analyze never fails: every problem is reported as a user-facing message.
package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/nimbus/internal/telemetry"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// Messages returned instead of model output.
const (
	MsgMissingKey = "Error: API Key is missing. Please check your configuration."
	MsgFailed     = "Failed to generate insights. Please try again later."
	MsgEmpty      = "No insights generated."
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Advisor builds prompts from inventory summaries.
type Advisor struct {
	gen     Generator
	apiKey  string
	timeout time.Duration
	logger  *telemetry.Logger
	tracer  trace.Tracer
}

// New creates an advisor. An empty apiKey short-circuits every request.
// A zero timeout means no deadline beyond the caller's context.
func New(gen Generator, apiKey string, timeout time.Duration) *Advisor {
	return &Advisor{
		gen:     gen,
		apiKey:  apiKey,
		timeout: timeout,
		logger:  telemetry.NewLogger("advisor"),
		tracer:  otel.Tracer("nimbus/advisor"),
	}
}

// Analyze answers question about resources.
func (a *Advisor) Analyze(ctx context.Context, resources []resource.Resource, question string) string {
	if a.apiKey == "" {
		return MsgMissingKey
	}

	ctx, span := a.tracer.Start(ctx, "advisor.analyze",
		trace.WithAttributes(attribute.Int("resources.count", len(resources))))
	defer span.End()

	summary, err := Summarize(resources).JSON()
	if err != nil {
		a.logger.WithContext(ctx).Error().Err(err).Msg("failed to summarize inventory")
		return MsgFailed
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	text, err := a.gen.Generate(ctx, Prompt(summary, question))
	if err != nil {
		a.logger.WithContext(ctx).Error().Err(err).Msg("generate insights")
		return MsgFailed
	}
	if strings.TrimSpace(text) == "" {
		return MsgEmpty
	}
	return text
}

// Prompt assembles the model input from a rendered summary and the user's question.
func Prompt(summary, question string) string {
	return fmt.Sprintf(`You are a Senior Cloud Security Architect and FinOps Specialist. You are analyzing a cloud inventory that has undergone automated compliance checks against industry standards (like CIS Benchmarks).

Inventory Data & Compliance Findings:
%s

User Question: %s

Analysis Instructions:
1. Review 'complianceFindings' (derived from automated checks). If there are CIS violations (e.g., Public Buckets, Unencrypted DBs), prioritize these security risks above cost.
2. Explain *why* these are risks using standard industry terminology (e.g., "Data Exfiltration risk", "Compliance Violation").
3. Recommend specific remediation steps (e.g., "Enable server-side encryption with KMS", "Restrict Security Group 0.0.0.0/0").
4. After security, address 'optimizationInsights' for cost savings (Stopped resources, Reserved Instances).
5. Provide concrete, data-backed recommendations.
6. Use Markdown for formatting (Alerts for Critical risks, bullet points).
`, summary, question)
}
