package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/pkg/resource"
)

const publicFunctionPolicy = `package nimbus

findings contains f if {
	input.type == "Function"
	input.metadata.publicUrl == true
	f := {"control": "FN-1", "message": "Function URL is public", "severity": "critical"}
}
`

func TestCompile_InvalidModule(t *testing.T) {
	_, err := Compile(context.Background(), "broken", "package nimbus\n\nfindings contains f if {")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile policy broken")
}

func TestRule_Evaluate(t *testing.T) {
	rule, err := Compile(context.Background(), "function-url", publicFunctionPolicy)
	require.NoError(t, err)
	assert.Equal(t, "function-url", rule.Name())

	tests := []struct {
		name     string
		resource resource.Resource
		want     []compliance.Finding
	}{
		{
			name: "public function",
			resource: resource.Resource{
				ID:       "fn-1",
				Type:     resource.TypeFunction,
				Metadata: map[string]any{"publicUrl": true},
			},
			want: []compliance.Finding{
				{Control: "FN-1", Message: "Function URL is public", Severity: resource.RiskCritical},
			},
		},
		{
			name: "private function",
			resource: resource.Resource{
				ID:       "fn-2",
				Type:     resource.TypeFunction,
				Metadata: map[string]any{"publicUrl": false},
			},
		},
		{
			name:     "other type",
			resource: resource.Resource{ID: "vm-1", Type: resource.TypeCompute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.Evaluate(context.Background(), tt.resource)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_MalformedFindingsSkipped(t *testing.T) {
	src := `package nimbus

findings contains "just a string" if { true }

findings contains {"message": "", "severity": "High"} if { true }

findings contains {"message": "bad severity", "severity": "Severe"} if { true }

findings contains {"message": "secure is not a finding", "severity": "Secure"} if { true }

findings contains {"message": "no control given", "severity": "Low"} if { true }
`
	rule, err := Compile(context.Background(), "mixed", src)
	require.NoError(t, err)

	got := rule.Evaluate(context.Background(), resource.Resource{ID: "r"})
	require.Len(t, got, 1)
	assert.Equal(t, compliance.Finding{
		Control:  "mixed",
		Message:  "no control given",
		Severity: resource.RiskLow,
	}, got[0])
}

func TestRule_WrongShape(t *testing.T) {
	rule, err := Compile(context.Background(), "scalar", "package nimbus\n\nfindings := 42\n")
	require.NoError(t, err)

	assert.Empty(t, rule.Evaluate(context.Background(), resource.Resource{ID: "r"}))
}

func TestRule_UndefinedFindings(t *testing.T) {
	rule, err := Compile(context.Background(), "empty", "package nimbus\n\nother := true\n")
	require.NoError(t, err)

	assert.Empty(t, rule.Evaluate(context.Background(), resource.Resource{ID: "r"}))
}

func TestRule_EvaluationErrorYieldsNoFindings(t *testing.T) {
	// Two conflicting values for a complete rule are a runtime error.
	src := `package nimbus

sev = "High" if { input.id != "" }
sev = "Low" if { input.id != "" }

findings contains {"message": "x", "severity": sev} if { true }
`
	rule, err := Compile(context.Background(), "conflict", src)
	require.NoError(t, err)

	assert.Empty(t, rule.Evaluate(context.Background(), resource.Resource{ID: "r"}))
}

func TestRule_WithEngine(t *testing.T) {
	rule, err := Compile(context.Background(), "function-url", publicFunctionPolicy)
	require.NoError(t, err)

	engine := compliance.NewEngine(rule)
	fn := resource.Resource{
		ID:       "fn-1",
		Type:     resource.TypeFunction,
		Tags:     map[string]string{"Owner": "team"},
		Metadata: map[string]any{"publicUrl": true},
	}

	scored := engine.Apply(context.Background(), fn)
	assert.Equal(t, resource.RiskCritical, scored.RiskLevel)
	assert.Equal(t, []string{"Function URL is public"}, scored.SecurityIssues)
}
