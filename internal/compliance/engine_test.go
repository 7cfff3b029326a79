package compliance

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/nimbus/pkg/resource"
)

func makeResource(typ resource.Type, tags map[string]string, metadata map[string]any) resource.Resource {
	return resource.Resource{
		ID:        "res-1",
		Name:      "test-resource",
		Provider:  resource.ProviderAWS,
		Type:      typ,
		Region:    "us-east-1",
		Tags:      tags,
		Status:    resource.StatusRunning,
		RiskLevel: resource.RiskSecure,
		Metadata:  metadata,
	}
}

var ownerTags = map[string]string{"Owner": "DevOps"}

func TestScore_Rules(t *testing.T) {
	tests := []struct {
		name  string
		res   resource.Resource
		risk  resource.RiskLevel
		issue []string
	}{
		{
			name:  "untagged VPC",
			res:   makeResource(resource.TypeVPC, map[string]string{}, nil),
			risk:  resource.RiskLow,
			issue: []string{MsgUntagged},
		},
		{
			name:  "nil tags count as untagged",
			res:   makeResource(resource.TypeFunction, nil, nil),
			risk:  resource.RiskLow,
			issue: []string{MsgUntagged},
		},
		{
			name:  "non-standard tags only",
			res:   makeResource(resource.TypeFunction, map[string]string{"Project": "Media"}, nil),
			risk:  resource.RiskLow,
			issue: []string{MsgMissingStandardTags},
		},
		{
			name:  "empty standard tag value does not count",
			res:   makeResource(resource.TypeFunction, map[string]string{"Owner": ""}, nil),
			risk:  resource.RiskLow,
			issue: []string{MsgMissingStandardTags},
		},
		{
			name:  "bucket encrypted with KMS",
			res:   makeResource(resource.TypeBucket, ownerTags, map[string]any{"encryption": "AWS-KMS"}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "bucket missing encryption field",
			res:   makeResource(resource.TypeBucket, ownerTags, map[string]any{}),
			risk:  resource.RiskHigh,
			issue: []string{MsgBucketUnencrypted},
		},
		{
			name:  "bucket public flag as string is ignored",
			res:   makeResource(resource.TypeBucket, ownerTags, map[string]any{"publicAccess": "true", "encryption": "AES256"}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "compute with public IP",
			res:   makeResource(resource.TypeCompute, ownerTags, map[string]any{"publicIp": "20.40.10.5"}),
			risk:  resource.RiskHigh,
			issue: []string{MsgComputePublic},
		},
		{
			name:  "compute with null public IP",
			res:   makeResource(resource.TypeCompute, ownerTags, map[string]any{"publicIp": nil}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name: "bastion host is allowed a public IP",
			res: makeResource(resource.TypeCompute,
				map[string]string{"Owner": "Sec", "Type": "Bastion-Host"},
				map[string]any{"publicIp": "1.2.3.4"}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "compute with RDP open",
			res:   makeResource(resource.TypeCompute, ownerTags, map[string]any{"openPorts": []any{3389.0}}),
			risk:  resource.RiskHigh,
			issue: []string{MsgAdminPortsOpen},
		},
		{
			name:  "open ports as int slice",
			res:   makeResource(resource.TypeCompute, ownerTags, map[string]any{"openPorts": []int{443, 22}}),
			risk:  resource.RiskHigh,
			issue: []string{MsgAdminPortsOpen},
		},
		{
			name:  "port strings never match",
			res:   makeResource(resource.TypeCompute, ownerTags, map[string]any{"openPorts": []any{"22"}}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "open ports not a list",
			res:   makeResource(resource.TypeCompute, ownerTags, map[string]any{"openPorts": 22}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "database without metadata",
			res:   makeResource(resource.TypeDatabase, ownerTags, nil),
			risk:  resource.RiskHigh,
			issue: []string{MsgDatabaseUnencrypted},
		},
		{
			name:  "database encrypted",
			res:   makeResource(resource.TypeDatabase, ownerTags, map[string]any{"storageEncrypted": true}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "kubernetes dashboard and no RBAC",
			res:   makeResource(resource.TypeKubernetes, ownerTags, map[string]any{"dashboardEnabled": true, "rbacEnabled": false}),
			risk:  resource.RiskHigh,
			issue: []string{MsgDashboardEnabled, MsgRBACDisabled},
		},
		{
			name:  "kubernetes RBAC absent is not a finding",
			res:   makeResource(resource.TypeKubernetes, ownerTags, map[string]any{}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "internet-facing load balancer with 2016 policy",
			res:   makeResource(resource.TypeLoadBalancer, ownerTags, map[string]any{"scheme": "internet-facing", "sslPolicy": "ELBSecurityPolicy-2016-08"}),
			risk:  resource.RiskMedium,
			issue: []string{MsgOutdatedTLS},
		},
		{
			name:  "internal load balancer with 2016 policy",
			res:   makeResource(resource.TypeLoadBalancer, ownerTags, map[string]any{"scheme": "internal", "sslPolicy": "ELBSecurityPolicy-2016-08"}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
		{
			name:  "type-specific metadata ignored on other types",
			res:   makeResource(resource.TypeVPC, ownerTags, map[string]any{"publicAccess": true, "publicIp": "1.1.1.1"}),
			risk:  resource.RiskSecure,
			issue: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.res)
			assert.Equal(t, tt.risk, got.RiskLevel)
			assert.Equal(t, tt.issue, got.Issues)
		})
	}
}

func TestScore_UntaggedNeverSecure(t *testing.T) {
	types := []resource.Type{
		resource.TypeCompute, resource.TypeBucket, resource.TypeDatabase,
		resource.TypeLoadBalancer, resource.TypeVPC, resource.TypeFunction, resource.TypeKubernetes,
	}
	for _, typ := range types {
		got := Score(makeResource(typ, map[string]string{}, map[string]any{"storageEncrypted": true, "encryption": "AES256"}))
		assert.NotEqual(t, resource.RiskSecure, got.RiskLevel, typ)
		assert.Contains(t, got.Issues, MsgUntagged, typ)
		assert.NotContains(t, got.Issues, MsgMissingStandardTags, typ)
	}
}

func TestScore_PublicBucketAlwaysCritical(t *testing.T) {
	metas := []map[string]any{
		{"publicAccess": true},
		{"publicAccess": true, "encryption": "AES256"},
		{"publicAccess": true, "encryption": "None"},
	}
	for _, m := range metas {
		for _, tags := range []map[string]string{{}, {"Project": "x"}, ownerTags} {
			got := Score(makeResource(resource.TypeBucket, tags, m))
			assert.Equal(t, resource.RiskCritical, got.RiskLevel)
		}
	}
}

func TestScore_DatabaseWithProjectTag(t *testing.T) {
	r := makeResource(resource.TypeDatabase, map[string]string{"Project": "CRM"}, map[string]any{"storageEncrypted": false})

	got := Score(r)

	assert.Equal(t, resource.RiskHigh, got.RiskLevel)
	assert.Equal(t, []string{MsgMissingStandardTags, MsgDatabaseUnencrypted}, got.Issues)
}

func TestScore_LegacyLogsBucket(t *testing.T) {
	r := makeResource(resource.TypeBucket, map[string]string{}, map[string]any{
		"sizeGB":       45000,
		"storageClass": "Standard",
		"publicAccess": true,
		"encryption":   "None",
	})

	got := Score(r)

	assert.Equal(t, resource.RiskCritical, got.RiskLevel)
	assert.Equal(t, []string{MsgUntagged, MsgBucketPublic, MsgBucketUnencrypted}, got.Issues)
	require.Len(t, got.Findings, 3)
	assert.Equal(t, "CIS 2.1", got.Findings[1].Control)
}

func TestScore_Idempotent(t *testing.T) {
	r := makeResource(resource.TypeCompute, map[string]string{"Environment": "Dev"}, map[string]any{
		"publicIp":  "20.40.10.5",
		"openPorts": []any{22.0, 8080.0},
	})

	first := Apply(r)
	second := Apply(first)

	assert.Equal(t, first.RiskLevel, second.RiskLevel)
	assert.Equal(t, first.SecurityIssues, second.SecurityIssues)
	assert.Equal(t, Score(r), Score(r))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	r := makeResource(resource.TypeDatabase, map[string]string{"Project": "CRM"}, map[string]any{"storageEncrypted": false})
	r.RiskLevel = resource.RiskCritical
	r.SecurityIssues = []string{"stale"}

	scored := Apply(r)
	scored.Tags["Project"] = "changed"

	assert.Equal(t, resource.RiskCritical, r.RiskLevel)
	assert.Equal(t, []string{"stale"}, r.SecurityIssues)
	assert.Equal(t, "CRM", r.Tags["Project"])
	assert.Equal(t, resource.RiskHigh, scored.RiskLevel)
}

func TestApply_ImportedJSONShape(t *testing.T) {
	raw := `{"id":"vm-1","type":"Compute Instance","tags":{"Owner":"a"},
		"metadata":{"publicIp":"20.40.10.5","openPorts":[22,8080]}}`
	var r resource.Resource
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	scored := Apply(r)

	assert.Equal(t, resource.RiskHigh, scored.RiskLevel)
	assert.Equal(t, []string{MsgComputePublic, MsgAdminPortsOpen}, scored.SecurityIssues)
}

func TestApplyAll_PreservesOrder(t *testing.T) {
	in := []resource.Resource{
		makeResource(resource.TypeVPC, ownerTags, nil),
		makeResource(resource.TypeDatabase, ownerTags, nil),
	}
	in[0].ID, in[1].ID = "a", "b"

	out := ApplyAll(in)

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, resource.RiskSecure, out[0].RiskLevel)
	assert.Equal(t, resource.RiskHigh, out[1].RiskLevel)
}

type staticRule struct {
	findings []Finding
}

func (s staticRule) Name() string { return "static" }

func (s staticRule) Evaluate(_ context.Context, _ resource.Resource) []Finding {
	return s.findings
}

func TestEngine_ExtraRulesOnlyRaise(t *testing.T) {
	r := makeResource(resource.TypeBucket, ownerTags, map[string]any{"publicAccess": true, "encryption": "AES256"})
	engine := NewEngine(staticRule{findings: []Finding{
		{Control: "ORG-1", Message: "Bucket lacks lifecycle policy", Severity: resource.RiskLow},
		{Control: "ORG-2", Message: "ignored", Severity: resource.RiskLevel("bogus")},
		{Control: "ORG-3", Message: "ignored too", Severity: resource.RiskSecure},
	}})

	got := engine.Score(context.Background(), r)

	assert.Equal(t, resource.RiskCritical, got.RiskLevel)
	assert.Equal(t, []string{MsgBucketPublic, "Bucket lacks lifecycle policy"}, got.Issues)
	assert.Equal(t, []string{"static"}, engine.Rules())
}

func TestEngine_NoRulesMatchesScore(t *testing.T) {
	r := makeResource(resource.TypeKubernetes, map[string]string{}, map[string]any{"rbacEnabled": false})
	engine := NewEngine()

	assert.Equal(t, Score(r), engine.Score(context.Background(), r))
}

func TestControls(t *testing.T) {
	assert.Equal(t, []string{
		"GOV-1", "GOV-2", "CIS 2.1", "CIS 2.2", "CIS 4.1",
		"NET-1", "CIS 3.1", "CIS 5.1", "CIS 5.6", "TLS-1",
	}, Controls())
}
