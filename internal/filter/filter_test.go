package filter

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/nimbus/pkg/resource"
)

func sampleResources() []resource.Resource {
	return []resource.Resource{
		{
			ID: "i-0a1b2c3d4e5f", Name: "prod-api-cluster-01", Provider: resource.ProviderAWS,
			Type: resource.TypeCompute, Region: "us-east-1", CostPerMonth: 245.50,
			Tags:   map[string]string{"Environment": "Production", "Owner": "DevOps"},
			Status: resource.StatusRunning, CreatedAt: "2023-11-15T08:00:00Z", RiskLevel: resource.RiskSecure,
		},
		{
			ID: "db-mysql-prod-01", Name: "customer-records-primary", Provider: resource.ProviderGCP,
			Type: resource.TypeDatabase, Region: "us-central1", CostPerMonth: 520,
			Tags:   map[string]string{"Project": "CRM", "CostCenter": "CC-901"},
			Status: resource.StatusRunning, CreatedAt: "2023-01-10T12:30:00Z", RiskLevel: resource.RiskSecure,
		},
		{
			ID: "s3-legacy-logs", Name: "company-legacy-logs-archive", Provider: resource.ProviderAWS,
			Type: resource.TypeBucket, Region: "us-west-2", CostPerMonth: 1200,
			Tags:   map[string]string{},
			Status: resource.StatusRunning, CreatedAt: "2020-05-20T09:15:00Z", RiskLevel: resource.RiskCritical,
		},
		{
			ID: "vm-jenkins-build", Name: "ci-cd-build-agent", Provider: resource.ProviderAzure,
			Type: resource.TypeCompute, Region: "westeurope", CostPerMonth: 180,
			Tags:   map[string]string{"Environment": "Dev"},
			Status: resource.StatusStopped, CreatedAt: "2024-02-01T14:20:00Z", RiskLevel: resource.RiskHigh,
		},
	}
}

func ids(resources []resource.Resource) []string {
	out := make([]string, len(resources))
	for i, r := range resources {
		out[i] = r.ID
	}
	return out
}

func TestQuery_Apply(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "zero value sorts by cost descending",
			query: Query{},
			want:  []string{"s3-legacy-logs", "db-mysql-prod-01", "i-0a1b2c3d4e5f", "vm-jenkins-build"},
		},
		{
			name:  "search matches name case-insensitively",
			query: Query{Search: "LEGACY"},
			want:  []string{"s3-legacy-logs"},
		},
		{
			name:  "search matches id",
			query: Query{Search: "mysql"},
			want:  []string{"db-mysql-prod-01"},
		},
		{
			name:  "provider facet",
			query: Query{Provider: "AWS"},
			want:  []string{"s3-legacy-logs", "i-0a1b2c3d4e5f"},
		},
		{
			name:  "All disables facets",
			query: Query{Provider: All, Status: All, Risk: All},
			want:  []string{"s3-legacy-logs", "db-mysql-prod-01", "i-0a1b2c3d4e5f", "vm-jenkins-build"},
		},
		{
			name:  "status facet",
			query: Query{Status: "Stopped"},
			want:  []string{"vm-jenkins-build"},
		},
		{
			name:  "risk facet",
			query: Query{Risk: "Secure"},
			want:  []string{"db-mysql-prod-01", "i-0a1b2c3d4e5f"},
		},
		{
			name:  "bare tag term matches key or value",
			query: Query{Tags: "prod"},
			want:  []string{"i-0a1b2c3d4e5f"},
		},
		{
			name:  "bare tag term matches key",
			query: Query{Tags: "environment"},
			want:  []string{"i-0a1b2c3d4e5f", "vm-jenkins-build"},
		},
		{
			name:  "key:value tag",
			query: Query{Tags: "Environment: dev"},
			want:  []string{"vm-jenkins-build"},
		},
		{
			name:  "key:value both must match one tag",
			query: Query{Tags: "owner:crm"},
			want:  []string{},
		},
		{
			name:  "incomplete key:value matches all",
			query: Query{Tags: "owner:"},
			want:  []string{"s3-legacy-logs", "db-mysql-prod-01", "i-0a1b2c3d4e5f", "vm-jenkins-build"},
		},
		{
			name:  "sort by name ascending",
			query: Query{SortField: SortName, SortAsc: true},
			want:  []string{"vm-jenkins-build", "s3-legacy-logs", "db-mysql-prod-01", "i-0a1b2c3d4e5f"},
		},
		{
			name:  "sort by risk descending",
			query: Query{SortField: SortRisk},
			want:  []string{"s3-legacy-logs", "vm-jenkins-build", "i-0a1b2c3d4e5f", "db-mysql-prod-01"},
		},
		{
			name:  "sort by created ascending",
			query: Query{SortField: SortCreatedAt, SortAsc: true},
			want:  []string{"s3-legacy-logs", "db-mysql-prod-01", "i-0a1b2c3d4e5f", "vm-jenkins-build"},
		},
		{
			name:  "date range",
			query: Query{From: date("2023-01-01"), To: date("2023-11-15")},
			want:  []string{"db-mysql-prod-01", "i-0a1b2c3d4e5f"},
		},
		{
			name:  "combined filters",
			query: Query{Provider: "AWS", Tags: "owner", Search: "api"},
			want:  []string{"i-0a1b2c3d4e5f"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.query.Apply(sampleResources())
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestQuery_ApplyDoesNotModifyInput(t *testing.T) {
	in := sampleResources()
	_ = Query{SortField: SortName, SortAsc: true}.Apply(in)
	assert.Equal(t, sampleResources(), in)
}

func TestQuery_SortCreatedAtHonoursOffsets(t *testing.T) {
	in := []resource.Resource{
		{ID: "cest-0900", CreatedAt: "2024-03-01T09:00:00+02:00"},
		{ID: "utc-0830", CreatedAt: "2024-03-01T08:30:00Z"},
		{ID: "unparseable", CreatedAt: "soon"},
	}

	got := Query{SortField: SortCreatedAt, SortAsc: true}.Apply(in)
	assert.Equal(t, []string{"unparseable", "cest-0900", "utc-0830"}, ids(got))
}

func TestQuery_DateRangeExcludesUnparseable(t *testing.T) {
	r := resource.Resource{ID: "x", CreatedAt: "yesterday"}
	assert.False(t, Query{From: date("2020-01-01")}.Match(r))
	assert.True(t, Query{}.Match(r))
}

func TestQuery_ActiveFilters(t *testing.T) {
	assert.Equal(t, 0, Query{Search: "x", Provider: All}.ActiveFilters())
	assert.Equal(t, 3, Query{Provider: "AWS", Tags: "env", To: date("2024-01-01")}.ActiveFilters())
}

func TestParseSortField(t *testing.T) {
	tests := []struct {
		in   string
		want SortField
		ok   bool
	}{
		{"", SortCost, true},
		{"cost", SortCost, true},
		{"costPerMonth", SortCost, true},
		{"RISKLEVEL", SortRisk, true},
		{"createdat", SortCreatedAt, true},
		{"tags", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSortField(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFromValues(t *testing.T) {
	v := url.Values{}
	v.Set("q", "prod")
	v.Set("provider", "GCP")
	v.Set("tags", "project:crm")
	v.Set("sort", "name")
	v.Set("order", "asc")
	v.Set("from", "2023-01-01")

	q, err := FromValues(v)
	require.NoError(t, err)
	assert.Equal(t, Query{
		Search:    "prod",
		Provider:  "GCP",
		Tags:      "project:crm",
		From:      date("2023-01-01"),
		SortField: SortName,
		SortAsc:   true,
	}, q)

	assert.Equal(t, []string{"db-mysql-prod-01"}, ids(q.Apply(sampleResources())))
}

func TestFromValues_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad sort", "sort", "tags"},
		{"bad order", "order", "sideways"},
		{"bad from", "from", "15/11/2023"},
		{"bad to", "to", "tomorrow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromValues(url.Values{tt.key: {tt.val}})
			assert.Error(t, err)
		})
	}
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
