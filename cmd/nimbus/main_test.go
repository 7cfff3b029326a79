package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/internal/config"
	"github.com/yairfalse/nimbus/internal/plugin/fixture"
	"github.com/yairfalse/nimbus/pkg/resource"
)

func scoredSample() []resource.Resource {
	return compliance.ApplyAll([]resource.Resource{
		{
			ID: "db1", Name: "orders", Provider: resource.ProviderGCP, Type: resource.TypeDatabase,
			Region: "us-central1", CostPerMonth: 520, Status: resource.StatusRunning,
			Tags:     map[string]string{"Project": "CRM"},
			Metadata: map[string]any{"storageEncrypted": false},
		},
	})
}

func TestPrintResources_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResources(&buf, formatCSV, scoredSample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"db1", "orders", "GCP", "Database", "us-central1", "Running", "520.00", "High",
		compliance.MsgMissingStandardTags + "; " + compliance.MsgDatabaseUnencrypted,
	}, rows[1])
}

func TestPrintResources_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResources(&buf, formatJSON, scoredSample()))

	var got []resource.Resource
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, resource.RiskHigh, got[0].RiskLevel)
}

func TestPrintResources_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResources(&buf, formatTable, scoredSample()))
	assert.Contains(t, buf.String(), "orders")
	assert.Contains(t, buf.String(), "$520.00")
}

func TestPrintResources_UnknownFormat(t *testing.T) {
	err := printResources(&bytes.Buffer{}, "yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestNewSource(t *testing.T) {
	c := config.Default()
	c.Source.Latency = 0

	src, err := newSource(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, fixture.Name, src.Name())

	resources, err := src.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, resources, 8)

	c.Source.Plugin = "azure"
	_, err = newSource(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source plugin")
}

func TestNewService_FetchesFixture(t *testing.T) {
	c := config.Default()
	c.Source.Latency = 0
	c.Source.Provider = "AWS"

	svc, err := newService(context.Background(), c, nil)
	require.NoError(t, err)

	snap, err := svc.Fetch(context.Background(), "demo", c.Source.Provider)
	require.NoError(t, err)
	assert.Equal(t, "demo", snap.Account)
	for _, r := range snap.Resources {
		assert.Equal(t, resource.ProviderAWS, r.Provider)
		assert.True(t, r.RiskLevel.Valid())
	}
}

func TestNewEngine_WithPolicies(t *testing.T) {
	c := config.Default()
	c.Policy.Dir = "../../internal/policy/testdata/policies"

	engine, err := newEngine(context.Background(), c)
	require.NoError(t, err)
	assert.Contains(t, engine.Rules(), "owner")

	c.Policy.Dir = t.TempDir() + "/missing"
	_, err = newEngine(context.Background(), c)
	require.Error(t, err)
}

func TestNewImporter(t *testing.T) {
	svc, err := newImporter(context.Background(), config.Default())
	require.NoError(t, err)

	_, err = svc.Fetch(context.Background(), "", "")
	require.Error(t, err)

	snap, err := svc.Import(context.Background(), []byte(`[{"id":"a","type":"VPC"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addSourceFlags(cmd)
	cmd.Flags().Duration("interval", 0, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--provider", "GCP", "--region", "eu-west-1,us-west-2", "--interval", "5m"}))

	c := config.Default()
	applyFlags(cmd, c)

	assert.Equal(t, "GCP", c.Source.Provider)
	assert.Equal(t, []string{"eu-west-1", "us-west-2"}, c.Source.AWS.Regions)
	assert.Equal(t, 5*time.Minute, c.Sync.Interval)
	assert.Equal(t, "fixture", c.Source.Plugin, "unset flags keep config values")
}
