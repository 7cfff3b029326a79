// Package resource defines the unified inventory resource model for Nimbus.
package resource

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Provider identifies the cloud a resource lives in.
type Provider string

// Supported providers.
const (
	ProviderAWS   Provider = "AWS"
	ProviderAzure Provider = "Azure"
	ProviderGCP   Provider = "GCP"
)

// Providers lists every supported provider in display order.
var Providers = []Provider{ProviderAWS, ProviderAzure, ProviderGCP}

// Type is the inventory resource type.
type Type string

// Resource types known to the compliance engine.
const (
	TypeCompute      Type = "Compute Instance"
	TypeBucket       Type = "Storage Bucket"
	TypeDatabase     Type = "Database"
	TypeLoadBalancer Type = "Load Balancer"
	TypeVPC          Type = "VPC"
	TypeFunction     Type = "Function"
	TypeKubernetes   Type = "Kubernetes Cluster"
)

// Status is the lifecycle state of a resource.
type Status string

// Lifecycle states.
const (
	StatusRunning    Status = "Running"
	StatusStopped    Status = "Stopped"
	StatusTerminated Status = "Terminated"
	StatusUnknown    Status = "Unknown"
)

// Resource represents one inventoried cloud entity.
// RiskLevel and SecurityIssues are derived by the compliance engine and are
// overwritten every time a resource is loaded.
type Resource struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Provider       Provider          `json:"provider" yaml:"provider"`
	AccountID      string            `json:"accountId" yaml:"accountId"`
	Type           Type              `json:"type" yaml:"type"`
	Region         string            `json:"region" yaml:"region"`
	CostPerMonth   float64           `json:"costPerMonth" yaml:"costPerMonth"`
	Tags           map[string]string `json:"tags" yaml:"tags"`
	Status         Status            `json:"status" yaml:"status"`
	CreatedAt      string            `json:"createdAt" yaml:"createdAt"` // RFC 3339, kept verbatim
	RiskLevel      RiskLevel         `json:"riskLevel" yaml:"riskLevel"`
	SecurityIssues []string          `json:"securityIssues" yaml:"securityIssues"`
	Metadata       map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"` // Raw provider attributes
}

// IsUntagged reports whether the resource carries no tags at all.
func (r Resource) IsUntagged() bool {
	return len(r.Tags) == 0
}

// Created parses CreatedAt. The zero time is returned for unparseable values.
func (r Resource) Created() time.Time {
	t, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a deep copy so callers can modify the result freely.
func (r Resource) Clone() Resource {
	out := r
	if r.Tags != nil {
		out.Tags = maps.Clone(r.Tags)
	}
	if r.SecurityIssues != nil {
		out.SecurityIssues = append([]string(nil), r.SecurityIssues...)
	}
	if r.Metadata != nil {
		out.Metadata = cloneMap(r.Metadata)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []int:
		return append([]int(nil), val...)
	default:
		return v
	}
}

// Export renders a single resource as pretty-printed JSON for download.
func Export(r Resource) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource %s: %w", r.ID, err)
	}
	return data, nil
}

// ExportFileName returns the download name used for Export output.
func ExportFileName(r Resource) string {
	return r.Name + "-metadata.json"
}
