// Package fixture implements a source plugin that serves a fixed reference
// data set after a simulated network delay.
package fixture

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Name is the plugin identifier.
const Name = "fixture"

// DefaultLatency mimics a cloud API round trip.
const DefaultLatency = 1500 * time.Millisecond

//go:embed resources.yaml
var data []byte

// Config holds fixture plugin configuration.
type Config struct {
	Latency time.Duration
}

// Plugin serves the embedded data set.
type Plugin struct {
	latency   time.Duration
	resources []resource.Resource
}

// New decodes the embedded data set. A zero latency is kept as zero.
func New(cfg Config) (*Plugin, error) {
	resources, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &Plugin{latency: cfg.Latency, resources: resources}, nil
}

// Resources decodes a fresh copy of the embedded data set.
func Resources() ([]resource.Resource, error) {
	return Decode(data)
}

// Decode parses a YAML list of resources.
func Decode(b []byte) ([]resource.Resource, error) {
	var resources []resource.Resource
	if err := yaml.Unmarshal(b, &resources); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return resources, nil
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return Name
}

// Scan waits for the configured latency and returns a fresh copy of the data set.
func (p *Plugin) Scan(ctx context.Context) ([]resource.Resource, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	out := make([]resource.Resource, len(p.resources))
	for i, r := range p.resources {
		out[i] = r.Clone()
	}
	return out, nil
}
