package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/nimbus/internal/advisor"
	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/internal/config"
	"github.com/yairfalse/nimbus/internal/emitter"
	"github.com/yairfalse/nimbus/internal/inventory"
	"github.com/yairfalse/nimbus/internal/plugin"
	"github.com/yairfalse/nimbus/internal/plugin/aws"
	"github.com/yairfalse/nimbus/internal/plugin/fixture"
	"github.com/yairfalse/nimbus/internal/policy"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// newSource builds the configured source plugin.
func newSource(ctx context.Context, c *config.Config) (plugin.Plugin, error) {
	registry := plugin.NewRegistry()

	switch c.Source.Plugin {
	case fixture.Name:
		p, err := fixture.New(fixture.Config{Latency: c.Source.Latency})
		if err != nil {
			return nil, err
		}
		registry.Register(p)
	case aws.Name:
		p, err := aws.New(ctx, aws.Config{Regions: c.Source.AWS.Regions, Profile: c.Source.AWS.Profile})
		if err != nil {
			return nil, fmt.Errorf("create aws plugin: %w", err)
		}
		registry.Register(p)
	}

	return registry.Lookup(c.Source.Plugin)
}

// newEngine adds the custom Rego rules, if a policy directory is set, to the
// built-in controls.
func newEngine(ctx context.Context, c *config.Config) (*compliance.Engine, error) {
	if c.Policy.Dir == "" {
		return compliance.NewEngine(), nil
	}

	loaded, err := policy.NewLoader(c.Policy.Dir).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	rules := make([]compliance.Rule, len(loaded))
	for i, r := range loaded {
		rules[i] = r
	}
	log.Info().Int("rules", len(rules)).Str("dir", c.Policy.Dir).Msg("custom policies loaded")
	return compliance.NewEngine(rules...), nil
}

// newService wires source, engine and emitter into an inventory service.
func newService(ctx context.Context, c *config.Config, emit emitter.Emitter) (*inventory.Service, error) {
	source, err := newSource(ctx, c)
	if err != nil {
		return nil, err
	}
	return newServiceFor(ctx, c, source, emit)
}

// newImporter is a service for JSON imports only; it never scans.
func newImporter(ctx context.Context, c *config.Config) (*inventory.Service, error) {
	source := plugin.Func{
		ID: inventory.SourceImport,
		ScanFn: func(context.Context) ([]resource.Resource, error) {
			return nil, errors.New("import-only inventory cannot scan")
		},
	}
	return newServiceFor(ctx, c, source, nil)
}

func newServiceFor(ctx context.Context, c *config.Config, source plugin.Plugin, emit emitter.Emitter) (*inventory.Service, error) {
	engine, err := newEngine(ctx, c)
	if err != nil {
		return nil, err
	}

	opts := []inventory.Option{inventory.WithEngine(engine)}
	if emit != nil {
		opts = append(opts, inventory.WithEmitter(emit))
	}
	return inventory.NewService(inventory.NewState(), source, opts...), nil
}

func newAdvisor(c *config.Config) *advisor.Advisor {
	key := c.Advisor.APIKey()
	gen := advisor.NewGeminiClient(c.Advisor.Endpoint, c.Advisor.Model, key, &http.Client{Timeout: c.Advisor.Timeout})
	return advisor.New(gen, key, c.Advisor.Timeout)
}
