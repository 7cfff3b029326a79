package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// PrometheusEmitter exposes the latest snapshot as OTel metrics, scraped
// through the Prometheus exporter.
type PrometheusEmitter struct {
	meter metric.Meter

	resourceInfo         metric.Int64ObservableGauge
	resourceRisk         metric.Int64ObservableGauge
	inventoryCost        metric.Float64ObservableGauge
	resourceChangesTotal metric.Int64Counter

	// State for observable gauges
	mu        sync.RWMutex
	resources []resource.Resource

	diffTracker *DiffTracker
}

// NewPrometheusEmitter creates the emitter. A nil provider uses the global one.
func NewPrometheusEmitter(mp metric.MeterProvider) (*PrometheusEmitter, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	e := &PrometheusEmitter{
		meter:       mp.Meter("nimbus"),
		diffTracker: NewDiffTracker(),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *PrometheusEmitter) initMetrics() error {
	var err error

	e.resourceInfo, err = e.meter.Int64ObservableGauge(
		"nimbus_resource_info",
		metric.WithDescription("Inventoried cloud resource"),
		metric.WithInt64Callback(e.observeResources),
	)
	if err != nil {
		return fmt.Errorf("create resource_info gauge: %w", err)
	}

	e.resourceRisk, err = e.meter.Int64ObservableGauge(
		"nimbus_resource_risk",
		metric.WithDescription("Resources per risk level"),
		metric.WithInt64Callback(e.observeRisk),
	)
	if err != nil {
		return fmt.Errorf("create resource_risk gauge: %w", err)
	}

	e.inventoryCost, err = e.meter.Float64ObservableGauge(
		"nimbus_inventory_cost",
		metric.WithDescription("Monthly inventory cost per provider"),
		metric.WithFloat64Callback(e.observeCost),
	)
	if err != nil {
		return fmt.Errorf("create inventory_cost gauge: %w", err)
	}

	e.resourceChangesTotal, err = e.meter.Int64Counter(
		"nimbus_resource_changes_total",
		metric.WithDescription("Total resource changes detected between snapshots"),
	)
	if err != nil {
		return fmt.Errorf("create resource_changes counter: %w", err)
	}

	return nil
}

// Emit records the snapshot and counts changes against the previous one.
func (e *PrometheusEmitter) Emit(ctx context.Context, snap *resource.Snapshot) error {
	if snap == nil {
		return nil
	}

	e.emitDiffs(ctx, snap.Resources)

	e.mu.Lock()
	e.resources = snap.Resources
	e.mu.Unlock()

	e.diffTracker.Update(snap.Resources)

	log.Debug().
		Uint64("revision", snap.Revision).
		Str("source", snap.Source).
		Int("resources", len(snap.Resources)).
		Msg("metrics updated")

	return nil
}

func (e *PrometheusEmitter) emitDiffs(ctx context.Context, current []resource.Resource) {
	diffs := e.diffTracker.ComputeDiff(current)
	if diffs == nil {
		// First snapshot - baseline established
		return
	}

	for _, diff := range diffs {
		e.resourceChangesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", string(diff.Resource.Provider)),
			attribute.String("type", string(diff.Resource.Type)),
			attribute.String("change_type", string(diff.Type)),
		))

		logEvent := log.Info().
			Str("id", diff.Resource.ID).
			Str("type", string(diff.Resource.Type)).
			Str("provider", string(diff.Resource.Provider)).
			Str("change", string(diff.Type))

		if diff.Type == resource.DiffModified {
			for field, change := range diff.Changes {
				logEvent = logEvent.
					Str(field+".from", change.Previous).
					Str(field+".to", change.Current)
			}
		}

		logEvent.Msg("resource changed")
	}
}

func (e *PrometheusEmitter) observeResources(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.resources {
		attrs := []attribute.KeyValue{
			attribute.String("id", r.ID),
			attribute.String("type", string(r.Type)),
			attribute.String("provider", string(r.Provider)),
			attribute.String("region", r.Region),
			attribute.String("status", string(r.Status)),
			attribute.String("risk_level", string(r.RiskLevel)),
		}
		if r.Name != "" {
			attrs = append(attrs, attribute.String("name", r.Name))
		}
		for k, v := range r.Tags {
			if v != "" {
				attrs = append(attrs, attribute.String("tag_"+k, v))
			}
		}

		o.Observe(1, metric.WithAttributes(attrs...))
	}

	return nil
}

func (e *PrometheusEmitter) observeRisk(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[resource.RiskLevel]int64, len(resource.RiskLevels))
	for _, r := range e.resources {
		counts[r.RiskLevel]++
	}
	for _, level := range resource.RiskLevels {
		o.Observe(counts[level], metric.WithAttributes(attribute.String("level", string(level))))
	}
	return nil
}

func (e *PrometheusEmitter) observeCost(_ context.Context, o metric.Float64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	costs := make(map[resource.Provider]float64, len(resource.Providers))
	for _, r := range e.resources {
		costs[r.Provider] += r.CostPerMonth
	}
	for _, p := range resource.Providers {
		o.Observe(costs[p], metric.WithAttributes(attribute.String("provider", string(p))))
	}
	return nil
}

// Close is a no-op for Prometheus emitter.
func (e *PrometheusEmitter) Close() error {
	return nil
}
