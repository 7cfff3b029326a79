package daemon

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Sync outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds sync metrics using OTEL semantic conventions
type Metrics struct {
	syncs        metric.Int64Counter
	syncDuration metric.Float64Histogram
	resources    metric.Int64Gauge
}

// NewMetrics creates sync metrics on the given provider
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("nimbus.daemon")

	syncs, err := meter.Int64Counter(
		"nimbus.sync.runs",
		metric.WithDescription("Number of inventory sync runs"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, err
	}

	syncDuration, err := meter.Float64Histogram(
		"nimbus.sync.duration",
		metric.WithDescription("Duration of inventory sync operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	resources, err := meter.Int64Gauge(
		"nimbus.resources.discovered",
		metric.WithDescription("Number of cloud resources in the last sync"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncs:        syncs,
		syncDuration: syncDuration,
		resources:    resources,
	}, nil
}

// RecordSync records one sync run with its status and trigger
func (m *Metrics) RecordSync(ctx context.Context, status, trigger string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("trigger", trigger),
	)
	m.syncs.Add(ctx, 1, attrs)
	m.syncDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordResources records resource counts per provider and type
func (m *Metrics) RecordResources(ctx context.Context, resources []resource.Resource) {
	type key struct {
		provider resource.Provider
		typ      resource.Type
	}
	counts := map[key]int64{}
	for _, r := range resources {
		counts[key{r.Provider, r.Type}]++
	}
	for k, n := range counts {
		m.resources.Record(ctx, n,
			metric.WithAttributes(
				attribute.String("cloud.provider", string(k.provider)),
				attribute.String("resource.type", string(k.typ)),
			),
		)
	}
}
