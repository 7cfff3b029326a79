// Package daemon runs the periodic inventory sync loop.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/nimbus/internal/telemetry"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// Sync triggers.
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
	TriggerStart  = "startup"
)

// Fetcher loads and publishes a new inventory snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, account, provider string) (*resource.Snapshot, error)
}

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	Account     string
	Provider    string
	SyncOnStart bool
}

// Daemon manages continuous inventory sync
type Daemon struct {
	fetcher   Fetcher
	cfg       Config
	mp        metric.MeterProvider
	metrics   *Metrics
	logger    *telemetry.Logger
	now       func() time.Time
	startTime time.Time
	syncCount atomic.Int64

	mu       sync.Mutex
	lastSync time.Time
	lastErr  error
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithMeterProvider records metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Daemon) {
		d.mp = mp
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// NewDaemon creates a new daemon instance
func NewDaemon(fetcher Fetcher, cfg Config, opts ...Option) (*Daemon, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", cfg.Interval)
	}

	d := &Daemon{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  telemetry.NewLogger("daemon"),
		now:     time.Now,
		mp:      otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(d)
	}
	m, err := NewMetrics(d.mp)
	if err != nil {
		return nil, fmt.Errorf("create daemon metrics: %w", err)
	}
	d.metrics = m
	d.startTime = d.now()
	return d, nil
}

// Run syncs on every tick until ctx is done. Failed syncs are logged and
// counted; they never stop the loop.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.WithContext(ctx).Info().
		Dur("interval", d.cfg.Interval).
		Str("account", d.cfg.Account).
		Msg("auto-sync started")

	if d.cfg.SyncOnStart {
		_, _ = d.Sync(ctx, TriggerStart)
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("auto-sync stopped")
			return nil
		case <-ticker.C:
			_, _ = d.Sync(ctx, TriggerTimer)
		}
	}
}

// Sync performs one fetch. Concurrent calls are not serialized; the last
// published snapshot wins.
func (d *Daemon) Sync(ctx context.Context, trigger string) (*resource.Snapshot, error) {
	start := d.now()
	d.syncCount.Add(1)

	snap, err := d.fetcher.Fetch(ctx, d.cfg.Account, d.cfg.Provider)
	elapsed := d.now().Sub(start)

	d.mu.Lock()
	d.lastSync = start
	d.lastErr = err
	d.mu.Unlock()

	if err != nil {
		d.metrics.RecordSync(ctx, StatusError, trigger, elapsed)
		d.logger.WithContext(ctx).Error().
			Err(err).
			Str("trigger", trigger).
			Dur("duration", elapsed).
			Msg("inventory sync failed")
		return nil, err
	}

	d.metrics.RecordSync(ctx, StatusSuccess, trigger, elapsed)
	d.metrics.RecordResources(ctx, snap.Resources)
	d.logger.WithContext(ctx).Info().
		Str("trigger", trigger).
		Uint64("revision", snap.Revision).
		Int("resources", snap.Len()).
		Dur("duration", elapsed).
		Msg("inventory synced")
	return snap, nil
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := HealthStatus{
		Status:   "healthy",
		Uptime:   int64(d.now().Sub(d.startTime).Seconds()),
		Syncs:    d.syncCount.Load(),
		LastSync: d.lastSync,
	}
	if d.lastErr != nil {
		h.Status = "degraded"
		h.LastError = d.lastErr.Error()
	}
	return h
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status    string    `json:"status"`
	Uptime    int64     `json:"uptimeSeconds"`
	Syncs     int64     `json:"syncs"`
	LastSync  time.Time `json:"lastSync,omitzero"`
	LastError string    `json:"lastError,omitempty"`
}

// SyncCount returns total syncs attempted
func (d *Daemon) SyncCount() int64 {
	return d.syncCount.Load()
}
