// Package inventory loads resource snapshots from a source plugin or a JSON
// import, scores them and publishes them as the current inventory.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/nimbus/internal/compliance"
	"github.com/yairfalse/nimbus/internal/emitter"
	"github.com/yairfalse/nimbus/internal/plugin"
	"github.com/yairfalse/nimbus/pkg/resource"
)

// ErrParse is returned when an import is not valid JSON.
var ErrParse = errors.New("parse inventory import")

// SourceImport is the snapshot source name used for JSON imports.
const SourceImport = "import"

// Service is the only writer of a State.
type Service struct {
	state   *State
	source  plugin.Plugin
	engine  *compliance.Engine
	emitter emitter.Emitter
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEngine replaces the default built-in-only compliance engine.
func WithEngine(e *compliance.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithEmitter sets the emitter that receives every published snapshot.
func WithEmitter(e emitter.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service publishing into state and fetching from source.
func NewService(state *State, source plugin.Plugin, opts ...Option) *Service {
	s := &Service{
		state:   state,
		source:  source,
		engine:  compliance.NewEngine(),
		emitter: emitter.Nop{},
		tracer:  otel.Tracer("nimbus/inventory"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the published snapshot.
func (s *Service) Current() *resource.Snapshot {
	return s.state.Current()
}

// Source returns the name of the configured source plugin.
func (s *Service) Source() string {
	return s.source.Name()
}

// Fetch scans the source, scores the result and publishes it.
// An empty or "All" provider means every provider.
// On error the current inventory is left unchanged.
func (s *Service) Fetch(ctx context.Context, account, provider string) (*resource.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.fetch", trace.WithAttributes(
		attribute.String("source", s.source.Name()),
		attribute.String("account", account),
		attribute.String("provider", provider),
	))
	defer span.End()

	start := s.now()
	raw, err := s.source.Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, fmt.Errorf("scan %s: %w", s.source.Name(), err)
	}

	raw = filterProvider(raw, provider)
	loaded := s.now()
	snap := s.publish(ctx, resource.Snapshot{
		Source:    s.source.Name(),
		Account:   account,
		LoadedAt:  loaded,
		Duration:  loaded.Sub(start),
		Resources: s.engine.ApplyAll(ctx, raw),
	})
	span.SetAttributes(attribute.Int("resources", snap.Len()))
	return snap, nil
}

// Import parses a JSON array of resources, scores it and publishes it.
// Valid JSON that is not an array publishes an empty inventory. Malformed
// JSON returns ErrParse and leaves the current inventory unchanged.
// Array elements that are not resource objects are skipped.
func (s *Service) Import(ctx context.Context, data []byte) (*resource.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.import")
	defer span.End()

	resources, err := decodeImport(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		log.Warn().Err(err).Msg("import rejected")
		return nil, err
	}

	snap := s.publish(ctx, resource.Snapshot{
		Source:    SourceImport,
		LoadedAt:  s.now(),
		Resources: s.engine.ApplyAll(ctx, resources),
	})
	span.SetAttributes(attribute.Int("resources", snap.Len()))
	return snap, nil
}

func (s *Service) publish(ctx context.Context, snap resource.Snapshot) *resource.Snapshot {
	published := s.state.Replace(snap)

	if err := s.emitter.Emit(ctx, published); err != nil {
		log.Warn().Err(err).Uint64("revision", published.Revision).Msg("emit snapshot")
	}

	log.Info().
		Uint64("revision", published.Revision).
		Str("source", published.Source).
		Str("account", published.Account).
		Int("resources", published.Len()).
		Dur("duration", published.Duration).
		Msg("inventory published")
	return published
}

func filterProvider(resources []resource.Resource, provider string) []resource.Resource {
	if provider == "" || strings.EqualFold(provider, "All") {
		return resources
	}
	out := make([]resource.Resource, 0, len(resources))
	for _, r := range resources {
		if strings.EqualFold(string(r.Provider), provider) {
			out = append(out, r)
		}
	}
	return out
}
