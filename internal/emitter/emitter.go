// Package emitter delivers published inventory snapshots to output backends.
package emitter

import (
	"context"
	"errors"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// Emitter receives every snapshot the inventory publishes.
type Emitter interface {
	// Emit delivers one snapshot. The snapshot must not be modified.
	Emit(ctx context.Context, snap *resource.Snapshot) error

	// Close cleans up resources.
	Close() error
}

// MultiEmitter fans out to multiple emitters.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Emit sends to every emitter, even after one fails, and joins the errors.
func (m *MultiEmitter) Emit(ctx context.Context, snap *resource.Snapshot) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all emitters and joins the errors.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards snapshots.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(context.Context, *resource.Snapshot) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
