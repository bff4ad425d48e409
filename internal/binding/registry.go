// Package binding converts between typed Go values and the canonical string
// encoding stored in property changes.
//
// Binders are tried in a fixed order: primitive scalars, unique identifiers,
// date/time, collections, and finally object references. The first binder
// whose Supports reports true handles the conversion. Encode is the mirror of
// this order and its output is a durable format.
package binding

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/persistorai/changelog/internal/metrics"
)

// ReferenceResolver maps tracked objects to stable string references and back.
// For every type t and reference r:
// ReferenceFor(ObjectByReference(ctx, t, r)) == r.
type ReferenceResolver interface {
	ReferenceFor(obj any) (string, error)
	ReferencePropertyFor(obj any) (string, error)
	ObjectByReference(ctx context.Context, t reflect.Type, ref string) (any, error)
}

// Binder converts a raw string encoding into a value of a supported type.
type Binder interface {
	Name() string
	Supports(t reflect.Type) bool
	Bind(ctx context.Context, raw *string, t reflect.Type) (any, error)
}

// ErrFormat matches every *FormatError.
var ErrFormat = errors.New("invalid format")

// ErrNoResolver is returned when an object reference must be resolved but the
// registry was built without a ReferenceResolver.
var ErrNoResolver = errors.New("no reference resolver configured")

// FormatError reports a raw value that cannot be parsed into the requested type.
type FormatError struct {
	Raw  string
	Type reflect.Type
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("binding %q to %v: %v", e.Raw, e.Type, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) true for any FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Registry dispatches binding to an ordered table of binders, falling back to
// object references for any type no binder supports.
type Registry struct {
	binders  []Binder
	fallback Binder
	resolver ReferenceResolver
}

// NewRegistry creates a Registry with the default binder order. resolver may
// be nil when no object references are ever bound or encoded.
func NewRegistry(resolver ReferenceResolver) *Registry {
	r := &Registry{resolver: resolver}
	r.binders = []Binder{
		primitiveBinder{},
		uuidBinder{},
		timeBinder{},
		&collectionBinder{registry: r},
	}
	r.fallback = &referenceBinder{resolver: resolver}

	return r
}

// Binders returns the ordered binder table, excluding the reference fallback.
func (r *Registry) Binders() []Binder {
	out := make([]Binder, len(r.binders))
	copy(out, r.binders)

	return out
}

// Bind converts raw into a value of type t. A nil raw is the null encoding.
func (r *Registry) Bind(ctx context.Context, raw *string, t reflect.Type) (any, error) {
	b := r.binderFor(t)

	v, err := b.Bind(ctx, raw, t)
	if err != nil {
		metrics.BindFailuresTotal.WithLabelValues(b.Name()).Inc()

		return nil, err
	}

	return v, nil
}

func (r *Registry) binderFor(t reflect.Type) Binder {
	for _, b := range r.binders {
		if b.Supports(t) {
			return b
		}
	}

	return r.fallback
}

// As is the statically typed form of Registry.Bind.
func As[T any](ctx context.Context, r *Registry, raw *string) (T, error) {
	var zero T

	v, err := r.Bind(ctx, raw, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}

	if v == nil {
		return zero, nil
	}

	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("binding: %T is not assignable to %v", v, reflect.TypeFor[T]())
	}

	return out, nil
}
