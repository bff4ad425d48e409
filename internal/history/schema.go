package history

import (
	"context"
	"fmt"
	"slices"

	"github.com/persistorai/changelog/internal/binding"
)

type setter[M any] interface {
	apply(ctx context.Context, reg *binding.Registry, m *M, raw *string) error
}

// Schema maps the logged property names of M to typed setters. It is built
// once per type and replaces setting fields by name at runtime.
type Schema[M any] struct {
	typeName string
	setters  map[string]setter[M]
	clone    func(*M) *M
}

// SchemaOption configures a Schema.
type SchemaOption[M any] func(*Schema[M])

// WithClone sets how a snapshot is copied before the next change is
// applied. The default is a shallow copy, which is enough when setters
// replace fields instead of mutating shared values.
func WithClone[M any](clone func(*M) *M) SchemaOption[M] {
	return func(s *Schema[M]) { s.clone = clone }
}

// NewSchema creates an empty Schema for the tracked type logged as typeName.
func NewSchema[M any](typeName string, opts ...SchemaOption[M]) *Schema[M] {
	s := &Schema[M]{
		typeName: typeName,
		setters:  make(map[string]setter[M]),
		clone: func(m *M) *M {
			c := *m
			return &c
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TypeName returns the logged type name.
func (s *Schema[M]) TypeName() string { return s.typeName }

// Properties returns the defined property names in sorted order.
func (s *Schema[M]) Properties() []string {
	names := make([]string, 0, len(s.setters))
	for name := range s.setters {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Set binds raw and assigns it to the named property of m. It reports false
// when the schema does not define the property.
func (s *Schema[M]) Set(ctx context.Context, reg *binding.Registry, m *M, name string, raw *string) (bool, error) {
	p, ok := s.setters[name]
	if !ok {
		return false, nil
	}

	if err := p.apply(ctx, reg, m, raw); err != nil {
		return true, fmt.Errorf("setting %s.%s: %w", s.typeName, name, err)
	}

	return true, nil
}

// Property is a typed, named field of M.
type Property[M, V any] struct {
	schema *Schema[M]
	name   string
	set    func(*M, V)
}

// Define registers a property on s. Defining the same name twice replaces
// the earlier setter.
func Define[M, V any](s *Schema[M], name string, set func(*M, V)) *Property[M, V] {
	p := &Property[M, V]{schema: s, name: name, set: set}
	s.setters[name] = p

	return p
}

// Name returns the logged property name.
func (p *Property[M, V]) Name() string { return p.name }

// Schema returns the schema the property belongs to.
func (p *Property[M, V]) Schema() *Schema[M] { return p.schema }

func (p *Property[M, V]) apply(ctx context.Context, reg *binding.Registry, m *M, raw *string) error {
	v, err := binding.As[V](ctx, reg, raw)
	if err != nil {
		return err
	}

	p.set(m, v)

	return nil
}
