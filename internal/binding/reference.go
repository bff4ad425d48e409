package binding

import (
	"context"
	"fmt"
	"reflect"
)

// referenceBinder treats the raw value as an object reference and asks the
// resolver for the live object.
type referenceBinder struct {
	resolver ReferenceResolver
}

func (*referenceBinder) Name() string { return "reference" }

func (*referenceBinder) Supports(reflect.Type) bool { return true }

func (b *referenceBinder) Bind(ctx context.Context, raw *string, t reflect.Type) (any, error) {
	if raw == nil {
		return reflect.Zero(t).Interface(), nil
	}

	if b.resolver == nil {
		return nil, fmt.Errorf("resolving %v reference %q: %w", t, *raw, ErrNoResolver)
	}

	obj, err := b.resolver.ObjectByReference(ctx, t, *raw)
	if err != nil {
		return nil, fmt.Errorf("resolving %v reference %q: %w", t, *raw, err)
	}

	return obj, nil
}
