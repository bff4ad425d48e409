package binding

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// collectionSeparator joins encoded collection items.
const collectionSeparator = ","

// collectionBinder splits a comma-joined encoding and binds every item through
// the registry. The target slice type is instantiated as itself, so named
// slice types survive the round trip.
type collectionBinder struct {
	registry *Registry
}

func (*collectionBinder) Name() string { return "collection" }

func (*collectionBinder) Supports(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && !isBytes(t)
}

func (b *collectionBinder) Bind(ctx context.Context, raw *string, t reflect.Type) (any, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return reflect.MakeSlice(t, 0, 0).Interface(), nil
	}

	items := strings.Split(*raw, collectionSeparator)
	out := reflect.MakeSlice(t, 0, len(items))
	elem := t.Elem()

	for i := range items {
		v, err := b.registry.Bind(ctx, &items[i], elem)
		if err != nil {
			return nil, fmt.Errorf("binding item %d of %v: %w", i, t, err)
		}

		iv, err := valueOf(v, elem)
		if err != nil {
			return nil, err
		}

		out = reflect.Append(out, iv)
	}

	return out.Interface(), nil
}

func valueOf(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("binding: %v is not assignable to %v", rv.Type(), t)
	}

	return rv, nil
}
