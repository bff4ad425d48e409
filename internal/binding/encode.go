package binding

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Encode renders v in the canonical string encoding. A nil result is the null
// encoding. Scalars use their native string form, collections are joined with
// a comma, byte slices as base64 and any other value is encoded as its object
// reference.
func (r *Registry) Encode(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}

	switch x := v.(type) {
	case string:
		return &x, nil
	case uuid.UUID:
		return ptr(x.String()), nil
	case decimal.Decimal:
		return ptr(x.String()), nil
	case time.Time:
		return ptr(x.Format(time.RFC3339Nano)), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}

		return ptr(x.Format(time.RFC3339Nano)), nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.String:
		return ptr(rv.String()), nil
	case reflect.Bool:
		return ptr(strconv.FormatBool(rv.Bool())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ptr(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ptr(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		return ptr(strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits())), nil
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}

		if isBytes(rv.Type()) {
			return ptr(base64.StdEncoding.EncodeToString(rv.Bytes())), nil
		}

		return r.encodeCollection(rv)
	case reflect.Pointer, reflect.Interface, reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
	}

	return r.encodeReference(v)
}

func (r *Registry) encodeCollection(rv reflect.Value) (*string, error) {
	items := make([]string, rv.Len())

	for i := range items {
		s, err := r.Encode(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("encoding item %d: %w", i, err)
		}

		if s != nil {
			items[i] = *s
		}
	}

	return ptr(strings.Join(items, collectionSeparator)), nil
}

func (r *Registry) encodeReference(v any) (*string, error) {
	if r.resolver == nil {
		return nil, fmt.Errorf("encoding %T: %w", v, ErrNoResolver)
	}

	ref, err := r.resolver.ReferenceFor(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T as reference: %w", v, err)
	}

	return &ref, nil
}

func ptr(s string) *string { return &s }
