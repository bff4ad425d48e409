package binding

import (
	"context"
	"encoding/base64"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	decimalType = reflect.TypeFor[decimal.Decimal]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	timeType    = reflect.TypeFor[time.Time]()
	timePtrType = reflect.TypeFor[*time.Time]()
)

// isBytes reports whether t is a byte slice, which is encoded as base64 text
// rather than as a collection.
func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

// primitiveBinder handles booleans, integers, floats, strings, decimals and
// byte slices, including named types over those kinds.
type primitiveBinder struct{}

func (primitiveBinder) Name() string { return "primitive" }

func (primitiveBinder) Supports(t reflect.Type) bool {
	if t == decimalType || isBytes(t) {
		return true
	}

	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func (primitiveBinder) Bind(_ context.Context, raw *string, t reflect.Type) (any, error) {
	out := reflect.New(t).Elem()
	if raw == nil {
		return out.Interface(), nil
	}

	if t == decimalType {
		d, err := decimal.NewFromString(strings.TrimSpace(*raw))
		if err != nil {
			return nil, &FormatError{Raw: *raw, Type: t, Err: err}
		}

		return d, nil
	}

	if isBytes(t) {
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*raw))
		if err != nil {
			return nil, &FormatError{Raw: *raw, Type: t, Err: err}
		}

		out.SetBytes(b)

		return out.Interface(), nil
	}

	s := *raw
	if t.Kind() != reflect.String {
		s = strings.TrimSpace(s)
	}

	var err error

	switch t.Kind() {
	case reflect.String:
		out.SetString(s)
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(s); err == nil {
			out.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(s, 10, t.Bits()); err == nil {
			out.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = strconv.ParseUint(s, 10, t.Bits()); err == nil {
			out.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = strconv.ParseFloat(s, t.Bits()); err == nil {
			out.SetFloat(f)
		}
	}

	if err != nil {
		return nil, &FormatError{Raw: *raw, Type: t, Err: err}
	}

	return out.Interface(), nil
}

// uuidBinder parses 128-bit identifiers from their canonical textual form.
type uuidBinder struct{}

func (uuidBinder) Name() string { return "uuid" }

func (uuidBinder) Supports(t reflect.Type) bool { return t == uuidType }

func (uuidBinder) Bind(_ context.Context, raw *string, t reflect.Type) (any, error) {
	if raw == nil {
		return uuid.Nil, nil
	}

	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, &FormatError{Raw: *raw, Type: t, Err: err}
	}

	return id, nil
}

// timeLayouts are tried in order. Values are written as RFC 3339; the other
// layouts cover rows written by older encoders.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006 3:04:05 PM",
}

// timeBinder is permissive: null or unparsable input yields the zero time (or
// a nil pointer) instead of an error, so legacy rows never block replay.
type timeBinder struct{}

func (timeBinder) Name() string { return "time" }

func (timeBinder) Supports(t reflect.Type) bool { return t == timeType || t == timePtrType }

func (timeBinder) Bind(_ context.Context, raw *string, t reflect.Type) (any, error) {
	tm, ok := parseTime(raw)

	if t == timePtrType {
		if !ok {
			return (*time.Time)(nil), nil
		}

		return &tm, nil
	}

	return tm, nil
}

func parseTime(raw *string) (time.Time, bool) {
	if raw == nil {
		return time.Time{}, false
	}

	s := strings.TrimSpace(*raw)
	for _, layout := range timeLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return tm, true
		}
	}

	return time.Time{}, false
}
