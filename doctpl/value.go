package doctpl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDateLayout renders dates as "2 Jan, 2006".
const DefaultDateLayout = "2 Jan, 2006"

// textValue renders a scalar record value as text.
func textValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case nil:
		return "", fmt.Errorf("%w: null", ErrBadValue)
	}
	return "", fmt.Errorf("%w: %T is not a scalar", ErrBadValue, v)
}

// truthy follows JSON-ish truthiness: empty strings, zero, false and null
// are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return true
}

// dateValue accepts the extended JSON date forms {"$date": ms},
// {"$date": {"$numberLong": "ms"}} and {"$date": "RFC 3339"}, a bare
// millisecond number or a bare RFC 3339 string.
func dateValue(v any) (time.Time, error) {
	if m, ok := v.(map[string]any); ok {
		inner, ok := m["$date"]
		if !ok {
			return time.Time{}, fmt.Errorf("%w: date object without $date", ErrBadValue)
		}
		if nl, ok := inner.(map[string]any); ok {
			inner, ok = nl["$numberLong"]
			if !ok {
				return time.Time{}, fmt.Errorf("%w: unsupported $date object", ErrBadValue)
			}
		}
		v = inner
	}
	switch x := v.(type) {
	case json.Number:
		return millis(x.String())
	case float64:
		return time.UnixMilli(int64(x)).UTC(), nil
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t.UTC(), nil
		}
		return millis(x)
	}
	return time.Time{}, fmt.Errorf("%w: %T is not a date", ErrBadValue, v)
}

func millis(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrBadValue, s)
	}
	return time.UnixMilli(int64(f)).UTC(), nil
}

// records converts a sub node value to its nested records.
func records(v any) ([]Record, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a list of records", ErrBadValue, v)
	}
	out := make([]Record, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			// Kept as an empty record so the slots of later records stay put.
			out[i] = nil
			continue
		}
		out[i] = Record(m)
	}
	return out, nil
}
