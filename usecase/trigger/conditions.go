package trigger

import (
	"reflect"
	"strings"
)

// matchConditions reports whether every configured condition equals the
// corresponding event-data value. Keys are dotted paths into the payload.
// An empty condition set matches every event; a missing path never
// matches.
func matchConditions(conditions, data map[string]any) bool {
	for path, want := range conditions {
		got, ok := lookup(data, path)
		if !ok {
			return false
		}
		if !valueEqual(got, want) {
			return false
		}
	}
	return true
}

func lookup(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// valueEqual compares strictly, with one concession: numbers compare by
// value regardless of Go type, since JSON decoding yields float64 while
// configured conditions may carry ints.
func valueEqual(got, want any) bool {
	if gf, ok := asFloat(got); ok {
		if wf, ok := asFloat(want); ok {
			return gf == wf
		}
		return false
	}
	return reflect.DeepEqual(got, want)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
