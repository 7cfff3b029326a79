package compliance

import "strings"

// Metadata values arrive from JSON imports (float64, []any), from the embedded
// YAML fixture (int, []any) and from provider plugins (native Go types). The
// helpers below read them without ever failing: a missing or wrong-typed value
// simply does not match.

// isTrue reports whether key holds the boolean true.
func isTrue(m map[string]any, key string) bool {
	b, ok := m[key].(bool)
	return ok && b
}

// isFalse reports whether key holds the boolean false. Absent is not false.
func isFalse(m map[string]any, key string) bool {
	b, ok := m[key].(bool)
	return ok && !b
}

// stringValue returns the value of key when it is a string.
func stringValue(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// stringContains reports whether key holds a string containing substr.
func stringContains(m map[string]any, key, substr string) bool {
	s, ok := stringValue(m, key)
	return ok && strings.Contains(s, substr)
}

// truthy follows loose truthiness: nil, false, zero numbers and the empty
// string are false, everything else is true.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	default:
		if n, ok := toFloat(v); ok {
			return n != 0 && n == n
		}
		return true
	}
}

// listContainsNumber reports whether key holds a list with any of the wanted
// numbers. Non-numeric elements never match.
func listContainsNumber(m map[string]any, key string, wanted ...float64) bool {
	for _, item := range numberList(m[key]) {
		for _, w := range wanted {
			if item == w {
				return true
			}
		}
	}
	return false
}

func numberList(v any) []float64 {
	var out []float64
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if n, ok := toFloat(item); ok {
				out = append(out, n)
			}
		}
	case []int:
		for _, item := range list {
			out = append(out, float64(item))
		}
	case []int32:
		for _, item := range list {
			out = append(out, float64(item))
		}
	case []float64:
		out = append(out, list...)
	}
	return out
}

func toFloat(v any) (float64, bool) {
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
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
