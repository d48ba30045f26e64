// Package mapsafe reads typed values out of decoded JSON-like maps.
package mapsafe

import (
	"fmt"
	"math"
)

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	if val, ok := m[key]; ok {
		switch any(defaultValue).(type) {
		case int:
			switch x := val.(type) {
			case int:
				return any(x).(T)
			case int64:
				return any(int(x)).(T)
			case float64:
				return any(int(x)).(T)
			}
		case float64:
			switch x := val.(type) {
			case float64:
				return any(x).(T)
			case int:
				return any(float64(x)).(T)
			}
		case string:
			if s, ok := val.(string); ok {
				return any(s).(T)
			}
		case bool:
			if b, ok := val.(bool); ok {
				return any(b).(T)
			}
		default:
			if v2, ok := val.(T); ok {
				return v2
			}
		}
	}
	return defaultValue
}

// Map returns the nested object at key, or nil.
func Map(m map[string]any, key string) map[string]any {
	return Get[map[string]any](m, key, nil)
}

// Float32s converts the list at key to float32 values. A missing key yields nil.
func Float32s(m map[string]any, key string) ([]float32, error) {
	list, err := list(m, key)
	if list == nil || err != nil {
		return nil, err
	}

	out := make([]float32, len(list))
	for i, v := range list {
		f, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected a number, got %T", key, i, v)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// Int64s converts the list at key to integers. Values must be whole numbers.
// A missing key yields nil.
func Int64s(m map[string]any, key string) ([]int64, error) {
	list, err := list(m, key)
	if list == nil || err != nil {
		return nil, err
	}

	out := make([]int64, len(list))
	for i, v := range list {
		f, ok := number(v)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("%s[%d]: expected an integer, got %v", key, i, v)
		}
		out[i] = int64(f)
	}
	return out, nil
}

func list(m map[string]any, key string) ([]any, error) {
	val, ok := m[key]
	if !ok || val == nil {
		return nil, nil
	}

	l, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %T", key, val)
	}
	if l == nil {
		l = []any{}
	}
	return l, nil
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
