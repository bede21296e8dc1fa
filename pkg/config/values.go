package config

import (
	"fmt"
	"math"
	"time"
)

// Section data round-trips through JSON, so numbers arrive as float64 and
// lists as []any. These helpers accept both the decoded and the native forms.

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// durationValue accepts a Go duration string ("90s") or a number of seconds.
func durationValue(key string, v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return parsed, nil
	case time.Duration:
		return d, nil
	}
	if secs, ok := floatValue(v); ok {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("%s: expected a duration, got %T", key, v)
}

func stringsValue(key string, v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected strings, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%s: expected a list, got %T", key, v)
}

func setInt(data map[string]any, key string, dst *int) error {
	v, ok := data[key]
	if !ok {
		return nil
	}
	n, ok := intValue(v)
	if !ok {
		return fmt.Errorf("%s: expected an integer, got %v", key, v)
	}
	*dst = n
	return nil
}

func setDuration(data map[string]any, key string, dst *time.Duration) error {
	v, ok := data[key]
	if !ok {
		return nil
	}
	d, err := durationValue(key, v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
