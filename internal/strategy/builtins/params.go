package builtins

import (
	"fmt"
	"strings"

	"quantor/internal/strategy"
)

// RegisterAll registers every built-in strategy factory on the registry.
func RegisterAll(r *strategy.Registry) {
	r.Register("ma-cross", MACrossFactory)
	r.Register("macd", MACDFactory)
}

// intParam reads an integer parameter, tolerating the numeric types YAML and
// JSON decoders produce.
func intParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("parameter %q must be an integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be an integer, got %T", key, v)
	}
}

// floatParam reads a float parameter.
func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be numeric, got %T", key, v)
	}
}

// strParam reads a string parameter, lower-cased.
func strParam(params map[string]any, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
	}
	return def
}
