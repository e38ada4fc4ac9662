package conditions

import "math"

// Params holds the free-form parameter map of a condition definition.
// Values typically arrive from JSON, so numbers may be float64 even when a
// whole number is meant.
type Params map[string]any

// Int returns an integer parameter, falling back to def when absent or of
// the wrong shape.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	}
	return def
}

// Float returns a float parameter, falling back to def.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// String returns a string parameter, falling back to def.
func (p Params) String(key string, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}
