package sdk

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
)

// GameParameters are the per-tournament settings configured outside the
// game. Values arrive from JSON or HCL, so numbers may be float64,
// json.Number or integers; the accessors accept all of them.
type GameParameters map[string]any

// Clone returns a shallow copy.
func (p GameParameters) Clone() GameParameters {
	return maps.Clone(p)
}

// Text returns the value for key as a string.
func (p GameParameters) Text(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// Int returns the value for key as an int. Fractional numbers are rejected.
func (p GameParameters) Int(key string) (int, bool) {
	f, ok := p.Float(key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Float returns the value for key as a float64.
func (p GameParameters) Float(key string) (float64, bool) {
	switch t := p[key].(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the value for key as a bool.
func (p GameParameters) Bool(key string) (bool, bool) {
	switch t := p[key].(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	default:
		return false, false
	}
}

// IntOr returns the int value for key or def.
func (p GameParameters) IntOr(key string, def int) int {
	if v, ok := p.Int(key); ok {
		return v
	}
	return def
}
