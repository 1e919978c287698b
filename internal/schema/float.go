// Package schema defines the JSON request and response bodies of the HTTP API.
package schema

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Float is a float64 that survives JSON round trips when non-finite: NaN and ±Inf are
// written as null, and null is read back as NaN.
type Float float64

// NaN returns a Float holding NaN.
func NaN() Float {
	return Float(math.NaN())
}

// Value returns the plain float64.
func (f Float) Value() float64 {
	return float64(f)
}

// Finite reports whether f is neither NaN nor infinite.
func (f Float) Finite() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Finite() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(f), 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = NaN()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Floats converts a slice.
func Floats(v []float64) []Float {
	out := make([]Float, len(v))
	for i, x := range v {
		out[i] = Float(x)
	}
	return out
}
