package reembed

import (
	"fmt"
	"math"
)

// NormalizeVector scales v to unit length and returns a new slice. A zero
// vector normalizes to a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	result := make([]float32, len(v))
	if sum == 0 {
		return result
	}

	inv := 1 / math.Sqrt(sum)
	for i, val := range v {
		result[i] = float32(float64(val) * inv)
	}
	return result
}

// CheckVector rejects vectors that cannot be stored: empty, the wrong length
// (when dim > 0), all zeros, or containing NaN or Inf.
func CheckVector(v []float32, dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidVector)
	}
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("%w: %d dimensions, want %d", ErrInvalidVector, len(v), dim)
	}
	nonZero := false
	for i, val := range v {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidVector, i, val)
		}
		if val != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return fmt.Errorf("%w: zero vector", ErrInvalidVector)
	}
	return nil
}
