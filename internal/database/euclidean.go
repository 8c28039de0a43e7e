package database

import "math"

// EuclideanDistance computes the L2 distance between two vectors directly.
// Returns +Inf for vectors of different length.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ValidateEmbedding checks that v has dim components, all finite.
// A dim of 0 only requires a non-empty vector.
func ValidateEmbedding(v []float64, dim int) error {
	if len(v) == 0 {
		return Malformed("empty vector")
	}
	if dim > 0 && len(v) != dim {
		return Malformed("got %d components, corpus dimensionality is %d", len(v), dim)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Malformed("component %d is not finite", i)
		}
	}
	return nil
}
