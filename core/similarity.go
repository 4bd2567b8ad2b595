package core

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Returns 0 when either vector has zero magnitude. Only the common prefix
// of vectors with different lengths is compared.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Normalize returns v scaled to unit length as a new slice.
// A zero vector normalizes to a zero vector.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	magnitude := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / magnitude)
	}
	return out
}
