package index

import "math"

// cosine computes cosine similarity between two equal-length vectors.
// A zero-magnitude vector yields similarity 0 rather than NaN, so courses
// with degenerate embeddings sink to the bottom of the ranking instead of
// poisoning it.
func cosine(a, b []float64) float64 {
	var dot, na2, nb2 float64
	for i := range a {
		dot += a[i] * b[i]
		na2 += a[i] * a[i]
		nb2 += b[i] * b[i]
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}
