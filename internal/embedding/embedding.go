// Package embedding provides the text embedders shared between index builds
// and query serving. Every implementation satisfies domain.Embedder.
package embedding

import "math"

// Normalize scales the vector to unit L2 norm in place and returns it.
// Zero vectors are returned unchanged. Normalized corpus and query vectors
// make cosine similarity a plain dot product.
func Normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
