// Package similarity scores how close a candidate is to a job posting, both
// semantically (cosine of embeddings) and by explicit skill overlap.
package similarity

import "math"

// Cosine returns the cosine similarity of a and b clamped to [0, 1]. Missing,
// mismatched or zero-length vectors score 0 rather than failing, so sparse
// profiles degrade to "no match".
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	aNorm := norm(a)
	if aNorm == 0 {
		return 0
	}
	return clamp(dotProduct(a, b, aNorm))
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// dotProduct computes dot(a,b) / (aNorm * |b|) with aNorm precomputed.
func dotProduct(a, b []float32, aNorm float64) float64 {
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	if bNormSq == 0 {
		return 0
	}
	return dot / (aNorm * math.Sqrt(bNormSq))
}

// clamp bounds s to [0, 1]; rounding can push parallel vectors just past 1.
func clamp(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
