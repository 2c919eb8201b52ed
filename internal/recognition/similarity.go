package recognition

import (
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, in [-1, 1]. If either vector has zero magnitude the result is
// defined as 0.0; callers must not treat that as a meaningful score.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
