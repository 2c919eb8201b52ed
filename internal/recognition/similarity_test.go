package recognition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := []float32{0.2, -0.5, 0.8, 0.1}
		score, err := CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, score, tol)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := []float32{1, 2, 3}
		b := []float32{-4, 0, 2.5}
		ab, err := CosineSimilarity(a, b)
		require.NoError(t, err)
		ba, err := CosineSimilarity(b, a)
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, tol)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		score, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, score, tol)
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		score, err := CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, score, tol)
	})

	t.Run("known value", func(t *testing.T) {
		// (3,4)·(4,3) / (5*5) = 24/25
		score, err := CosineSimilarity([]float32{3, 4}, []float32{4, 3})
		require.NoError(t, err)
		assert.InDelta(t, 0.96, score, tol)
	})

	t.Run("zero vector defined as 0", func(t *testing.T) {
		score, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 0.0, score)
	})

	t.Run("shape mismatch is a hard error", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("result stays in range", func(t *testing.T) {
		a := []float32{0.1, 0.9, -0.3, 0.4}
		b := []float32{0.7, -0.2, 0.5, 0.05}
		score, err := CosineSimilarity(a, b)
		require.NoError(t, err)
		assert.LessOrEqual(t, math.Abs(score), 1.0+tol)
	})
}
