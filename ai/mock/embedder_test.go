package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector(t *testing.T) {
	t.Run("same text produces same vector", func(t *testing.T) {
		a := DeterministicVector("a recurring dream", 384)
		b := DeterministicVector("a recurring dream", 384)
		assert.Equal(t, a, b)
	})

	t.Run("different text produces different vector", func(t *testing.T) {
		a := DeterministicVector("falling", 384)
		b := DeterministicVector("flying", 384)
		assert.NotEqual(t, a, b)
	})

	t.Run("has unit norm", func(t *testing.T) {
		vector := DeterministicVector("deep water", 384)
		require.Len(t, vector, 384)

		var sumSquares float64
		for _, v := range vector {
			sumSquares += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
	})
}

func TestMockEmbedderInjection(t *testing.T) {
	ctx := context.Background()
	embedder := NewMockEmbedder()

	vector, err := embedder.EmbedText(ctx, "night terrors")
	require.NoError(t, err)
	assert.Equal(t, DeterministicVector("night terrors", 384), vector)

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	vector, err = embedder.EmbedText(ctx, "night terrors")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vector)

	assert.Equal(t, 2, embedder.CallCount())
	embedder.Reset()
	assert.Equal(t, 0, embedder.CallCount())
	assert.Nil(t, embedder.EmbedTextFunc)
}
