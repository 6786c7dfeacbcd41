package flat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/raggo/metric"
	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/vector"
)

func TestIndex_SearchOrdering(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)

	require.NoError(t, idx.Add(1, []float32{1, 0}))
	require.NoError(t, idx.Add(2, []float32{0, 1}))
	require.NoError(t, idx.Add(3, []float32{0.9, 0.1}))

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, model.ChunkID(1), hits[0].ID)
	assert.Equal(t, model.ChunkID(3), hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestIndex_TieBreakByID(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)

	// Same vector, same similarity: order falls back to ascending ID.
	require.NoError(t, idx.Add(9, []float32{1, 1}))
	require.NoError(t, idx.Add(4, []float32{1, 1}))
	require.NoError(t, idx.Add(6, []float32{1, 1}))

	hits, err := idx.Search([]float32{1, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, model.ChunkID(4), hits[0].ID)
	assert.Equal(t, model.ChunkID(6), hits[1].ID)
	assert.Equal(t, model.ChunkID(9), hits[2].ID)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)

	err = idx.Add(1, []float32{1, 0})
	var dm *vector.ErrDimensionMismatch
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	_, err = idx.Search([]float32{1}, 5)
	assert.Error(t, err)
}

func TestIndex_Delete(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)

	require.NoError(t, idx.Add(1, []float32{1, 0}))
	require.NoError(t, idx.Add(2, []float32{0, 1}))
	require.NoError(t, idx.Delete(1))

	hits, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, model.ChunkID(2), hits[0].ID)

	assert.NoError(t, idx.Delete(42))
}

func TestIndex_DotSimilarity(t *testing.T) {
	idx, err := New(2, func(o *Options) {
		o.Similarity = metric.Dot
	})
	require.NoError(t, err)

	require.NoError(t, idx.Add(1, []float32{2, 0}))
	require.NoError(t, idx.Add(2, []float32{1, 0}))

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, model.ChunkID(1), hits[0].ID)
	assert.InDelta(t, 2.0, hits[0].Score, 1e-6)
}

func TestIndex_KZero(t *testing.T) {
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(1, []float32{1, 0}))

	hits, err := idx.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
