// Package flat provides an exact brute-force vector index.
package flat

import (
	"sort"
	"sync"

	"github.com/hupe1980/raggo/metric"
	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/vector"
)

// Options represents the options for configuring the flat index.
type Options struct {
	// Similarity is the similarity measure used for scoring.
	Similarity metric.Similarity
}

// DefaultOptions are the recommended defaults.
var DefaultOptions = Options{
	Similarity: metric.Cosine,
}

// Index is an exact (100% recall) vector index that scans every stored
// embedding on search.
type Index struct {
	mu        sync.RWMutex
	dimension int
	simFn     metric.Func
	ids       []model.ChunkID
	vectors   map[model.ChunkID][]float32
	opts      Options
}

var _ vector.Index = (*Index)(nil)

// New creates a new flat index for embeddings of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	simFn, err := metric.Provider(opts.Similarity)
	if err != nil {
		return nil, err
	}

	return &Index{
		dimension: dimension,
		simFn:     simFn,
		vectors:   make(map[model.ChunkID][]float32),
		opts:      opts,
	}, nil
}

// Add stores a copy of the embedding. Re-adding an ID replaces its vector.
func (idx *Index) Add(id model.ChunkID, vec []float32) error {
	if len(vec) != idx.dimension {
		return &vector.ErrDimensionMismatch{Expected: idx.dimension, Actual: len(vec)}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.vectors[id]; !ok {
		idx.ids = append(idx.ids, id)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	idx.vectors[id] = cp
	return nil
}

// Delete removes the embedding. Deleting an unknown ID is a no-op.
func (idx *Index) Delete(id model.ChunkID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.vectors[id]; !ok {
		return nil
	}
	delete(idx.vectors, id)
	for i, v := range idx.ids {
		if v == id {
			idx.ids = append(idx.ids[:i], idx.ids[i+1:]...)
			break
		}
	}
	return nil
}

// Search scans all embeddings and returns the k most similar, ordered by
// descending similarity with ties broken by ascending chunk ID.
func (idx *Index) Search(query []float32, k int, _ ...func(o *vector.SearchOptions)) ([]model.Hit, error) {
	if len(query) != idx.dimension {
		return nil, &vector.ErrDimensionMismatch{Expected: idx.dimension, Actual: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]model.Hit, 0, len(idx.ids))
	for _, id := range idx.ids {
		sim, err := idx.simFn(query, idx.vectors[id])
		if err != nil {
			return nil, err
		}
		hits = append(hits, model.Hit{ID: id, Score: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimension returns the configured embedding dimension.
func (idx *Index) Dimension() int { return idx.dimension }

// Close implements vector.Index.
func (idx *Index) Close() error { return nil }
