package vector

import "github.com/hupe1980/raggo/model"

// SearchOptions controls a single vector search.
type SearchOptions struct {
	// EF is the size of the dynamic candidate list for approximate indexes.
	// Larger EF improves recall at the cost of latency; it is the documented
	// recall/latency knob. 0 means use the index default. Exact indexes
	// ignore it.
	EF int
}

// Index is the interface for a vector (embedding) search index.
//
// Implementations may be exact (brute force) or approximate, but the search
// contract is the same regardless: hits ordered by descending similarity,
// ties broken by ascending chunk ID.
type Index interface {
	// Add adds a chunk embedding to the index.
	Add(id model.ChunkID, vec []float32) error
	// Delete removes a chunk from the index.
	Delete(id model.ChunkID) error
	// Search returns up to k hits for the query embedding.
	Search(query []float32, k int, optFns ...func(o *SearchOptions)) ([]model.Hit, error)
	// Dimension returns the configured embedding dimension.
	Dimension() int
	// Close closes the index.
	Close() error
}
