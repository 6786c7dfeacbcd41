package lexical

import "github.com/hupe1980/raggo/model"

// Index is the interface for a lexical search index.
type Index interface {
	// Add adds a chunk's text to the index.
	Add(id model.ChunkID, text string) error
	// Delete removes a chunk from the index.
	Delete(id model.ChunkID) error
	// Search performs a keyword search and returns up to k hits ordered by
	// descending score, ties broken by ascending chunk ID. An empty or
	// stop-word-only query returns an empty result, not an error.
	Search(query string, k int) ([]model.Hit, error)
	// Close closes the index.
	Close() error
}
