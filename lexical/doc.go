// Package lexical defines the interface for lexical (keyword) search indexes.
//
// Lexical indexes supply the term-overlap signal of hybrid retrieval. The
// orchestrator runs them concurrently with the vector index and fuses the two
// result lists.
//
// # Built-in Implementation
//
// The bm25 subpackage provides a BM25-based in-memory index:
//
//	import "github.com/hupe1980/raggo/lexical/bm25"
//
//	idx := bm25.New()
//
// # Custom Implementations
//
// Implement the Index interface to plug in an external lexical backend:
//
//	type Index interface {
//	    Add(id model.ChunkID, text string) error
//	    Delete(id model.ChunkID) error
//	    Search(query string, k int) ([]model.Hit, error)
//	    Close() error
//	}
package lexical
