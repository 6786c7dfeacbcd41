// Package vector defines the interface for vector similarity indexes.
//
// Two built-in implementations exist:
//
//   - flat: exact brute-force search, 100% recall, best below ~100K chunks
//   - hnsw: approximate graph search with the EF recall/latency knob
//
// Both order results by descending similarity with deterministic tie-breaks
// by ascending chunk ID, so swapping implementations never changes the
// contract, only the recall/latency tradeoff.
package vector
