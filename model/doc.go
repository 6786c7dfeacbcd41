// Package model defines core types used throughout Raggo.
//
// # Identity Types
//
//   - ChunkID: append-only, never-reused chunk identifier (uint64)
//   - DocumentID: parent document identifier (string)
//   - CharRange: half-open rune-offset span into a document or answer text
//
// # Data Types
//
//   - Chunk: immutable retrievable unit with text, span, page and embedding
//   - Hit: single-signal search result (ID, score)
//   - Candidate: fused multi-signal search result with per-signal scores
//   - ContextWindow: token-bounded, overlap-free chunk selection
//   - Citation: answer span mapped to a literal source span with confidence
//   - Filters: attribute and score restrictions applied before assembly
package model
