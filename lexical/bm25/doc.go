// Package bm25 provides a BM25-based in-memory lexical index.
//
// BM25 scores grow with term frequency but saturate (controlled by k1), and
// rare terms are weighted higher through the inverse document frequency
// component. Document length is normalized against the corpus average
// (controlled by b).
package bm25
