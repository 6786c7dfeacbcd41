package model

import (
	"fmt"
	"time"
)

// ChunkID is the stable, user-facing identifier of a chunk.
// The identifier space is append-only: an ID is never reused,
// even after the chunk has been tombstoned.
type ChunkID uint64

// DocumentID identifies the parent document of a chunk.
type DocumentID string

// CharRange is a half-open [Start, End) rune-offset range into the parent
// document's canonical text.
type CharRange struct {
	Start int
	End   int
}

// Valid reports whether the range is non-empty and strictly increasing.
func (r CharRange) Valid() bool {
	return r.Start >= 0 && r.End > r.Start
}

// Len returns the length of the range.
func (r CharRange) Len() int {
	return r.End - r.Start
}

// Overlaps reports whether r and o share at least one offset.
func (r CharRange) Overlaps(o CharRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// String returns a string representation of the range.
func (r CharRange) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.End)
}

// Chunk is the immutable unit of retrievable text. Chunks are created by the
// ingestion collaborator and are read-only to the query path.
type Chunk struct {
	ID         ChunkID
	DocumentID DocumentID

	// Text is the chunk content (UTF-8).
	Text string

	// Range locates Text inside the parent document's canonical text.
	Range CharRange

	// Page is the 1-based page number, 0 if unknown.
	Page int

	// TokenCount is supplied by the ingestion pipeline and drives the
	// context window budget.
	TokenCount int

	// Embedding is the fixed-length vector owned by the vector index.
	Embedding []float32

	// Filterable attributes.
	Collection string
	DocType    string
	CreatedAt  time.Time
}

// Hit is a single-signal search result: a chunk reference plus the score of
// the signal that produced it. Hits are ordered by descending score with ties
// broken by ascending ChunkID.
type Hit struct {
	ID    ChunkID
	Score float32
}

// Candidate is a scored reference to a chunk produced during retrieval.
// It never owns chunk content; the authoritative chunk lives in the corpus.
type Candidate struct {
	ID ChunkID

	// Per-signal scores. HasLexical/HasVector distinguish "retrieved with
	// score zero" from "not retrieved by this signal".
	LexicalScore float32
	HasLexical   bool
	VectorScore  float32
	HasVector    bool

	// FusedScore is the normalized, alpha-weighted combination of the two
	// signals.
	FusedScore float32

	// RerankScore is populated only after a successful rerank pass.
	RerankScore float32
	HasRerank   bool
}

// BestScore returns the rerank score when present, the fused score otherwise.
func (c Candidate) BestScore() float32 {
	if c.HasRerank {
		return c.RerankScore
	}
	return c.FusedScore
}

// ContextChunk is a chunk selected into a context window, possibly trimmed to
// its non-overlapping remainder.
type ContextChunk struct {
	Chunk

	// Score is the selection score (rerank if present, fused otherwise).
	Score float32

	// Trimmed indicates the chunk text was cut to resolve a span overlap.
	Trimmed bool
}

// ContextWindow is the ordered, token-bounded set of chunks handed to the
// generation capability.
//
// Invariants:
//   - the sum of TokenCount over Chunks never exceeds Budget
//   - no two chunks from the same document have overlapping ranges
type ContextWindow struct {
	Chunks []ContextChunk

	// TokenCount is the sum of TokenCount over the included chunks.
	TokenCount int

	// Budget is the configured maximum.
	Budget int
}

// Empty reports whether no chunks were selected.
func (w ContextWindow) Empty() bool { return len(w.Chunks) == 0 }

// Text returns the concatenated chunk texts separated by blank lines, in
// window order. This is the text handed to generation.
func (w ContextWindow) Text() string {
	switch len(w.Chunks) {
	case 0:
		return ""
	case 1:
		return w.Chunks[0].Text
	}
	n := 0
	for _, c := range w.Chunks {
		n += len(c.Text) + 2
	}
	buf := make([]byte, 0, n)
	for i, c := range w.Chunks {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, c.Text...)
	}
	return string(buf)
}

// Citation maps a span of generated answer text onto a literal span of a
// context chunk.
type Citation struct {
	// AnswerSpan is a rune-offset range into the generated answer text.
	AnswerSpan CharRange

	// ChunkID references the grounding chunk.
	ChunkID ChunkID

	// SourceSpan is a rune-offset range into that chunk's text.
	SourceSpan CharRange

	// Confidence is the match confidence in [0, 1].
	Confidence float32

	// Verified is false when Confidence fell below the grounding threshold.
	// Unverified citations are kept, not discarded, so callers can audit
	// ungrounded claims.
	Verified bool
}

// Filters restrict the candidate set before context assembly. Filtered-out
// candidates never count against the token budget.
type Filters struct {
	// Collections limits results to chunks whose Collection is listed.
	// Empty means no restriction.
	Collections []string

	// DocTypes limits results to chunks whose DocType is listed.
	DocTypes []string

	// After/Before bound CreatedAt. Zero values mean unbounded.
	After  time.Time
	Before time.Time

	// MinScore drops candidates whose best score is below the threshold.
	MinScore float32
}

// IsZero reports whether no filter criteria are set.
func (f Filters) IsZero() bool {
	return len(f.Collections) == 0 && len(f.DocTypes) == 0 &&
		f.After.IsZero() && f.Before.IsZero() && f.MinScore == 0
}

// MatchChunk reports whether the chunk passes the attribute filters.
// MinScore is a candidate-level criterion and is not checked here.
func (f Filters) MatchChunk(c Chunk) bool {
	if len(f.Collections) > 0 && !contains(f.Collections, c.Collection) {
		return false
	}
	if len(f.DocTypes) > 0 && !contains(f.DocTypes, c.DocType) {
		return false
	}
	if !f.After.IsZero() && c.CreatedAt.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && c.CreatedAt.After(f.Before) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
