// Package rerank defines the pluggable second-pass relevance scorer.
//
// Reranking is an optimization, not a correctness requirement: when no
// reranker is configured, or the configured one fails or times out, the
// orchestrator falls back to the fused ordering.
package rerank

import (
	"context"
	"sort"

	"github.com/hupe1980/raggo/internal/text"
	"github.com/hupe1980/raggo/model"
)

// Candidate is a chunk candidate presented to the reranker: the chunk
// reference, its text, and the first-pass score for logging/debugging.
type Candidate struct {
	ID    model.ChunkID
	Text  string
	Score float32
}

// Result is a reranked candidate with its second-pass relevance score.
type Result struct {
	ID    model.ChunkID
	Score float32
}

// Reranker scores candidates against the query with a more expensive
// relevance model, typically a cross-encoder behind a network call.
//
// Implementations return results for the same candidate set, sorted by
// descending score with ties broken by ascending chunk ID. On error, callers
// fall back to the first-pass ordering.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error)

	// Name returns the model identifier for logging and diagnostics.
	Name() string
}

// Noop passes the first-pass scores through unchanged. It is the configured
// reranker when no reranking model is available.
type Noop struct{}

var _ Reranker = Noop{}

// Rerank implements Reranker.
func (Noop) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Result, error) {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{ID: c.ID, Score: c.Score}
	}
	sortResults(results)
	return results, nil
}

// Name implements Reranker.
func (Noop) Name() string { return "noop" }

// TermOverlap is a cheap local reranker that scores candidates by fuzzy
// content-term overlap with the query. It is useful as a deterministic
// stand-in where no cross-encoder is deployed.
type TermOverlap struct{}

var _ Reranker = TermOverlap{}

// Rerank implements Reranker.
func (TermOverlap) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error) {
	queryTerms := text.Terms(query)

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = Result{ID: c.ID, Score: overlap(queryTerms, text.Terms(c.Text))}
	}
	sortResults(results)
	return results, nil
}

// Name implements Reranker.
func (TermOverlap) Name() string { return "term-overlap" }

// overlap returns the fraction of query terms present in the candidate terms,
// using fuzzy token equality.
func overlap(queryTerms, chunkTerms []string) float32 {
	if len(queryTerms) == 0 {
		return 0
	}
	matched := 0
	for _, q := range queryTerms {
		for _, t := range chunkTerms {
			if text.TokenEquals(q, t) {
				matched++
				break
			}
		}
	}
	return float32(matched) / float32(len(queryTerms))
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
