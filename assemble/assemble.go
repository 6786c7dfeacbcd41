// Package assemble selects a token-bounded, overlap-free context window from
// the ranked candidate list.
//
// Filters are applied before selection, so filtered-out candidates never
// count against the token budget. Overlapping spans from the same document
// are resolved in favour of the higher-scored chunk; the lower-scored one is
// trimmed to its largest non-overlapping remainder or dropped when the
// remainder is too small to be useful.
package assemble

import (
	"sort"

	"github.com/hupe1980/raggo/internal/text"
	"github.com/hupe1980/raggo/model"
)

// Ordering selects how the final window is ordered.
type Ordering int

const (
	// ByScore orders chunks by descending selection score (default).
	ByScore Ordering = iota
	// ByLocality orders chunks by document, then page, then char offset.
	// This can improve generation quality for multi-page answers.
	ByLocality
)

// Options represents the options for building a context window.
type Options struct {
	// Budget is the maximum total token count of the window.
	Budget int

	// Ordering selects the output ordering.
	Ordering Ordering

	// MinChunkTokens drops trimmed remainders smaller than this.
	MinChunkTokens int
}

// DefaultOptions are the recommended defaults.
var DefaultOptions = Options{
	Budget:         2048,
	Ordering:       ByScore,
	MinChunkTokens: 8,
}

// ChunkLookup resolves a candidate reference to its chunk.
type ChunkLookup func(id model.ChunkID) (model.Chunk, bool)

// Build selects the context window from candidates ordered by best available
// score (rerank when present, fused otherwise). Candidates whose chunk cannot
// be resolved are skipped.
func Build(candidates []model.Candidate, lookup ChunkLookup, filters model.Filters, optFns ...func(o *Options)) model.ContextWindow {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	type scored struct {
		chunk model.Chunk
		score float32
	}

	// Filter first: attribute filters and the minimum score threshold are
	// applied before any budget accounting.
	selectable := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.BestScore() < filters.MinScore {
			continue
		}
		chunk, ok := lookup(c.ID)
		if !ok {
			continue
		}
		if !filters.MatchChunk(chunk) {
			continue
		}
		selectable = append(selectable, scored{chunk: chunk, score: c.BestScore()})
	}

	sort.SliceStable(selectable, func(i, j int) bool {
		if selectable[i].score != selectable[j].score {
			return selectable[i].score > selectable[j].score
		}
		return selectable[i].chunk.ID < selectable[j].chunk.ID
	})

	window := model.ContextWindow{Budget: opts.Budget}
	claimed := make(map[model.DocumentID][]model.CharRange)

	for _, s := range selectable {
		chunk := s.chunk
		trimmed := false

		if overlaps(claimed[chunk.DocumentID], chunk.Range) {
			remainder, ok := largestRemainder(chunk.Range, claimed[chunk.DocumentID])
			if !ok {
				continue
			}
			chunk, ok = trim(chunk, remainder)
			if !ok || chunk.TokenCount < opts.MinChunkTokens {
				continue
			}
			trimmed = true
		}

		if window.TokenCount+chunk.TokenCount > opts.Budget {
			// Keep scanning: a later, smaller chunk may still fit.
			continue
		}

		claimed[chunk.DocumentID] = append(claimed[chunk.DocumentID], chunk.Range)
		window.Chunks = append(window.Chunks, model.ContextChunk{
			Chunk:   chunk,
			Score:   s.score,
			Trimmed: trimmed,
		})
		window.TokenCount += chunk.TokenCount
	}

	if opts.Ordering == ByLocality {
		sort.SliceStable(window.Chunks, func(i, j int) bool {
			a, b := window.Chunks[i], window.Chunks[j]
			if a.DocumentID != b.DocumentID {
				return a.DocumentID < b.DocumentID
			}
			if a.Page != b.Page {
				return a.Page < b.Page
			}
			return a.Range.Start < b.Range.Start
		})
	}

	return window
}

func overlaps(claimed []model.CharRange, r model.CharRange) bool {
	for _, c := range claimed {
		if c.Overlaps(r) {
			return true
		}
	}
	return false
}

// largestRemainder subtracts the claimed ranges from r and returns the
// largest remaining contiguous interval.
func largestRemainder(r model.CharRange, claimed []model.CharRange) (model.CharRange, bool) {
	remainders := []model.CharRange{r}
	for _, c := range claimed {
		var next []model.CharRange
		for _, rem := range remainders {
			if !rem.Overlaps(c) {
				next = append(next, rem)
				continue
			}
			if c.Start > rem.Start {
				next = append(next, model.CharRange{Start: rem.Start, End: c.Start})
			}
			if c.End < rem.End {
				next = append(next, model.CharRange{Start: c.End, End: rem.End})
			}
		}
		remainders = next
	}

	var best model.CharRange
	found := false
	for _, rem := range remainders {
		if !found || rem.Len() > best.Len() {
			best = rem
			found = true
		}
	}
	return best, found
}

// trim cuts the chunk to the given sub-range of its document span and
// recounts its tokens.
func trim(chunk model.Chunk, r model.CharRange) (model.Chunk, bool) {
	runes := []rune(chunk.Text)
	lo := r.Start - chunk.Range.Start
	hi := r.End - chunk.Range.Start
	if lo < 0 || hi > len(runes) || lo >= hi {
		return chunk, false
	}

	chunk.Text = string(runes[lo:hi])
	chunk.Range = r
	chunk.TokenCount = len(text.Tokenize(chunk.Text))
	// The trimmed chunk no longer carries a meaningful embedding.
	chunk.Embedding = nil
	return chunk, true
}
