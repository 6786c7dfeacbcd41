// Package fusion combines the lexical and vector result lists into a single
// ranked candidate list.
//
// The two signals arrive on incompatible scales (BM25 scores are unbounded,
// similarities live in [-1, 1]), so each list is normalized to [0, 1]
// independently before the weighted combination
//
//	fused = alpha*norm(vector) + (1-alpha)*norm(lexical)
//
// Rank-based normalization is the default: it is scale-invariant and robust
// to outliers. A chunk retrieved by only one signal scores 0 on the other
// after normalization; absence is a real signal, not missing data.
//
// The output is a deterministic function of the two input lists and alpha:
// candidates are ordered by descending fused score with ties broken by
// ascending chunk ID.
package fusion

import (
	"sort"

	"github.com/hupe1980/raggo/model"
)

// Normalization selects how raw scores are mapped to [0, 1].
type Normalization int

const (
	// RankBased maps the i-th ranked hit of an n-hit list to (n-i)/n.
	RankBased Normalization = iota
	// MinMax maps scores linearly onto [0, 1]; a constant-score list maps
	// to all ones.
	MinMax
)

// Options represents the options for fusing result lists.
type Options struct {
	// Alpha weights the vector signal; 1-Alpha weights the lexical signal.
	Alpha float64

	// Normalization selects the score normalizer.
	Normalization Normalization

	// FanOut truncates the fused list. It should be larger than the final
	// context size to leave room for reranking and overlap dedup.
	// 0 means no truncation.
	FanOut int
}

// DefaultOptions are the recommended defaults.
var DefaultOptions = Options{
	Alpha:         0.5,
	Normalization: RankBased,
	FanOut:        50,
}

// Fuse merges the two per-signal hit lists into one ranked candidate list.
// Both inputs are expected in descending score order.
func Fuse(lexicalHits, vectorHits []model.Hit, optFns ...func(o *Options)) []model.Candidate {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	lexNorm := normalize(lexicalHits, opts.Normalization)
	vecNorm := normalize(vectorHits, opts.Normalization)

	byID := make(map[model.ChunkID]*model.Candidate, len(lexicalHits)+len(vectorHits))

	for i, h := range lexicalHits {
		byID[h.ID] = &model.Candidate{
			ID:           h.ID,
			LexicalScore: lexNorm[i],
			HasLexical:   true,
		}
	}
	for i, h := range vectorHits {
		c, ok := byID[h.ID]
		if !ok {
			c = &model.Candidate{ID: h.ID}
			byID[h.ID] = c
		}
		c.VectorScore = vecNorm[i]
		c.HasVector = true
	}

	candidates := make([]model.Candidate, 0, len(byID))
	for _, c := range byID {
		// Absent signals contribute 0, not null.
		c.FusedScore = float32(opts.Alpha)*c.VectorScore + float32(1-opts.Alpha)*c.LexicalScore
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].ID < candidates[j].ID
	})

	if opts.FanOut > 0 && len(candidates) > opts.FanOut {
		candidates = candidates[:opts.FanOut]
	}
	return candidates
}

// normalize maps the scores of an ordered hit list to [0, 1].
func normalize(hits []model.Hit, n Normalization) []float32 {
	if len(hits) == 0 {
		return nil
	}

	out := make([]float32, len(hits))
	switch n {
	case MinMax:
		lo, hi := hits[0].Score, hits[0].Score
		for _, h := range hits[1:] {
			if h.Score < lo {
				lo = h.Score
			}
			if h.Score > hi {
				hi = h.Score
			}
		}
		if hi == lo {
			for i := range out {
				out[i] = 1
			}
			return out
		}
		for i, h := range hits {
			out[i] = (h.Score - lo) / (hi - lo)
		}
	default: // RankBased
		n := float32(len(hits))
		for i := range hits {
			out[i] = (n - float32(i)) / n
		}
	}
	return out
}
