package bm25

import (
	"math"
	"sort"
	"sync"

	"github.com/hupe1980/raggo/internal/text"
	"github.com/hupe1980/raggo/lexical"
	"github.com/hupe1980/raggo/model"
)

// BM25 free parameters: k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	id    model.ChunkID
	count int
}

// MemoryIndex is an in-memory BM25 inverted index.
//
// Score statistics (document frequency, average length) are corpus-global, so
// concurrent ingestion may shift absolute scores slightly between queries;
// the candidate set and relative ordering for a fixed corpus are
// deterministic.
type MemoryIndex struct {
	mu          sync.RWMutex
	inverted    map[string][]posting
	docLengths  map[model.ChunkID]int
	totalLength int64
	docCount    int
}

// New creates a new MemoryIndex.
func New() *MemoryIndex {
	return &MemoryIndex{
		inverted:   make(map[string][]posting),
		docLengths: make(map[model.ChunkID]int),
	}
}

// Ensure MemoryIndex implements lexical.Index
var _ lexical.Index = (*MemoryIndex)(nil)

// Add indexes the chunk text. Re-adding an existing ID replaces its previous
// postings.
func (idx *MemoryIndex) Add(id model.ChunkID, t string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.docLengths[id]; ok {
		idx.deleteLocked(id)
	}

	terms := text.Terms(t)
	length := len(terms)

	idx.docLengths[id] = length
	idx.totalLength += int64(length)
	idx.docCount++

	tf := make(map[string]int, length)
	for _, term := range terms {
		tf[term]++
	}

	for term, count := range tf {
		idx.inverted[term] = append(idx.inverted[term], posting{id: id, count: count})
	}

	return nil
}

// Delete removes a chunk from the index. Deleting an unknown ID is a no-op.
func (idx *MemoryIndex) Delete(id model.ChunkID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.deleteLocked(id)
}

func (idx *MemoryIndex) deleteLocked(id model.ChunkID) error {
	length, ok := idx.docLengths[id]
	if !ok {
		return nil
	}

	// O(terms * postings); acceptable for an in-memory reference index.
	for term := range idx.inverted {
		postings := idx.inverted[term]
		for i, p := range postings {
			if p.id == id {
				idx.inverted[term] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
		if len(idx.inverted[term]) == 0 {
			delete(idx.inverted, term)
		}
	}

	delete(idx.docLengths, id)
	idx.totalLength -= int64(length)
	idx.docCount--
	return nil
}

// Search scores the query terms with BM25 and returns up to k hits ordered by
// descending score, ties broken by ascending chunk ID.
func (idx *MemoryIndex) Search(query string, k int) ([]model.Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := text.Terms(query)
	if len(terms) == 0 || idx.docCount == 0 || k <= 0 {
		return nil, nil
	}

	avgDL := float64(idx.totalLength) / float64(idx.docCount)
	scores := make(map[model.ChunkID]float32)

	for _, term := range terms {
		postings, ok := idx.inverted[term]
		if !ok {
			continue
		}

		idf := idx.computeIDF(len(postings))

		for _, p := range postings {
			tf := float64(p.count)
			docLen := float64(idx.docLengths[p.id])

			// BM25: idf * tf*(k1+1) / (tf + k1*(1-b+b*docLen/avgDL))
			num := tf * (k1 + 1)
			denom := tf + k1*(1-b+b*(docLen/avgDL))
			scores[p.id] += float32(idf * (num / denom))
		}
	}

	hits := make([]model.Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, model.Hit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (idx *MemoryIndex) computeIDF(df int) float64 {
	// IDF = log(1 + (N - n + 0.5) / (n + 0.5))
	N := float64(idx.docCount)
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

// Close implements lexical.Index.
func (idx *MemoryIndex) Close() error {
	return nil
}
