package corpus

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/vector"
)

// Snapshot is a consistent read view of the corpus, bound to the version
// current at capture time. It hides chunks appended later (ID above the
// captured high-water mark) and keeps chunks tombstoned later visible
// (the tombstone set is cloned at capture).
type Snapshot struct {
	c          *Corpus
	version    uint64
	maxID      model.ChunkID
	tombstones *roaring64.Bitmap
}

// Snapshot captures a read view of the current corpus version.
func (c *Corpus) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Snapshot{
		c:          c,
		version:    c.version,
		maxID:      c.maxID,
		tombstones: c.tombstones.Clone(),
	}
}

// Version returns the corpus version this snapshot is bound to.
func (s *Snapshot) Version() uint64 { return s.version }

// Alive reports whether the chunk is visible in this snapshot.
func (s *Snapshot) Alive(id model.ChunkID) bool {
	if id > s.maxID || s.tombstones.Contains(uint64(id)) {
		return false
	}
	s.c.mu.RLock()
	_, ok := s.c.chunks[id]
	s.c.mu.RUnlock()
	return ok
}

// Chunk resolves a chunk visible in this snapshot.
func (s *Snapshot) Chunk(id model.ChunkID) (model.Chunk, bool) {
	if id > s.maxID || s.tombstones.Contains(uint64(id)) {
		return model.Chunk{}, false
	}
	s.c.mu.RLock()
	chunk, ok := s.c.chunks[id]
	s.c.mu.RUnlock()
	return chunk, ok
}

// SearchLexical runs a lexical search against the snapshot. Hits from newer
// versions or tombstoned chunks are filtered out; the index is over-queried
// to compensate.
func (s *Snapshot) SearchLexical(query string, k int) ([]model.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	raw, err := s.c.lex.Search(query, k+s.slack())
	if err != nil {
		return nil, err
	}
	return s.filterHits(raw, k), nil
}

// SearchVector runs a vector search against the snapshot. EF is the
// approximate-search recall knob; 0 uses the index default.
func (s *Snapshot) SearchVector(query []float32, k, ef int) ([]model.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	raw, err := s.c.vec.Search(query, k+s.slack(), func(o *vector.SearchOptions) {
		o.EF = ef
	})
	if err != nil {
		return nil, err
	}
	return s.filterHits(raw, k), nil
}

// slack widens index fan-out so that snapshot filtering still yields k hits
// in the common case.
func (s *Snapshot) slack() int {
	n := int(s.tombstones.GetCardinality())
	if n > 64 {
		n = 64
	}
	return n + 16
}

func (s *Snapshot) filterHits(raw []model.Hit, k int) []model.Hit {
	hits := make([]model.Hit, 0, min(len(raw), k))
	for _, h := range raw {
		if !s.Alive(h.ID) {
			continue
		}
		hits = append(hits, h)
		if len(hits) == k {
			break
		}
	}
	return hits
}

// FilterBitmap resolves the collection/doctype criteria of the filters to a
// chunk-ID bitmap, or nil when the filters impose no bitmap-resolvable
// restriction. Date and score criteria are attribute checks and are not part
// of the bitmap.
func (s *Snapshot) FilterBitmap(f model.Filters) *roaring64.Bitmap {
	if len(f.Collections) == 0 && len(f.DocTypes) == 0 {
		return nil
	}

	s.c.mu.RLock()
	defer s.c.mu.RUnlock()

	var result *roaring64.Bitmap
	if len(f.Collections) > 0 {
		result = unionOf(s.c.collections, f.Collections)
	}
	if len(f.DocTypes) > 0 {
		types := unionOf(s.c.docTypes, f.DocTypes)
		if result == nil {
			result = types
		} else {
			result.And(types)
		}
	}
	return result
}

func unionOf(m map[string]*roaring64.Bitmap, keys []string) *roaring64.Bitmap {
	result := roaring64.New()
	for _, key := range keys {
		if bm, ok := m[key]; ok {
			result.Or(bm)
		}
	}
	return result
}
