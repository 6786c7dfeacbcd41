// Package corpus owns the shared, read-mostly chunk catalog and the lexical
// and vector indexes built over it.
//
// Queries never read the live structures directly: they bind to a Snapshot,
// a consistent read view captured at query start. Consistency comes from two
// properties of the mutation model:
//
//   - the identifier space is append-only, so a snapshot can hide everything
//     ingested after it by remembering the highest chunk ID it saw
//   - deletions are tombstones, so a snapshot can keep deleted chunks
//     visible by cloning the tombstone set at capture time
//
// An ingestion publishing version N+1 therefore never disturbs a query bound
// to version N. Chunk values themselves are immutable and never mutated in
// place. Tombstoned chunk data is retained so older snapshots stay readable;
// compaction of long-dead chunks is left to a corpus rebuild.
package corpus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/raggo/lexical"
	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/vector"
)

var (
	// ErrChunkIDReused is returned when an append reuses an identifier,
	// including identifiers of tombstoned chunks.
	ErrChunkIDReused = errors.New("chunk id reused")

	// ErrInvalidChunk is returned when a chunk fails validation.
	ErrInvalidChunk = errors.New("invalid chunk")
)

// Corpus is the shared chunk catalog plus its search indexes.
type Corpus struct {
	mu  sync.RWMutex
	lex lexical.Index
	vec vector.Index

	chunks      map[model.ChunkID]model.Chunk
	byDoc       map[model.DocumentID][]model.ChunkID
	collections map[string]*roaring64.Bitmap
	docTypes    map[string]*roaring64.Bitmap
	tombstones  *roaring64.Bitmap

	maxID   model.ChunkID
	version uint64
}

// New creates a corpus over the given indexes.
func New(lex lexical.Index, vec vector.Index) *Corpus {
	return &Corpus{
		lex:         lex,
		vec:         vec,
		chunks:      make(map[model.ChunkID]model.Chunk),
		byDoc:       make(map[model.DocumentID][]model.ChunkID),
		collections: make(map[string]*roaring64.Bitmap),
		docTypes:    make(map[string]*roaring64.Bitmap),
		tombstones:  roaring64.New(),
	}
}

// Append adds chunks to the catalog and both indexes. Each chunk ID must be
// fresh: IDs are never reused, even after deletion. The whole batch is
// validated before any chunk is indexed.
func (c *Corpus) Append(chunks []model.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, chunk := range chunks {
		if err := c.validateLocked(chunk); err != nil {
			return err
		}
	}

	for _, chunk := range chunks {
		if err := c.lex.Add(chunk.ID, chunk.Text); err != nil {
			return fmt.Errorf("lexical add %d: %w", chunk.ID, err)
		}
		if len(chunk.Embedding) > 0 {
			if err := c.vec.Add(chunk.ID, chunk.Embedding); err != nil {
				return fmt.Errorf("vector add %d: %w", chunk.ID, err)
			}
		}

		c.chunks[chunk.ID] = chunk
		c.byDoc[chunk.DocumentID] = append(c.byDoc[chunk.DocumentID], chunk.ID)
		if chunk.Collection != "" {
			c.bitmapFor(c.collections, chunk.Collection).Add(uint64(chunk.ID))
		}
		if chunk.DocType != "" {
			c.bitmapFor(c.docTypes, chunk.DocType).Add(uint64(chunk.ID))
		}
		if chunk.ID > c.maxID {
			c.maxID = chunk.ID
		}
	}

	c.version++
	return nil
}

func (c *Corpus) validateLocked(chunk model.Chunk) error {
	if chunk.ID == 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidChunk)
	}
	if _, exists := c.chunks[chunk.ID]; exists {
		return fmt.Errorf("%w: %d", ErrChunkIDReused, chunk.ID)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: chunk %d has empty text", ErrInvalidChunk, chunk.ID)
	}
	if !chunk.Range.Valid() {
		return fmt.Errorf("%w: chunk %d has invalid range %s", ErrInvalidChunk, chunk.ID, chunk.Range)
	}
	if chunk.TokenCount <= 0 {
		return fmt.Errorf("%w: chunk %d has non-positive token count", ErrInvalidChunk, chunk.ID)
	}
	if len(chunk.Embedding) > 0 && len(chunk.Embedding) != c.vec.Dimension() {
		return fmt.Errorf("%w: chunk %d embedding dimension %d, index expects %d",
			ErrInvalidChunk, chunk.ID, len(chunk.Embedding), c.vec.Dimension())
	}
	return nil
}

// DeleteChunk tombstones a single chunk. Unknown IDs are a no-op.
func (c *Corpus) DeleteChunk(id model.ChunkID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(id)
	return nil
}

// DeleteDocument tombstones every chunk of the document and returns how many
// chunks were affected.
func (c *Corpus) DeleteDocument(docID model.DocumentID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for _, id := range c.byDoc[docID] {
		if c.deleteLocked(id) {
			deleted++
		}
	}
	return deleted, nil
}

func (c *Corpus) deleteLocked(id model.ChunkID) bool {
	if _, ok := c.chunks[id]; !ok {
		return false
	}
	if c.tombstones.Contains(uint64(id)) {
		return false
	}

	// The chunk stays in the catalog and in both indexes so snapshots
	// captured before this delete keep resolving and searching it.
	// Visibility is enforced per snapshot via the cloned tombstone set.
	c.tombstones.Add(uint64(id))
	c.version++
	return true
}

func (c *Corpus) bitmapFor(m map[string]*roaring64.Bitmap, key string) *roaring64.Bitmap {
	bm, ok := m[key]
	if !ok {
		bm = roaring64.New()
		m[key] = bm
	}
	return bm
}

// Stats describes the corpus state.
type Stats struct {
	Version    uint64
	Chunks     int // alive chunks
	Tombstones int
	Documents  int
}

// Stats returns a point-in-time view of corpus counters.
func (c *Corpus) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Version:    c.version,
		Chunks:     len(c.chunks) - int(c.tombstones.GetCardinality()),
		Tombstones: int(c.tombstones.GetCardinality()),
		Documents:  len(c.byDoc),
	}
}

// Close closes both indexes.
func (c *Corpus) Close() error {
	if err := c.lex.Close(); err != nil {
		return err
	}
	return c.vec.Close()
}
