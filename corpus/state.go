package corpus

import (
	"fmt"
	"sort"

	"github.com/hupe1980/raggo/model"
)

// State is the serializable form of a corpus: the full chunk catalog
// (tombstoned chunks included, so the append-only ID space survives a
// round-trip) plus the tombstone set.
type State struct {
	Version    uint64        `json:"version"`
	MaxChunkID model.ChunkID `json:"max_chunk_id"`
	Chunks     []model.Chunk `json:"chunks"`
	Tombstones []uint64      `json:"tombstones,omitempty"`
}

// State exports the corpus for persistence. Chunks are ordered by ID so the
// output is stable for identical corpora.
func (c *Corpus) State() *State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := &State{
		Version:    c.version,
		MaxChunkID: c.maxID,
		Chunks:     make([]model.Chunk, 0, len(c.chunks)),
		Tombstones: c.tombstones.ToArray(),
	}
	for _, chunk := range c.chunks {
		st.Chunks = append(st.Chunks, chunk)
	}
	sort.Slice(st.Chunks, func(i, j int) bool { return st.Chunks[i].ID < st.Chunks[j].ID })
	return st
}

// Restore loads a previously exported state into an empty corpus, rebuilding
// both indexes from the alive chunks.
func (c *Corpus) Restore(st *State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.chunks) > 0 {
		return fmt.Errorf("restore requires an empty corpus")
	}

	tombstoned := make(map[model.ChunkID]bool, len(st.Tombstones))
	for _, id := range st.Tombstones {
		tombstoned[model.ChunkID(id)] = true
		c.tombstones.Add(id)
	}

	for _, chunk := range st.Chunks {
		c.chunks[chunk.ID] = chunk
		c.byDoc[chunk.DocumentID] = append(c.byDoc[chunk.DocumentID], chunk.ID)
		if chunk.ID > c.maxID {
			c.maxID = chunk.ID
		}
		if tombstoned[chunk.ID] {
			continue
		}

		if err := c.lex.Add(chunk.ID, chunk.Text); err != nil {
			return fmt.Errorf("lexical add %d: %w", chunk.ID, err)
		}
		if len(chunk.Embedding) > 0 {
			if err := c.vec.Add(chunk.ID, chunk.Embedding); err != nil {
				return fmt.Errorf("vector add %d: %w", chunk.ID, err)
			}
		}
		if chunk.Collection != "" {
			c.bitmapFor(c.collections, chunk.Collection).Add(uint64(chunk.ID))
		}
		if chunk.DocType != "" {
			c.bitmapFor(c.docTypes, chunk.DocType).Add(uint64(chunk.ID))
		}
	}

	if st.MaxChunkID > c.maxID {
		c.maxID = st.MaxChunkID
	}
	c.version = st.Version
	return nil
}
