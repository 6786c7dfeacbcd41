package raggo

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/hupe1980/raggo/blobstore"
	"github.com/hupe1980/raggo/citation"
	"github.com/hupe1980/raggo/corpus"
	"github.com/hupe1980/raggo/generation"
	"github.com/hupe1980/raggo/lexical/bm25"
	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/snapshot"
	"github.com/hupe1980/raggo/vector/flat"
	"github.com/hupe1980/raggo/vector/hnsw"
)

// Engine is the retrieval-and-grounding engine: a shared corpus with lexical
// and vector indexes, queried through a staged pipeline that produces
// answers with verifiable citations.
//
// The engine is safe for concurrent use. Queries bind to a consistent corpus
// snapshot at start; ingestion never disturbs queries in flight.
type Engine struct {
	corpus    *corpus.Corpus
	extractor *citation.Extractor
	generator generation.Generator
	opts      options
	metrics   MetricsCollector
	logger    *Logger
	closed    atomic.Bool
}

// New creates an engine for embeddings of the given dimension.
//
// By default the engine indexes text in an in-memory BM25 index and
// embeddings in an HNSW graph with cosine similarity; both are replaceable
// via options. Embedding, generation, and reranking capabilities are
// configured via WithEmbedder, WithGenerator, and WithReranker.
func New(dimension int, optFns ...Option) (*Engine, error) {
	opts := applyOptions(optFns)

	lex := opts.lexicalIndex
	if lex == nil {
		lex = bm25.New()
	}

	vec := opts.vectorIndex
	if vec == nil {
		var err error
		if opts.exactSearch {
			vec, err = flat.New(dimension, func(o *flat.Options) {
				o.Similarity = opts.similarity
			})
		} else {
			hnswOpts := append([]func(*hnsw.Options){func(o *hnsw.Options) {
				o.Similarity = opts.similarity
			}}, opts.hnswOptions...)
			vec, err = hnsw.New(dimension, hnswOpts...)
		}
		if err != nil {
			return nil, fmt.Errorf("create vector index: %w", err)
		}
	} else if vec.Dimension() != dimension {
		return nil, fmt.Errorf("vector index dimension %d, engine expects %d", vec.Dimension(), dimension)
	}

	var gen generation.Generator
	if opts.generator != nil {
		gen = generation.NewResilient(opts.generator, func(o *generation.Options) {
			o.Timeout = opts.generationTimeout
			o.Retries = opts.generationRetries
			o.Limiter = opts.generationLimiter
		})
	}

	return &Engine{
		corpus:    corpus.New(lex, vec),
		extractor: citation.New(opts.citationOptions...),
		generator: gen,
		opts:      opts,
		metrics:   opts.metricsCollector,
		logger:    opts.logger,
	}, nil
}

// IndexChunks appends a batch of chunks to the corpus and both indexes.
// Chunk IDs must be fresh: the identifier space is append-only and IDs are
// never reused, even after deletion. The batch is validated as a whole
// before any chunk is indexed.
func (e *Engine) IndexChunks(ctx context.Context, chunks []model.Chunk) error {
	if e.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	err := e.corpus.Append(chunks)
	e.metrics.RecordIndexChunks(len(chunks), time.Since(start), err)
	e.logger.LogIndexChunks(ctx, len(chunks), err)
	return err
}

// DeleteChunk tombstones a single chunk. In-flight queries bound to earlier
// snapshots keep seeing it. Unknown IDs are a no-op.
func (e *Engine) DeleteChunk(ctx context.Context, id model.ChunkID) error {
	if e.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	err := e.corpus.DeleteChunk(id)
	e.metrics.RecordDelete(time.Since(start), err)
	e.logger.LogDelete(ctx, fmt.Sprintf("chunk %d", id), 1, err)
	return err
}

// DeleteDocument tombstones every chunk of the document and returns how many
// chunks were affected.
func (e *Engine) DeleteDocument(ctx context.Context, docID model.DocumentID) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}

	start := time.Now()
	affected, err := e.corpus.DeleteDocument(docID)
	e.metrics.RecordDelete(time.Since(start), err)
	e.logger.LogDelete(ctx, fmt.Sprintf("document %s", docID), affected, err)
	return affected, err
}

// Stats returns a point-in-time view of corpus counters.
func (e *Engine) Stats() corpus.Stats {
	return e.corpus.Stats()
}

// WriteSnapshot writes the corpus state to w in the self-describing snapshot
// format.
func (e *Engine) WriteSnapshot(ctx context.Context, w io.Writer, optFns ...func(o *snapshot.Options)) error {
	if e.closed.Load() {
		return ErrClosed
	}

	err := snapshot.Save(w, e.corpus.State(), optFns...)
	e.logger.LogSnapshot(ctx, "write", "", err)
	return err
}

// ReadSnapshot loads a snapshot into the engine. The corpus must be empty.
func (e *Engine) ReadSnapshot(ctx context.Context, r io.Reader) error {
	if e.closed.Load() {
		return ErrClosed
	}

	st, err := snapshot.Load(r)
	if err == nil {
		err = e.corpus.Restore(st)
	}
	e.logger.LogSnapshot(ctx, "read", "", err)
	return err
}

// SaveSnapshot writes the corpus state to a blobstore under the given name.
func (e *Engine) SaveSnapshot(ctx context.Context, store blobstore.Store, name string, optFns ...func(o *snapshot.Options)) error {
	if e.closed.Load() {
		return ErrClosed
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(snapshot.Save(pw, e.corpus.State(), optFns...))
	}()

	err := store.Put(ctx, name, pr)
	if err != nil {
		// Surface the encode error over the transport error when both fail.
		pr.CloseWithError(err)
	}
	e.logger.LogSnapshot(ctx, "save", name, err)
	return err
}

// LoadSnapshot reads a named snapshot from a blobstore into the engine.
// The corpus must be empty.
func (e *Engine) LoadSnapshot(ctx context.Context, store blobstore.Store, name string) error {
	if e.closed.Load() {
		return ErrClosed
	}

	r, err := store.Open(ctx, name)
	if err == nil {
		defer r.Close()
		var st *corpus.State
		if st, err = snapshot.Load(r); err == nil {
			err = e.corpus.Restore(st)
		}
	}
	e.logger.LogSnapshot(ctx, "load", name, err)
	return err
}

// Close releases the engine. Further operations return ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.corpus.Close()
}
