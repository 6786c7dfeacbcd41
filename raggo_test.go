package raggo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/raggo/blobstore"
	"github.com/hupe1980/raggo/embedding"
	"github.com/hupe1980/raggo/generation"
	"github.com/hupe1980/raggo/lexical"
	"github.com/hupe1980/raggo/lexical/bm25"
	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/rerank"
)

// testEmbedder maps query text onto the axis of the matching topic so exact
// vector search retrieves the intended chunk.
var testEmbedder = embedding.Func(func(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "terminat"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(lower, "deposit"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
})

func testChunks() []model.Chunk {
	return []model.Chunk{
		{
			ID:         1,
			DocumentID: "contract-12",
			Text:       "Either party may terminate this agreement with 30 days written notice to the other party.",
			Range:      model.CharRange{Start: 0, End: 90},
			Page:       4,
			TokenCount: 16,
			Embedding:  []float32{1, 0, 0},
			Collection: "contracts",
			DocType:    "pdf",
		},
		{
			ID:         2,
			DocumentID: "contract-12",
			Text:       "The security deposit equals two months of rent and is refundable at move-out.",
			Range:      model.CharRange{Start: 100, End: 178},
			Page:       5,
			TokenCount: 14,
			Embedding:  []float32{0, 1, 0},
			Collection: "contracts",
			DocType:    "pdf",
		},
		{
			ID:         3,
			DocumentID: "memo-1",
			Text:       "Lunch options near the office now include three new restaurants.",
			Range:      model.CharRange{Start: 0, End: 64},
			TokenCount: 10,
			Embedding:  []float32{0, 0, 1},
			Collection: "memos",
			DocType:    "txt",
		},
	}
}

func newTestEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()

	opts := append([]Option{
		WithExactSearch(),
		WithEmbedder(testEmbedder),
	}, optFns...)

	engine, err := New(3, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	require.NoError(t, engine.IndexChunks(context.Background(), testChunks()))
	return engine
}

func TestQuery_EndToEnd(t *testing.T) {
	gen := generation.Func(func(_ context.Context, req generation.Request) (string, error) {
		assert.Contains(t, req.Context, "terminate this agreement")
		return "The agreement can be terminated with 30 days written notice.", nil
	})
	engine := newTestEngine(t, WithGenerator(gen))

	resp, err := engine.Query("What is the termination notice period?").Execute(context.Background())
	require.NoError(t, err)

	assert.False(t, resp.NoCandidates)
	assert.NotEmpty(t, resp.AnswerText)
	require.NotEmpty(t, resp.Citations)

	c := resp.Citations[0]
	assert.Equal(t, model.ChunkID(1), c.ChunkID)
	assert.True(t, c.Verified)
	assert.GreaterOrEqual(t, resp.Confidence, 0.72)

	assert.NotEmpty(t, resp.Diagnostics.QueryID)
	stages := make([]Stage, 0, len(resp.Diagnostics.Stages))
	for _, s := range resp.Diagnostics.Stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []Stage{
		StageReceived, StageRetrieving, StageMerging, StageReranking,
		StageAssemblingContext, StageAwaitingGeneration, StageVerifying,
	}, stages)
}

func TestQuery_ContextOnlyWithoutGenerator(t *testing.T) {
	engine := newTestEngine(t)

	resp, err := engine.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)

	assert.Empty(t, resp.AnswerText)
	assert.Empty(t, resp.Citations)
	require.False(t, resp.ContextWindow.Empty())
	assert.Equal(t, model.ChunkID(1), resp.ContextWindow.Chunks[0].ID)
}

func TestQuery_NoCandidatesIsNotAnError(t *testing.T) {
	engine, err := New(3, WithExactSearch())
	require.NoError(t, err)
	defer engine.Close()

	resp, err := engine.Query("anything at all").Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.NoCandidates)
	assert.Empty(t, resp.AnswerText)
	assert.True(t, resp.ContextWindow.Empty())
}

func TestQuery_EmptyText(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Query("").Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, CodeInvalidQuery, qerr.Code)
}

func TestQuery_CollectionFilter(t *testing.T) {
	engine := newTestEngine(t)

	resp, err := engine.Query("office restaurants").
		Collections("contracts").
		Execute(context.Background())
	require.NoError(t, err)

	for _, c := range resp.ContextWindow.Chunks {
		assert.Equal(t, "contracts", c.Collection)
	}
}

func TestQuery_LexicalOnlyWithoutEmbedder(t *testing.T) {
	engine, err := New(3, WithExactSearch())
	require.NoError(t, err)
	defer engine.Close()
	require.NoError(t, engine.IndexChunks(context.Background(), testChunks()))

	resp, err := engine.Query("termination notice period").Verbose().Execute(context.Background())
	require.NoError(t, err)

	require.False(t, resp.ContextWindow.Empty())
	assert.Equal(t, model.ChunkID(1), resp.ContextWindow.Chunks[0].ID)
	assert.Empty(t, resp.Diagnostics.VectorHits)
	assert.False(t, resp.Diagnostics.VectorDegraded)
}

// failingLexical simulates a broken lexical index.
type failingLexical struct{ lexical.Index }

func (failingLexical) Search(string, int) ([]model.Hit, error) {
	return nil, errors.New("index corrupted")
}

func TestQuery_SingleSignalDegrade(t *testing.T) {
	engine, err := New(3,
		WithExactSearch(),
		WithEmbedder(testEmbedder),
		WithLexicalIndex(failingLexical{Index: bm25.New()}),
	)
	require.NoError(t, err)
	defer engine.Close()
	require.NoError(t, engine.IndexChunks(context.Background(), testChunks()))

	resp, err := engine.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, resp.Diagnostics.LexicalDegraded)
	assert.False(t, resp.Diagnostics.VectorDegraded)
	require.False(t, resp.ContextWindow.Empty())
	assert.Equal(t, model.ChunkID(1), resp.ContextWindow.Chunks[0].ID)
}

func TestQuery_BothSignalsUnavailable(t *testing.T) {
	engine, err := New(3,
		WithExactSearch(),
		WithLexicalIndex(failingLexical{Index: bm25.New()}),
	)
	require.NoError(t, err)
	defer engine.Close()
	require.NoError(t, engine.IndexChunks(context.Background(), testChunks()))

	_, err = engine.Query("termination notice").Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, CodeIndexUnavailable, qerr.Code)
	assert.Equal(t, StageRetrieving, qerr.Stage)
}

// failingReranker simulates a reranking model outage.
type failingReranker struct{}

func (failingReranker) Rerank(context.Context, string, []rerank.Candidate) ([]rerank.Result, error) {
	return nil, errors.New("model unavailable")
}

func (failingReranker) Name() string { return "failing" }

func TestQuery_RerankFallbackKeepsFusedOrder(t *testing.T) {
	baseline := newTestEngine(t)
	degraded := newTestEngine(t, WithReranker(failingReranker{}))

	want, err := baseline.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)
	got, err := degraded.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, got.Diagnostics.RerankDegraded)
	require.Len(t, got.ContextWindow.Chunks, len(want.ContextWindow.Chunks))
	for i := range want.ContextWindow.Chunks {
		assert.Equal(t, want.ContextWindow.Chunks[i].ID, got.ContextWindow.Chunks[i].ID)
	}
}

// stalledReranker simulates a reranking model that never answers.
type stalledReranker struct{}

func (stalledReranker) Rerank(ctx context.Context, _ string, _ []rerank.Candidate) ([]rerank.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledReranker) Name() string { return "stalled" }

func TestQuery_RerankTimeoutFallsBackToFusedOrder(t *testing.T) {
	baseline := newTestEngine(t)
	degraded := newTestEngine(t,
		WithReranker(stalledReranker{}),
		WithRerankTimeout(50*time.Millisecond),
	)

	want, err := baseline.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)

	start := time.Now()
	got, err := degraded.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, got.Diagnostics.RerankDegraded)
	require.Len(t, got.ContextWindow.Chunks, len(want.ContextWindow.Chunks))
	for i := range want.ContextWindow.Chunks {
		assert.Equal(t, want.ContextWindow.Chunks[i].ID, got.ContextWindow.Chunks[i].ID)
	}
}

func TestQuery_RerankerReorders(t *testing.T) {
	engine := newTestEngine(t, WithReranker(rerank.TermOverlap{}))

	resp, err := engine.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)
	require.False(t, resp.ContextWindow.Empty())
	assert.Equal(t, model.ChunkID(1), resp.ContextWindow.Chunks[0].ID)
	assert.False(t, resp.Diagnostics.RerankDegraded)
}

func TestQuery_GenerationFailure(t *testing.T) {
	gen := generation.Func(func(context.Context, generation.Request) (string, error) {
		return "", errors.New("provider returned 400")
	})
	engine := newTestEngine(t, WithGenerator(gen))

	_, err := engine.Query("termination notice").Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailure)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, CodeGenerationFailure, qerr.Code)
	assert.Equal(t, StageAwaitingGeneration, qerr.Stage)
}

func TestQuery_Canceled(t *testing.T) {
	engine := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Query("termination notice").Execute(ctx)
	require.Error(t, err)

	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, CodeCanceled, qerr.Code)
}

func TestQuery_SnapshotIsolation(t *testing.T) {
	engine := newTestEngine(t)

	resp, err := engine.Query("termination notice").Verbose().Execute(context.Background())
	require.NoError(t, err)
	before := resp.Diagnostics.CorpusVersion

	_, err = engine.DeleteDocument(context.Background(), "contract-12")
	require.NoError(t, err)

	resp, err = engine.Query("termination notice").Verbose().Execute(context.Background())
	require.NoError(t, err)
	assert.Greater(t, resp.Diagnostics.CorpusVersion, before)
	for _, c := range resp.ContextWindow.Chunks {
		assert.NotEqual(t, model.DocumentID("contract-12"), c.DocumentID)
	}
}

func TestEngine_Closed(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.Close())

	assert.ErrorIs(t, engine.IndexChunks(context.Background(), testChunks()), ErrClosed)
	assert.ErrorIs(t, engine.DeleteChunk(context.Background(), 1), ErrClosed)

	_, err := engine.Query("anything").Execute(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	assert.NoError(t, engine.Close())
}

func TestEngine_SnapshotThroughBlobstore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	engine := newTestEngine(t)
	require.NoError(t, engine.SaveSnapshot(ctx, store, "snapshots/v1"))

	restored, err := New(3, WithExactSearch(), WithEmbedder(testEmbedder))
	require.NoError(t, err)
	defer restored.Close()
	require.NoError(t, restored.LoadSnapshot(ctx, store, "snapshots/v1"))

	assert.Equal(t, engine.Stats(), restored.Stats())

	resp, err := restored.Query("termination notice").Execute(ctx)
	require.NoError(t, err)
	require.False(t, resp.ContextWindow.Empty())
	assert.Equal(t, model.ChunkID(1), resp.ContextWindow.Chunks[0].ID)
}

func TestEngine_BasicMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	engine := newTestEngine(t, WithMetricsCollector(metrics))

	_, err := engine.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(0), stats.QueryErrors)
	assert.Greater(t, stats.StageCount, int64(0))
	assert.Equal(t, int64(1), stats.IndexBatchCount)
	assert.Equal(t, int64(3), stats.IndexChunkCount)
}

func TestQuery_VerboseDiagnostics(t *testing.T) {
	engine := newTestEngine(t)

	resp, err := engine.Query("termination notice").Verbose().Execute(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Diagnostics.LexicalHits)
	assert.NotEmpty(t, resp.Diagnostics.Candidates)
	assert.NotEmpty(t, resp.Diagnostics.Context)

	resp, err = engine.Query("termination notice").Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resp.Diagnostics.Candidates)
	assert.Empty(t, resp.Diagnostics.Context)
}
