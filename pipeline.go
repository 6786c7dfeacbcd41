package raggo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/raggo/assemble"
	"github.com/hupe1980/raggo/corpus"
	"github.com/hupe1980/raggo/fusion"
	"github.com/hupe1980/raggo/generation"
	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/rerank"
)

// Stage identifies a step of the query pipeline. Every query walks the
// stages in order; Failed is reachable from any non-terminal stage.
type Stage int

const (
	StageReceived Stage = iota
	StageRetrieving
	StageMerging
	StageReranking
	StageAssemblingContext
	StageAwaitingGeneration
	StageVerifying
	StageCompleted
	StageFailed
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageRetrieving:
		return "retrieving"
	case StageMerging:
		return "merging"
	case StageReranking:
		return "reranking"
	case StageAssemblingContext:
		return "assembling_context"
	case StageAwaitingGeneration:
		return "awaiting_generation"
	case StageVerifying:
		return "verifying"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageTiming records the elapsed time of one pipeline stage.
type StageTiming struct {
	Stage   Stage
	Elapsed time.Duration
}

// Diagnostics describes how a response was produced. The raw hit and
// candidate lists are populated only when verbose diagnostics are enabled,
// so production responses stay small.
type Diagnostics struct {
	QueryID       string
	CorpusVersion uint64
	Stages        []StageTiming

	// Degradations that occurred instead of failures.
	LexicalDegraded bool
	VectorDegraded  bool
	RerankDegraded  bool

	Grounded   int
	Unverified int

	// Verbose-only evaluation payloads.
	LexicalHits []model.Hit
	VectorHits  []model.Hit
	Candidates  []model.Candidate
	Context     []model.ContextChunk
}

// Response is the result of a query: the generated answer annotated with
// citations, or an explicit no-relevant-sources outcome.
type Response struct {
	AnswerText string
	Citations  []model.Citation

	// Confidence is the mean confidence across citations, 0 when the
	// answer carries no citations.
	Confidence float64

	// NoCandidates reports that nothing in the corpus matched the query
	// above the configured thresholds. It is a valid outcome, not an
	// error.
	NoCandidates bool

	// ContextWindow is the source context handed to generation.
	ContextWindow model.ContextWindow

	Diagnostics Diagnostics
}

// request is a fully resolved query: text plus per-query overrides collected
// by the builder.
type request struct {
	text    string
	filters model.Filters

	topK        int
	vectorEF    int
	rerankDepth int

	fusionOptions   []func(*fusion.Options)
	assembleOptions []func(*assemble.Options)

	verbose bool
}

// pipeline executes one query as an explicit state machine with one
// transition function per stage. Each transition returns the next stage;
// failures are translated into coded QueryErrors.
type pipeline struct {
	engine *Engine
	view   *corpus.Snapshot
	req    request
	logger *Logger

	lexHits    []model.Hit
	vecHits    []model.Hit
	candidates []model.Candidate
	answer     string

	resp *Response
}

func (e *Engine) newPipeline(req request) *pipeline {
	queryID := uuid.NewString()
	view := e.corpus.Snapshot()
	return &pipeline{
		engine: e,
		view:   view,
		req:    req,
		logger: e.logger.WithQueryID(queryID),
		resp: &Response{
			Diagnostics: Diagnostics{
				QueryID:       queryID,
				CorpusVersion: view.Version(),
			},
		},
	}
}

func (p *pipeline) run(ctx context.Context) (*Response, error) {
	if p.engine.opts.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.engine.opts.queryTimeout)
		defer cancel()
	}

	var failure error
	state := StageReceived
	for state != StageCompleted && state != StageFailed {
		if err := ctx.Err(); err != nil {
			failure = translateError(state, err)
			state = StageFailed
			break
		}

		start := time.Now()
		next, err := p.step(ctx, state)
		elapsed := time.Since(start)

		p.resp.Diagnostics.Stages = append(p.resp.Diagnostics.Stages, StageTiming{Stage: state, Elapsed: elapsed})
		p.engine.metrics.RecordStage(state, elapsed, err)
		p.logger.LogStage(ctx, state, elapsed, err)

		if err != nil {
			failure = translateError(state, err)
			state = StageFailed
			continue
		}
		state = next
	}

	if state == StageFailed {
		return nil, failure
	}
	return p.resp, nil
}

func (p *pipeline) step(ctx context.Context, state Stage) (Stage, error) {
	switch state {
	case StageReceived:
		return p.received()
	case StageRetrieving:
		return p.retrieve(ctx)
	case StageMerging:
		return p.merge()
	case StageReranking:
		return p.rerank(ctx)
	case StageAssemblingContext:
		return p.assembleContext()
	case StageAwaitingGeneration:
		return p.generate(ctx)
	case StageVerifying:
		return p.verify()
	default:
		return StageFailed, fmt.Errorf("no transition from stage %s", state)
	}
}

func (p *pipeline) received() (Stage, error) {
	if p.req.text == "" {
		return StageFailed, ErrEmptyQuery
	}
	return StageRetrieving, nil
}

// retrieve runs the lexical and vector searches concurrently. A failing
// signal degrades to single-signal retrieval; the stage fails only when both
// signals are gone.
func (p *pipeline) retrieve(ctx context.Context) (Stage, error) {
	stageCtx := ctx
	if d := p.engine.opts.retrievalTimeout; d > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var lexErr, vecErr error
	g, gctx := errgroup.WithContext(stageCtx)

	g.Go(func() error {
		hits, err := p.view.SearchLexical(p.req.text, p.req.topK)
		if err != nil {
			lexErr = err
			return nil
		}
		if gctx.Err() != nil {
			lexErr = gctx.Err()
			return nil
		}
		p.lexHits = hits
		return nil
	})

	g.Go(func() error {
		if p.engine.opts.embedder == nil {
			return nil
		}
		embedding, err := p.engine.opts.embedder.EmbedText(gctx, p.req.text)
		if err != nil {
			vecErr = err
			return nil
		}
		hits, err := p.view.SearchVector(embedding, p.req.topK, p.req.vectorEF)
		if err != nil {
			vecErr = err
			return nil
		}
		p.vecHits = hits
		return nil
	})

	// Goroutines report per-signal errors via lexErr/vecErr, never through
	// the group, so one slow signal cannot cancel the other.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return StageFailed, err
	}

	if lexErr != nil {
		p.resp.Diagnostics.LexicalDegraded = true
		p.logger.LogStageDegraded(ctx, StageRetrieving, "lexical signal unavailable", lexErr)
	}
	if vecErr != nil {
		p.resp.Diagnostics.VectorDegraded = true
		p.logger.LogStageDegraded(ctx, StageRetrieving, "vector signal unavailable", vecErr)
	}
	if lexErr != nil && (vecErr != nil || p.engine.opts.embedder == nil) {
		err := lexErr
		if vecErr != nil {
			err = errors.Join(lexErr, vecErr)
		}
		return StageFailed, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	p.applyFilterBitmap()

	if p.req.verbose {
		p.resp.Diagnostics.LexicalHits = p.lexHits
		p.resp.Diagnostics.VectorHits = p.vecHits
	}
	return StageMerging, nil
}

// applyFilterBitmap drops hits outside the collection/doctype restriction
// before fusion, so excluded chunks never influence the ranking.
func (p *pipeline) applyFilterBitmap() {
	bm := p.view.FilterBitmap(p.req.filters)
	if bm == nil {
		return
	}

	keep := func(hits []model.Hit) []model.Hit {
		out := hits[:0]
		for _, h := range hits {
			if bm.Contains(uint64(h.ID)) {
				out = append(out, h)
			}
		}
		return out
	}
	p.lexHits = keep(p.lexHits)
	p.vecHits = keep(p.vecHits)
}

func (p *pipeline) merge() (Stage, error) {
	p.candidates = fusion.Fuse(p.lexHits, p.vecHits, p.req.fusionOptions...)
	if len(p.candidates) == 0 {
		p.resp.NoCandidates = true
		return StageCompleted, nil
	}
	if p.req.verbose {
		p.resp.Diagnostics.Candidates = p.candidates
	}
	return StageReranking, nil
}

// rerank runs the optional second-pass scorer. On failure or stage timeout
// the fused ordering stands; only cancellation of the query context fails
// the query.
func (p *pipeline) rerank(ctx context.Context) (Stage, error) {
	reranker := p.engine.opts.reranker
	if reranker == nil {
		return StageAssemblingContext, nil
	}

	depth := p.req.rerankDepth
	if depth <= 0 || depth > len(p.candidates) {
		depth = len(p.candidates)
	}
	input := make([]rerank.Candidate, 0, depth)
	for _, c := range p.candidates[:depth] {
		chunk, ok := p.view.Chunk(c.ID)
		if !ok {
			continue
		}
		input = append(input, rerank.Candidate{ID: c.ID, Text: chunk.Text, Score: c.FusedScore})
	}

	stageCtx := ctx
	if d := p.engine.opts.rerankTimeout; d > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	results, err := reranker.Rerank(stageCtx, p.req.text, input)
	if err != nil {
		if ctx.Err() != nil {
			return StageFailed, ctx.Err()
		}
		p.resp.Diagnostics.RerankDegraded = true
		p.logger.LogStageDegraded(ctx, StageReranking, "falling back to fused ordering", err)
		return StageAssemblingContext, nil
	}

	scores := make(map[model.ChunkID]float32, len(results))
	for _, r := range results {
		scores[r.ID] = r.Score
	}
	for i := range p.candidates {
		if score, ok := scores[p.candidates[i].ID]; ok {
			p.candidates[i].RerankScore = score
			p.candidates[i].HasRerank = true
		}
	}

	// Reranked candidates order ahead of the unranked tail; the tail keeps
	// its fused order.
	sort.SliceStable(p.candidates, func(i, j int) bool {
		a, b := p.candidates[i], p.candidates[j]
		if a.HasRerank != b.HasRerank {
			return a.HasRerank
		}
		if !a.HasRerank {
			return false
		}
		if a.RerankScore != b.RerankScore {
			return a.RerankScore > b.RerankScore
		}
		return a.ID < b.ID
	})

	if p.req.verbose {
		p.resp.Diagnostics.Candidates = p.candidates
	}
	return StageAssemblingContext, nil
}

func (p *pipeline) assembleContext() (Stage, error) {
	window := assemble.Build(p.candidates, p.view.Chunk, p.req.filters, p.req.assembleOptions...)
	if window.Empty() {
		p.resp.NoCandidates = true
		return StageCompleted, nil
	}

	p.resp.ContextWindow = window
	if p.req.verbose {
		p.resp.Diagnostics.Context = window.Chunks
	}
	return StageAwaitingGeneration, nil
}

func (p *pipeline) generate(ctx context.Context) (Stage, error) {
	if p.engine.generator == nil {
		// No generation capability: the response is the context window.
		return StageCompleted, nil
	}

	answer, err := p.engine.generator.Generate(ctx, generation.Request{
		Query:   p.req.text,
		Context: p.resp.ContextWindow.Text(),
	})
	if err != nil {
		return StageFailed, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	p.answer = answer
	p.resp.AnswerText = answer
	return StageVerifying, nil
}

func (p *pipeline) verify() (Stage, error) {
	citations := p.engine.extractor.Extract(p.answer, p.resp.ContextWindow)
	p.resp.Citations = citations

	total := 0.0
	for _, c := range citations {
		total += float64(c.Confidence)
		if c.Verified {
			p.resp.Diagnostics.Grounded++
		} else {
			p.resp.Diagnostics.Unverified++
		}
	}
	if len(citations) > 0 {
		p.resp.Confidence = total / float64(len(citations))
	}
	return StageCompleted, nil
}
