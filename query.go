package raggo

import (
	"context"
	"time"

	"github.com/hupe1980/raggo/assemble"
	"github.com/hupe1980/raggo/fusion"
	"github.com/hupe1980/raggo/model"
)

// Query creates a fluent query builder for the given question text.
//
// Example:
//
//	resp, err := engine.Query("What is the termination notice period?").
//	    Collections("contracts").
//	    TopK(20).
//	    MinScore(0.1).
//	    Execute(ctx)
func (e *Engine) Query(text string) *QueryBuilder {
	return &QueryBuilder{
		engine: e,
		req: request{
			text:        text,
			topK:        e.opts.retrievalTopK,
			vectorEF:    e.opts.vectorEF,
			rerankDepth: e.opts.rerankDepth,
			// Engine-level tuning applies first; builder overrides append
			// after it.
			fusionOptions:   e.opts.fusionOptions,
			assembleOptions: e.opts.assembleOptions,
			verbose:         e.opts.verboseDiagnostics,
		},
	}
}

// QueryBuilder is a fluent builder for constructing queries.
type QueryBuilder struct {
	engine *Engine
	req    request
}

// Filters replaces the full filter set of the query.
func (qb *QueryBuilder) Filters(f model.Filters) *QueryBuilder {
	qb.req.filters = f
	return qb
}

// Collections restricts retrieval to chunks of the given collections.
func (qb *QueryBuilder) Collections(names ...string) *QueryBuilder {
	qb.req.filters.Collections = names
	return qb
}

// DocTypes restricts retrieval to chunks of the given document types.
func (qb *QueryBuilder) DocTypes(types ...string) *QueryBuilder {
	qb.req.filters.DocTypes = types
	return qb
}

// After keeps only chunks created at or after t.
func (qb *QueryBuilder) After(t time.Time) *QueryBuilder {
	qb.req.filters.After = t
	return qb
}

// Before keeps only chunks created before t.
func (qb *QueryBuilder) Before(t time.Time) *QueryBuilder {
	qb.req.filters.Before = t
	return qb
}

// MinScore drops candidates scoring below the threshold before context
// assembly. Filtered candidates never count against the token budget.
func (qb *QueryBuilder) MinScore(score float32) *QueryBuilder {
	qb.req.filters.MinScore = score
	return qb
}

// TopK sets how many hits each retrieval signal contributes before fusion.
func (qb *QueryBuilder) TopK(k int) *QueryBuilder {
	qb.req.topK = k
	return qb
}

// EF overrides the HNSW exploration factor for this query. Higher values
// improve recall but slow down search.
func (qb *QueryBuilder) EF(ef int) *QueryBuilder {
	qb.req.vectorEF = ef
	return qb
}

// Alpha overrides the fusion weight of the vector signal for this query.
func (qb *QueryBuilder) Alpha(alpha float64) *QueryBuilder {
	qb.req.fusionOptions = append(qb.req.fusionOptions, func(o *fusion.Options) {
		o.Alpha = alpha
	})
	return qb
}

// TokenBudget overrides the context window token budget for this query.
func (qb *QueryBuilder) TokenBudget(budget int) *QueryBuilder {
	qb.req.assembleOptions = append(qb.req.assembleOptions, func(o *assemble.Options) {
		o.Budget = budget
	})
	return qb
}

// ByLocality orders the context window by document/page locality instead of
// score. Useful for generation quality on multi-page answers.
func (qb *QueryBuilder) ByLocality() *QueryBuilder {
	qb.req.assembleOptions = append(qb.req.assembleOptions, func(o *assemble.Options) {
		o.Ordering = assemble.ByLocality
	})
	return qb
}

// Verbose includes raw hit and candidate lists in the response diagnostics.
func (qb *QueryBuilder) Verbose() *QueryBuilder {
	qb.req.verbose = true
	return qb
}

// Execute runs the query pipeline and returns the response.
func (qb *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	e := qb.engine
	if e.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	resp, err := e.newPipeline(qb.req).run(ctx)
	elapsed := time.Since(start)

	e.metrics.RecordQuery(elapsed, err)
	if err != nil {
		e.logger.LogQuery(ctx, 0, 0, elapsed, err)
		return nil, err
	}
	e.logger.LogQuery(ctx, len(resp.ContextWindow.Chunks), len(resp.Citations), elapsed, nil)
	return resp, nil
}

// MustExecute runs the query, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (qb *QueryBuilder) MustExecute(ctx context.Context) *Response {
	resp, err := qb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return resp
}
