package raggo

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/raggo/assemble"
	"github.com/hupe1980/raggo/citation"
	"github.com/hupe1980/raggo/embedding"
	"github.com/hupe1980/raggo/fusion"
	"github.com/hupe1980/raggo/generation"
	"github.com/hupe1980/raggo/lexical"
	"github.com/hupe1980/raggo/metric"
	"github.com/hupe1980/raggo/rerank"
	"github.com/hupe1980/raggo/vector"
	"github.com/hupe1980/raggo/vector/hnsw"
)

type options struct {
	lexicalIndex lexical.Index
	vectorIndex  vector.Index
	similarity   metric.Similarity
	exactSearch  bool
	hnswOptions  []func(*hnsw.Options)

	embedder  embedding.Embedder
	generator generation.Generator
	reranker  rerank.Reranker

	fusionOptions   []func(*fusion.Options)
	assembleOptions []func(*assemble.Options)
	citationOptions []func(*citation.Options)

	retrievalTopK int
	rerankDepth   int
	vectorEF      int

	retrievalTimeout  time.Duration
	rerankTimeout     time.Duration
	generationTimeout time.Duration
	queryTimeout      time.Duration

	generationRetries int
	generationLimiter *rate.Limiter

	verboseDiagnostics bool
	metricsCollector   MetricsCollector
	logger             *Logger
}

// Option configures Engine constructor behavior.
type Option func(*options)

// WithLexicalIndex replaces the default in-memory BM25 index.
func WithLexicalIndex(idx lexical.Index) Option {
	return func(o *options) {
		o.lexicalIndex = idx
	}
}

// WithVectorIndex replaces the default HNSW index entirely, e.g. with a
// custom adapter. The index dimension must match the engine dimension.
func WithVectorIndex(idx vector.Index) Option {
	return func(o *options) {
		o.vectorIndex = idx
	}
}

// WithSimilarity sets the similarity measure of the default vector index.
// Use metric.Dot only with pre-normalized embeddings.
func WithSimilarity(sim metric.Similarity) Option {
	return func(o *options) {
		o.similarity = sim
	}
}

// WithExactSearch uses a brute-force flat vector index instead of HNSW.
// Exact search guarantees full recall; prefer it below ~100K chunks.
func WithExactSearch() Option {
	return func(o *options) {
		o.exactSearch = true
	}
}

// WithHNSWOptions tunes the default HNSW index (M, EF, heuristic).
func WithHNSWOptions(optFns ...func(*hnsw.Options)) Option {
	return func(o *options) {
		o.hnswOptions = append(o.hnswOptions, optFns...)
	}
}

// WithEmbedder sets the capability that turns query text into a query
// embedding. Without an embedder, retrieval is lexical-only.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithGenerator sets the answer generation capability. Without a generator,
// queries return the assembled context with an empty answer.
func WithGenerator(g generation.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithReranker sets the second-pass relevance scorer. Reranking is optional:
// on failure or timeout the fused ordering is used.
func WithReranker(r rerank.Reranker) Option {
	return func(o *options) {
		o.reranker = r
	}
}

// WithFusionAlpha weights the vector signal in score fusion; 1-alpha weights
// the lexical signal. Default 0.5.
func WithFusionAlpha(alpha float64) Option {
	return func(o *options) {
		o.fusionOptions = append(o.fusionOptions, func(fo *fusion.Options) {
			fo.Alpha = alpha
		})
	}
}

// WithFusionOptions tunes score fusion (normalization, fan-out).
func WithFusionOptions(optFns ...func(*fusion.Options)) Option {
	return func(o *options) {
		o.fusionOptions = append(o.fusionOptions, optFns...)
	}
}

// WithTokenBudget sets the maximum total token count of the context window.
func WithTokenBudget(budget int) Option {
	return func(o *options) {
		o.assembleOptions = append(o.assembleOptions, func(ao *assemble.Options) {
			ao.Budget = budget
		})
	}
}

// WithContextOrdering selects score or locality ordering for the assembled
// context window.
func WithContextOrdering(ordering assemble.Ordering) Option {
	return func(o *options) {
		o.assembleOptions = append(o.assembleOptions, func(ao *assemble.Options) {
			ao.Ordering = ordering
		})
	}
}

// WithAssembleOptions tunes context assembly beyond budget and ordering.
func WithAssembleOptions(optFns ...func(*assemble.Options)) Option {
	return func(o *options) {
		o.assembleOptions = append(o.assembleOptions, optFns...)
	}
}

// WithGroundingThreshold sets the minimum citation confidence for a claim to
// count as verified. Below it, citations are kept but marked unverified.
func WithGroundingThreshold(threshold float64) Option {
	return func(o *options) {
		o.citationOptions = append(o.citationOptions, func(co *citation.Options) {
			co.GroundingThreshold = threshold
		})
	}
}

// WithCitationOptions tunes citation extraction.
func WithCitationOptions(optFns ...func(*citation.Options)) Option {
	return func(o *options) {
		o.citationOptions = append(o.citationOptions, optFns...)
	}
}

// WithRetrievalTopK sets how many hits each signal contributes before
// fusion.
func WithRetrievalTopK(k int) Option {
	return func(o *options) {
		o.retrievalTopK = k
	}
}

// WithRerankDepth bounds how many fused candidates are presented to the
// reranker.
func WithRerankDepth(n int) Option {
	return func(o *options) {
		o.rerankDepth = n
	}
}

// WithVectorEF sets the default HNSW exploration factor per query. Larger
// values improve recall at the cost of latency. 0 uses the index default.
func WithVectorEF(ef int) Option {
	return func(o *options) {
		o.vectorEF = ef
	}
}

// WithRetrievalTimeout bounds the parallel lexical+vector retrieval stage.
func WithRetrievalTimeout(d time.Duration) Option {
	return func(o *options) {
		o.retrievalTimeout = d
	}
}

// WithRerankTimeout bounds the reranking stage. On expiry the query falls
// back to the fused ordering instead of failing.
func WithRerankTimeout(d time.Duration) Option {
	return func(o *options) {
		o.rerankTimeout = d
	}
}

// WithGenerationTimeout bounds each generation attempt.
func WithGenerationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.generationTimeout = d
	}
}

// WithQueryTimeout bounds the whole query cumulatively across all stages.
// 0 disables the cumulative budget.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		o.queryTimeout = d
	}
}

// WithGenerationRetries sets how many extra generation attempts follow a
// transient failure. Default 1; malformed-request errors are never retried.
func WithGenerationRetries(n int) Option {
	return func(o *options) {
		o.generationRetries = n
	}
}

// WithGenerationRateLimit throttles calls to the generation capability.
func WithGenerationRateLimit(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.generationLimiter = limiter
	}
}

// WithVerboseDiagnostics includes the raw per-signal hit lists and candidate
// lists in every response. Intended for evaluation tooling; production
// responses stay small without it.
func WithVerboseDiagnostics() Option {
	return func(o *options) {
		o.verboseDiagnostics = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring.
//
// Example with BasicMetricsCollector:
//
//	metrics := &raggo.BasicMetricsCollector{}
//	engine, _ := raggo.New(384, raggo.WithMetricsCollector(metrics))
//	// ... use engine ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := raggo.NewJSONLogger(slog.LevelInfo)
//	engine, _ := raggo.New(384, raggo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		similarity:        metric.Cosine,
		retrievalTopK:     50,
		rerankDepth:       20,
		retrievalTimeout:  5 * time.Second,
		rerankTimeout:     2 * time.Second,
		generationTimeout: 30 * time.Second,
		queryTimeout:      60 * time.Second,
		generationRetries: 1,
		metricsCollector:  NoopMetricsCollector{},
		logger:            NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
