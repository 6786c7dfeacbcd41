// Package raggo provides an embedded retrieval-and-grounding engine for
// document question answering.
//
// Raggo sits between document ingestion and answer generation: it combines
// lexical (BM25) and vector similarity retrieval, fuses and optionally
// reranks the candidates, assembles a token-bounded context window, and maps
// the generated answer back onto literal source spans so every claim carries
// a verifiable citation.
//
// # Quick Start
//
//	ctx := context.Background()
//	engine, err := raggo.New(384,
//	    raggo.WithEmbedder(myEmbedder),
//	    raggo.WithGenerator(myGenerator),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer engine.Close()
//
//	if err := engine.IndexChunks(ctx, chunks); err != nil {
//	    panic(err)
//	}
//
//	resp, err := engine.Query("What is the termination notice period?").
//	    Collections("contracts").
//	    TopK(20).
//	    Execute(ctx)
//
// Each response carries the answer text, its citations (verified or
// explicitly unverified), a confidence score, and per-stage latency
// diagnostics.
//
// # Consistency
//
// Ingestion and queries share one corpus: queries bind to a versioned
// snapshot at start, so an ingestion publishing the next version never
// disturbs a query in flight. Deletes are tombstones and chunk IDs are never
// reused.
//
// # Pluggable capabilities
//
// Embedding, generation, and reranking are capability interfaces. The engine
// never calls a model provider itself; reranking is optional and degrades to
// the fused ordering on failure or timeout.
package raggo
