// Package embedding defines the capability interface for turning text into
// vectors. The library never calls a model provider itself; callers plug in
// whatever client they use.
package embedding

import "context"

// Embedder produces a vector representation of text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText embeds a single piece of text.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Func adapts an ordinary function to the Embedder interface.
type Func func(ctx context.Context, text string) ([]float32, error)

// EmbedText implements Embedder.
func (f Func) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
