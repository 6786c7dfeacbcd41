// Package generation defines the capability interface for answer generation.
// The library never talks to a model provider itself; callers plug in a
// Generator and the query pipeline hands it the question plus the assembled
// context.
package generation

import "context"

// Request is the input to a Generator: the user's question and the assembled
// grounding context it should answer from.
type Request struct {
	Query   string
	Context string
}

// Generator produces an answer for a request.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts an ordinary function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
