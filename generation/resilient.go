package generation

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrTransient marks a generation failure as retryable. Generators wrap
// provider errors with it (`fmt.Errorf("...: %w", generation.ErrTransient)`)
// when a retry could plausibly succeed, e.g. rate limits or 5xx responses.
var ErrTransient = errors.New("transient generation failure")

// Options configures a Resilient generator.
type Options struct {
	// Timeout bounds each attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// Limiter throttles calls to the underlying generator. Nil disables
	// rate limiting.
	Limiter *rate.Limiter
}

// DefaultOptions retry a transient failure once and leave timeouts to the
// caller's context.
var DefaultOptions = Options{
	Retries: 1,
}

// Resilient wraps a Generator with a per-attempt timeout, optional rate
// limiting, and a retry policy for transient failures. Non-transient errors
// are returned immediately.
type Resilient struct {
	next Generator
	opts Options
}

// NewResilient creates a new Resilient wrapper around next.
func NewResilient(next Generator, optFns ...func(o *Options)) *Resilient {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Resilient{next: next, opts: opts}
}

// Generate implements Generator.
func (r *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.opts.Retries; attempt++ {
		if r.opts.Limiter != nil {
			if err := r.opts.Limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		answer, err := r.attempt(ctx, req)
		if err == nil {
			return answer, nil
		}
		if !errors.Is(err, ErrTransient) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (r *Resilient) attempt(ctx context.Context, req Request) (string, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	return r.next.Generate(ctx, req)
}
