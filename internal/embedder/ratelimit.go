package embedder

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps an Embedder with a token-bucket rate limiter so batch
// ingestion loops cannot exceed the backend's sustainable request rate.
// Each Embed call consumes one token regardless of batch size — backends
// price per request, and the Indexer already batches texts.
type RateLimited struct {
	// inner is the wrapped embedder.
	inner Embedder
	// limiter is the shared token bucket.
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a token bucket of the given sustained rate
// (requests/second) and burst size.
func NewRateLimited(inner Embedder, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed waits for a token, then delegates to the wrapped embedder. The wait
// respects ctx, so a cancelled caller is released immediately.
func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}
