package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedEmbedder waits on a token bucket before each provider call.
// A batch call costs one token, matching one HTTP request upstream.
type rateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// RateLimited wraps next so that calls respect limiter. A nil limiter
// returns next unchanged.
func RateLimited(next Embedder, limiter *rate.Limiter) Embedder {
	if limiter == nil {
		return next
	}
	return &rateLimitedEmbedder{next: next, limiter: limiter}
}

// LimiterFor builds the limiter described by cfg, or nil when limiting is off.
func LimiterFor(cfg *Config) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := max(1, int(cfg.RequestsPerSecond))
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

func (e *rateLimitedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return e.next.EmbedText(ctx, text)
}

func (e *rateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return e.next.EmbedTexts(ctx, texts)
}
