package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{1}, nil
}

func (c *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return make([][]float32, len(texts)), nil
}

func TestRateLimited(t *testing.T) {
	t.Run("nil limiter returns the embedder", func(t *testing.T) {
		inner := &countingEmbedder{}
		assert.Same(t, inner, RateLimited(inner, nil))
	})

	t.Run("calls pass through", func(t *testing.T) {
		inner := &countingEmbedder{}
		e := RateLimited(inner, rate.NewLimiter(rate.Inf, 1))

		_, err := e.EmbedText(context.Background(), "a")
		require.NoError(t, err)
		vecs, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, vecs, 2)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("cancelled context stops before the provider", func(t *testing.T) {
		inner := &countingEmbedder{}
		limiter := rate.NewLimiter(rate.Limit(0.001), 1)
		limiter.Allow() // drain the burst
		e := RateLimited(inner, limiter)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.EmbedText(ctx, "a")
		assert.Error(t, err)
		assert.Zero(t, inner.calls)
	})
}

func TestLimiterFor(t *testing.T) {
	assert.Nil(t, LimiterFor(&Config{}))

	l := LimiterFor(&Config{RequestsPerSecond: 0.5})
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())

	l = LimiterFor(&Config{RequestsPerSecond: 20})
	assert.Equal(t, 20, l.Burst())
}
