package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "skin excision")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "skin excision")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "cataract surgery")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimensions)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_Injection(t *testing.T) {
	m := &MockEmbedder{Dimensions: 4}
	vecs, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 4)

	boom := errors.New("provider down")
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}
	_, err = m.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedTexts(context.Background(), []string{"a"})
	assert.NoError(t, err)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	mp, ok := p.(*MockProvider)
	require.True(t, ok)

	_, err := p.Embedder().EmbedText(context.Background(), "consultation")
	require.NoError(t, err)
	assert.Equal(t, 1, mp.GetMockEmbedder().CallCount())
	assert.NoError(t, p.Close())
}
