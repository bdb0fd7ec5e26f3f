package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder(256)
	ctx := context.Background()

	first, err := e.Embed(ctx, "Plants need sunlight to grow.")
	assert.NoError(t, err)
	second, err := e.Embed(ctx, "Plants need sunlight to grow.")
	assert.NoError(t, err)

	// 同一文本的两次向量化必须逐位相等
	assert.Equal(t, first, second)
}

func TestLocalEmbedderDimensions(t *testing.T) {
	e := NewLocalEmbedder(64)
	assert.Equal(t, 64, e.Dimensions())

	v, err := e.Embed(context.Background(), "any text")
	assert.NoError(t, err)
	assert.Len(t, v, 64)

	assert.Equal(t, 384, NewLocalEmbedder(0).Dimensions())
}

func TestLocalEmbedderNormalized(t *testing.T) {
	e := NewLocalEmbedder(128)

	v, err := e.Embed(context.Background(), "energy from the sun")

	assert.NoError(t, err)
	assert.InDelta(t, 1.0, vectorNorm(v), 1e-5)
}

func TestLocalEmbedderSimilarityOrdering(t *testing.T) {
	e := NewLocalEmbedder(512)
	ctx := context.Background()

	query, err := e.Embed(ctx, "plants need sunlight to grow")
	assert.NoError(t, err)
	related, err := e.Embed(ctx, "plants need sunlight to grow well")
	assert.NoError(t, err)
	unrelated, err := e.Embed(ctx, "quarterly finance report")
	assert.NoError(t, err)

	queryNorm := vectorNorm(query)
	assert.Greater(t,
		cosineSimilarity(query, related, queryNorm),
		cosineSimilarity(query, unrelated, queryNorm))
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	e := NewLocalEmbedder(32)

	v, err := e.Embed(context.Background(), "")

	assert.NoError(t, err)
	assert.Len(t, v, 32)
	assert.Zero(t, vectorNorm(v))
}

func TestLocalEmbedderBatchMatchesSingle(t *testing.T) {
	e := NewLocalEmbedder(64)
	ctx := context.Background()
	texts := []string{"first text", "second text"}

	batch, err := e.EmbedBatch(ctx, texts)
	assert.NoError(t, err)
	assert.Len(t, batch, 2)

	single, err := e.Embed(ctx, texts[1])
	assert.NoError(t, err)
	assert.Equal(t, single, batch[1])
}
