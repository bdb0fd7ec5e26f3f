package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeRecord(id string, vector []float32, file string, page int) VectorRecord {
	return VectorRecord{
		ID:     id,
		Vector: vector,
		Metadata: RecordMetadata{
			ChunkText:  "text of " + id,
			SourceFile: file,
			PageNumber: page,
		},
	}
}

func TestMemoryVectorStoreUpsertIdempotent(t *testing.T) {
	store := NewMemoryVectorStore(3)
	ctx := context.Background()
	records := []VectorRecord{
		makeRecord("notes-p1-c0", []float32{1, 0, 0}, "notes.pdf", 1),
		makeRecord("notes-p1-c1", []float32{0, 1, 0}, "notes.pdf", 1),
		makeRecord("notes-p2-c0", []float32{0, 0, 1}, "notes.pdf", 2),
	}

	first, err := store.Upsert(ctx, "default", records)
	assert.NoError(t, err)
	assert.Equal(t, 3, first.UpsertedCount)
	assert.Empty(t, first.FailedIDs)

	// 重复写入同一批ID，覆盖而不是追加
	second, err := store.Upsert(ctx, "default", records)
	assert.NoError(t, err)
	assert.Equal(t, 3, second.UpsertedCount)
	assert.Equal(t, 3, store.Count("default"))
}

func TestMemoryVectorStoreUpsertReportsFailedIDs(t *testing.T) {
	store := NewMemoryVectorStore(3)
	ctx := context.Background()
	records := []VectorRecord{
		makeRecord("good-p1-c0", []float32{1, 0, 0}, "good.pdf", 1),
		makeRecord("", []float32{1, 0, 0}, "noid.pdf", 1),
		makeRecord("bad-dims-p1-c0", []float32{1, 0}, "bad.pdf", 1),
	}

	result, err := store.Upsert(ctx, "default", records)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.UpsertedCount)
	assert.Len(t, result.FailedIDs, 2)
	assert.Contains(t, result.FailedIDs, "bad-dims-p1-c0")
}

func TestMemoryVectorStoreNamespaceIsolation(t *testing.T) {
	store := NewMemoryVectorStore(3)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "primary5", []VectorRecord{
		makeRecord("science-p1-c0", []float32{1, 0, 0}, "science.pdf", 1),
		makeRecord("science-p2-c0", []float32{0.9, 0.1, 0}, "science.pdf", 2),
	})
	assert.NoError(t, err)
	_, err = store.Upsert(ctx, "primary6", []VectorRecord{
		makeRecord("history-p1-c0", []float32{1, 0, 0}, "history.pdf", 1),
	})
	assert.NoError(t, err)

	matches, err := store.Query(ctx, "primary5", []float32{1, 0, 0}, 10)
	assert.NoError(t, err)
	assert.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "science.pdf", m.SourceFile, "查询结果不能跨namespace")
	}
}

func TestMemoryVectorStoreQueryEmptyNamespace(t *testing.T) {
	store := NewMemoryVectorStore(3)

	matches, err := store.Query(context.Background(), "nonexistent", []float32{1, 0, 0}, 5)

	// 空namespace是空结果，不是错误
	assert.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryVectorStoreQueryOrdersByScore(t *testing.T) {
	store := NewMemoryVectorStore(3)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "default", []VectorRecord{
		makeRecord("far-p1-c0", []float32{0, 1, 0}, "far.pdf", 1),
		makeRecord("near-p1-c0", []float32{1, 0.1, 0}, "near.pdf", 1),
		makeRecord("exact-p1-c0", []float32{1, 0, 0}, "exact.pdf", 1),
	})
	assert.NoError(t, err)

	matches, err := store.Query(ctx, "default", []float32{1, 0, 0}, 2)

	assert.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, "exact.pdf", matches[0].SourceFile)
	assert.Equal(t, "near.pdf", matches[1].SourceFile)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}
