package knowledge

import (
	"context"
	"testing"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVectorStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	records := []VectorRecord{
		{ID: RecordID("doc", 0), Text: "first", Embedding: []float32{1, 0}},
		{ID: RecordID("doc", 1), Text: "second", Embedding: []float32{0, 1}},
	}
	require.NoError(t, store.UpsertRecords(ctx, "doc", records))
	require.NoError(t, store.UpsertRecords(ctx, "doc", records))

	stats, err := store.DescribeNamespace(ctx, "doc")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(2), stats.RecordCount)
}

func TestMemoryVectorStore_QueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	require.NoError(t, store.UpsertRecords(ctx, "doc", []VectorRecord{
		{ID: "a", Text: "shipping", Embedding: []float32{0, 1}},
		{ID: "b", Text: "refunds", Embedding: []float32{1, 0.1}},
		{ID: "c", Text: "returns", Embedding: []float32{1, 0.5}},
	}))

	matches, err := store.Query(ctx, "doc", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].ID)
	assert.Equal(t, "refunds", matches[0].Content)
	assert.Equal(t, "c", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryVectorStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	require.NoError(t, store.UpsertRecords(ctx, "doc-a", []VectorRecord{
		{ID: "a-0", Text: "from a", Embedding: []float32{1, 0}},
	}))

	stats, err := store.DescribeNamespace(ctx, "doc-b")
	require.NoError(t, err)
	assert.Nil(t, stats)

	_, err = store.Query(ctx, "doc-b", []float32{1, 0}, 4)
	assert.Equal(t, apperrors.ErrCodeNamespaceNotFound, apperrors.CodeOf(err))
}

func TestMemoryVectorStore_DeleteNamespace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVectorStore()

	require.NoError(t, store.UpsertRecords(ctx, "doc", []VectorRecord{
		{ID: "x", Text: "x", Embedding: []float32{1}},
	}))
	require.NoError(t, store.DeleteNamespace(ctx, "doc"))

	stats, err := store.DescribeNamespace(ctx, "doc")
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
