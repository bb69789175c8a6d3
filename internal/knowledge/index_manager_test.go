package knowledge

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDocuments struct {
	docs map[string]*models.Document
}

func (f *fakeDocuments) GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	doc, ok := f.docs[documentID]
	if !ok || doc.OwnerID != ownerID {
		return nil, apperrors.NewNotFoundError("document")
	}
	return doc, nil
}

type fakeLoader struct {
	pages []Page
	err   error
	calls int32
}

func (l *fakeLoader) Load(ctx context.Context, doc *models.Document) ([]Page, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.err != nil {
		return nil, l.err
	}
	return l.pages, nil
}

// fakeEmbedder 按关键词生成二维向量，delay用于放大并发窗口
type fakeEmbedder struct {
	delay      time.Duration
	err        error
	batchCalls int32
	queryCalls int32
}

func keywordVector(text string) []float32 {
	vector := []float32{0.1, 0.1}
	for _, word := range []string{"refund", "Refund", "30 days"} {
		if strings.Contains(text, word) {
			vector[0] += 1
		}
	}
	for _, word := range []string{"shipping", "Shipping"} {
		if strings.Contains(text, word) {
			vector[1] += 1
		}
	}
	return vector
}

func (e *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&e.batchCalls, 1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = keywordVector(text)
	}
	return vectors, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&e.queryCalls, 1)
	if e.err != nil {
		return nil, e.err
	}
	return keywordVector(text), nil
}

func (e *fakeEmbedder) Dimensions() int { return 2 }
func (e *fakeEmbedder) Ready() bool     { return true }

type indexFixture struct {
	manager  *IndexManager
	store    VectorStore
	loader   *fakeLoader
	embedder *fakeEmbedder
}

func newIndexFixture(t *testing.T) *indexFixture {
	t.Helper()

	store := NewMemoryVectorStore()
	loader := &fakeLoader{pages: []Page{
		{Number: 1, Text: "Our refund policy: refunds are issued within 30 days of purchase."},
		{Number: 2, Text: "Shipping is free for orders over fifty dollars."},
	}}
	embedder := &fakeEmbedder{}
	docs := &fakeDocuments{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", OwnerID: "user-1", DownloadURL: "http://files.local/doc-1.pdf"},
	}}

	manager := NewIndexManager(store, loader, NewChunker(1000, 200), embedder, docs, nil, nil, zap.NewNop())
	return &indexFixture{manager: manager, store: store, loader: loader, embedder: embedder}
}

func TestIndexManager_EnsureIndexedBuildsOnce(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()

	result, err := f.manager.EnsureIndexed(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	assert.True(t, result.Built)
	assert.Equal(t, 2, result.Chunks)

	result, err = f.manager.EnsureIndexed(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	assert.False(t, result.Built)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.loader.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.embedder.batchCalls))

	stats, err := f.store.DescribeNamespace(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RecordCount)
}

func TestIndexManager_ConcurrentCallsShareOneBuild(t *testing.T) {
	f := newIndexFixture(t)
	f.embedder.delay = 50 * time.Millisecond

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.manager.EnsureIndexed(context.Background(), "user-1", "doc-1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.loader.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.embedder.batchCalls))

	stats, err := f.store.DescribeNamespace(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RecordCount)
}

func TestIndexManager_FetchFailureLeavesNoNamespace(t *testing.T) {
	f := newIndexFixture(t)
	f.loader.err = apperrors.NewFetchError("download document failed", nil)
	ctx := context.Background()

	_, err := f.manager.EnsureIndexed(ctx, "user-1", "doc-1")
	assert.Equal(t, apperrors.ErrCodeFetch, apperrors.CodeOf(err))

	exists, err := f.manager.NamespaceExists(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.embedder.batchCalls))

	// 失败后可以重新构建
	f.loader.err = nil
	result, err := f.manager.EnsureIndexed(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	assert.True(t, result.Built)
}

func TestIndexManager_EmbeddingFailure(t *testing.T) {
	f := newIndexFixture(t)
	f.embedder.err = apperrors.NewEmbeddingServiceError("rate limited", nil)

	_, err := f.manager.EnsureIndexed(context.Background(), "user-1", "doc-1")
	assert.Equal(t, apperrors.ErrCodeEmbeddingService, apperrors.CodeOf(err))

	exists, err := f.manager.NamespaceExists(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexManager_EmptyDocumentIsParseError(t *testing.T) {
	f := newIndexFixture(t)
	f.loader.pages = nil

	_, err := f.manager.EnsureIndexed(context.Background(), "user-1", "doc-1")
	assert.Equal(t, apperrors.ErrCodeParse, apperrors.CodeOf(err))
}

func TestIndexManager_UnknownOwner(t *testing.T) {
	f := newIndexFixture(t)

	_, err := f.manager.EnsureIndexed(context.Background(), "someone-else", "doc-1")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.loader.calls))
}

func TestIndexManager_ExistingNamespaceStillChecksOwner(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()

	_, err := f.manager.EnsureIndexed(ctx, "user-1", "doc-1")
	require.NoError(t, err)

	result, err := f.manager.EnsureIndexed(ctx, "someone-else", "doc-1")
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.loader.calls))
}

func TestIndexManager_Search(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()

	_, err := f.manager.Search(ctx, "doc-1", "refund policy", 4)
	assert.Equal(t, apperrors.ErrCodeNamespaceNotFound, apperrors.CodeOf(err))

	_, err = f.manager.EnsureIndexed(ctx, "user-1", "doc-1")
	require.NoError(t, err)

	matches, err := f.manager.Search(ctx, "doc-1", "refund policy", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Content, "30 days")
	assert.Equal(t, 1, matches[0].Metadata["page_number"])
	assert.Equal(t, "doc-1", matches[0].Metadata["document_id"])
}

func TestIndexManager_DeleteNamespace(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()

	_, err := f.manager.EnsureIndexed(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	require.NoError(t, f.manager.DeleteNamespace(ctx, "doc-1"))

	exists, err := f.manager.NamespaceExists(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, exists)
}
