package services

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryDocumentRepository struct {
	docs map[string]*models.Document
}

func (r *memoryDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	r.docs[doc.ID] = doc
	return nil
}

func (r *memoryDocumentRepository) GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	doc, ok := r.docs[documentID]
	if !ok || doc.OwnerID != ownerID {
		return nil, apperrors.NewNotFoundError("document")
	}
	return doc, nil
}

func (r *memoryDocumentRepository) ListByOwner(ctx context.Context, ownerID string, page, limit int) ([]models.Document, int64, error) {
	var out []models.Document
	for _, doc := range r.docs {
		if doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryDocumentRepository) Delete(ctx context.Context, ownerID, documentID string) error {
	if _, err := r.GetDocument(ctx, ownerID, documentID); err != nil {
		return err
	}
	delete(r.docs, documentID)
	return nil
}

type recordingNamespaces struct {
	deleted []string
	err     error
}

func (n *recordingNamespaces) DeleteNamespace(ctx context.Context, documentID string) error {
	if n.err != nil {
		return n.err
	}
	n.deleted = append(n.deleted, documentID)
	return nil
}

type documentServiceFixture struct {
	svc        *DocumentService
	repo       *memoryDocumentRepository
	store      *fakeObjectStore
	namespaces *recordingNamespaces
	history    *MemoryHistoryStore
}

func newDocumentServiceFixture(t *testing.T) *documentServiceFixture {
	t.Helper()

	repo := &memoryDocumentRepository{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", OwnerID: "user-1", Name: "handbook.pdf", ObjectKey: "user-1/doc-1.pdf"},
	}}
	store := newFakeObjectStore()
	store.objects["user-1/doc-1.pdf"] = []byte(samplePDF)
	namespaces := &recordingNamespaces{}
	history := NewMemoryHistoryStore()
	require.NoError(t, history.AppendExchange(context.Background(), "user-1", "doc-1", "q", "a"))

	return &documentServiceFixture{
		svc:        NewDocumentService(repo, store, namespaces, history, zap.NewNop()),
		repo:       repo,
		store:      store,
		namespaces: namespaces,
		history:    history,
	}
}

func TestDocumentService_DeleteRemovesEverything(t *testing.T) {
	f := newDocumentServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteDocument(ctx, "user-1", "doc-1"))

	assert.Equal(t, []string{"doc-1"}, f.namespaces.deleted)
	assert.Empty(t, f.store.objects)
	assert.Empty(t, f.repo.docs)

	turns, err := f.history.ReadAll(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestDocumentService_DeleteOtherOwnersDocument(t *testing.T) {
	f := newDocumentServiceFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteDocument(ctx, "someone-else", "doc-1")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	assert.Empty(t, f.namespaces.deleted)
	assert.Contains(t, f.repo.docs, "doc-1")
	turns, err := f.history.ReadAll(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestDocumentService_NamespaceFailureKeepsRecord(t *testing.T) {
	f := newDocumentServiceFixture(t)
	f.namespaces.err = apperrors.NewVectorStoreError("delete namespace failed", errors.New("milvus down"))

	err := f.svc.DeleteDocument(context.Background(), "user-1", "doc-1")
	assert.Equal(t, apperrors.ErrCodeVectorStore, apperrors.CodeOf(err))
	assert.Contains(t, f.repo.docs, "doc-1")
}

func TestDocumentService_ListDocumentsDefaults(t *testing.T) {
	f := newDocumentServiceFixture(t)

	list, err := f.svc.ListDocuments(context.Background(), "user-1", 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.Limit)
	assert.Equal(t, int64(1), list.Total)
}
