package knowledge

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/metrics"
	"github.com/aihub/pdfchat/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DocumentRepository 文档元数据查询，未找到或不属于ownerID时返回NotFound
type DocumentRepository interface {
	GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error)
}

// IndexResult EnsureIndexed的结果
type IndexResult struct {
	DocumentID string
	// Built 为true表示本次调用期间发生了构建（可能由并发调用方完成）
	Built  bool
	Chunks int
}

// IndexManager 管理文档命名空间的构建与检索
type IndexManager struct {
	store     VectorStore
	loader    DocumentLoader
	chunker   *Chunker
	embedder  Embedder
	documents DocumentRepository
	locker    BuildLocker
	metrics   *metrics.Metrics
	logger    *zap.Logger

	group singleflight.Group
}

// NewIndexManager 创建索引管理器
func NewIndexManager(
	store VectorStore,
	loader DocumentLoader,
	chunker *Chunker,
	embedder Embedder,
	documents DocumentRepository,
	locker BuildLocker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IndexManager {
	if locker == nil {
		locker = LocalBuildLocker{}
	}
	if chunker == nil {
		chunker = NewChunker(1000, 200)
	}
	return &IndexManager{
		store:     store,
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		documents: documents,
		locker:    locker,
		metrics:   m,
		logger:    logger,
	}
}

// NamespaceExists 命名空间存在且至少有一条记录
func (m *IndexManager) NamespaceExists(ctx context.Context, documentID string) (bool, error) {
	stats, err := m.store.DescribeNamespace(ctx, documentID)
	if err != nil {
		return false, apperrors.NewVectorStoreError("describe namespace failed", err)
	}
	return stats != nil && stats.RecordCount > 0, nil
}

// EnsureIndexed 保证文档命名空间存在；同一文档的并发调用只触发一次构建。
// 命名空间已存在时同样校验文档归属，不属于ownerID的文档返回NotFound
func (m *IndexManager) EnsureIndexed(ctx context.Context, ownerID, documentID string) (*IndexResult, error) {
	doc, err := m.documents.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	exists, err := m.NamespaceExists(ctx, documentID)
	if err != nil {
		m.metrics.ObserveIndexBuild("failed")
		return nil, err
	}
	if exists {
		m.logger.Info("reusing existing namespace", zap.String("documentID", documentID))
		m.metrics.ObserveIndexBuild("reused")
		return &IndexResult{DocumentID: documentID}, nil
	}

	// 构建一旦开始就不随调用方取消而中断
	buildCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(documentID, func() (interface{}, error) {
		return m.build(buildCtx, doc)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			m.metrics.ObserveIndexBuild("failed")
			return nil, res.Err
		}
		result := *res.Val.(*IndexResult)
		if result.Built {
			m.metrics.ObserveIndexBuild("built")
		} else {
			m.metrics.ObserveIndexBuild("reused")
		}
		return &result, nil
	}
}

func (m *IndexManager) build(ctx context.Context, doc *models.Document) (*IndexResult, error) {
	documentID := doc.ID
	release, err := m.locker.Acquire(ctx, documentID)
	if err != nil {
		return nil, apperrors.NewVectorStoreError("acquire build lock failed", err)
	}
	defer release()

	// 加锁后再检查一次，其他实例可能已完成构建
	exists, err := m.NamespaceExists(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if exists {
		m.logger.Info("namespace built by another worker", zap.String("documentID", documentID))
		return &IndexResult{DocumentID: documentID}, nil
	}

	started := time.Now()
	pages, err := m.loader.Load(ctx, doc)
	m.metrics.ObserveStage("load", started)
	if err != nil {
		return nil, err
	}

	chunks := m.chunker.SplitPages(documentID, pages)
	if len(chunks) == 0 {
		return nil, apperrors.NewParseError("document contains no extractable text", nil)
	}
	m.logger.Info("document split into chunks",
		zap.String("documentID", documentID),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	started = time.Now()
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	m.metrics.ObserveStage("embed", started)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewEmbeddingServiceError("embed chunks failed", err)
	}
	if len(vectors) != len(chunks) {
		return nil, apperrors.NewEmbeddingServiceError(
			fmt.Sprintf("got %d embeddings for %d chunks", len(vectors), len(chunks)), nil)
	}

	records := make([]VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = VectorRecord{
			ID:        RecordID(documentID, chunk.Index),
			Text:      chunk.Text,
			Embedding: vectors[i],
			Metadata: map[string]interface{}{
				"document_id": documentID,
				"namespace":   documentID,
				"page_number": chunk.PageNumber,
				"chunk_index": chunk.Index,
			},
		}
	}

	started = time.Now()
	err = m.store.UpsertRecords(ctx, documentID, records)
	m.metrics.ObserveStage("store", started)
	if err != nil {
		return nil, apperrors.NewVectorStoreError("store chunk vectors failed", err)
	}

	m.logger.Info("namespace built",
		zap.String("documentID", documentID),
		zap.Int("records", len(records)))

	return &IndexResult{DocumentID: documentID, Built: true, Chunks: len(records)}, nil
}

// Search 返回与查询最相近的k个块，命名空间不存在时返回NamespaceNotFoundError
func (m *IndexManager) Search(ctx context.Context, documentID, query string, k int) ([]SearchMatch, error) {
	exists, err := m.NamespaceExists(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NewNamespaceNotFoundError(documentID)
	}

	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewEmbeddingServiceError("embed query failed", err)
	}

	matches, err := m.store.Query(ctx, documentID, vector, k)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewVectorStoreError("query namespace failed", err)
	}
	return matches, nil
}

// DeleteNamespace 删除文档的命名空间
func (m *IndexManager) DeleteNamespace(ctx context.Context, documentID string) error {
	if err := m.store.DeleteNamespace(ctx, documentID); err != nil {
		return apperrors.NewVectorStoreError("delete namespace failed", err)
	}
	m.logger.Info("namespace deleted", zap.String("documentID", documentID))
	return nil
}

// Ready 向量存储与嵌入服务均可用
func (m *IndexManager) Ready() bool {
	return m.store.Ready() && m.embedder.Ready()
}
