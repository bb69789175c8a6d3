package services

import (
	"context"

	"github.com/aihub/pdfchat/internal/models"
	"github.com/aihub/pdfchat/internal/repository"
	"go.uber.org/zap"
)

// NamespaceDeleter 删除文档的向量命名空间
type NamespaceDeleter interface {
	DeleteNamespace(ctx context.Context, documentID string) error
}

// ConversationDeleter 删除文档的对话历史
type ConversationDeleter interface {
	DeleteConversation(ctx context.Context, ownerID, documentID string) error
}

// DocumentList 文档分页结果
type DocumentList struct {
	Documents []models.Document `json:"documents"`
	Total     int64             `json:"total"`
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
}

// DocumentService 文档查询与删除
type DocumentService struct {
	repo    repository.DocumentRepository
	storage ObjectStore
	index   NamespaceDeleter
	history ConversationDeleter
	logger  *zap.Logger
}

// NewDocumentService 创建文档服务
func NewDocumentService(
	repo repository.DocumentRepository,
	storage ObjectStore,
	index NamespaceDeleter,
	history ConversationDeleter,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		repo:    repo,
		storage: storage,
		index:   index,
		history: history,
		logger:  logger,
	}
}

// GetDocument 只返回属于ownerID的文档
func (s *DocumentService) GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	return s.repo.GetDocument(ctx, ownerID, documentID)
}

// ListDocuments 分页列出文档
func (s *DocumentService) ListDocuments(ctx context.Context, ownerID string, page, limit int) (*DocumentList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	docs, total, err := s.repo.ListByOwner(ctx, ownerID, page, limit)
	if err != nil {
		return nil, err
	}
	return &DocumentList{Documents: docs, Total: total, Page: page, Limit: limit}, nil
}

// DeleteDocument 删除元数据、向量命名空间、对话历史和存储对象
func (s *DocumentService) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.repo.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	if err := s.index.DeleteNamespace(ctx, doc.ID); err != nil {
		return err
	}

	if err := s.history.DeleteConversation(ctx, ownerID, doc.ID); err != nil {
		return err
	}

	if doc.ObjectKey != "" && s.storage != nil {
		if err := s.storage.Remove(ctx, doc.ObjectKey); err != nil {
			s.logger.Warn("failed to remove document object",
				zap.String("documentID", doc.ID),
				zap.String("objectKey", doc.ObjectKey),
				zap.Error(err))
		}
	}

	if err := s.repo.Delete(ctx, ownerID, documentID); err != nil {
		return err
	}

	s.logger.Info("document deleted",
		zap.String("documentID", documentID),
		zap.String("ownerID", ownerID))
	return nil
}
