package repository

import (
	"context"

	"github.com/aihub/pdfchat/internal/models"
)

// DocumentRepository 文档仓库接口
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	// GetDocument 只返回属于ownerID的文档
	GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string, page, limit int) ([]models.Document, int64, error)
	Delete(ctx context.Context, ownerID, documentID string) error
}
