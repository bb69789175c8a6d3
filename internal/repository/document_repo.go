package repository

import (
	"context"
	"errors"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/models"
	"gorm.io/gorm"
)

// documentRepository 文档仓库实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 创建文档记录
func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "save document failed").WithCause(err)
	}
	return nil
}

// GetDocument 根据ID获取文档
func (r *documentRepository) GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", documentID, ownerID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("document")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "load document failed").WithCause(err)
	}
	return &doc, nil
}

// ListByOwner 分页获取用户的文档，最新的在前
func (r *documentRepository) ListByOwner(ctx context.Context, ownerID string, page, limit int) ([]models.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var docs []models.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Document{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete 删除文档记录
func (r *documentRepository) Delete(ctx context.Context, ownerID, documentID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", documentID, ownerID).
		Delete(&models.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("document")
	}
	return nil
}
