package services

import (
	"context"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormHistoryStore 基于PostgreSQL的对话历史
type GormHistoryStore struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewGormHistoryStore 创建数据库历史存储
func NewGormHistoryStore(db *gorm.DB, logger *zap.Logger) *GormHistoryStore {
	return &GormHistoryStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (s *GormHistoryStore) Append(ctx context.Context, ownerID, documentID, role, message string) (*models.ConversationTurn, error) {
	if err := validateRole(role); err != nil {
		return nil, err
	}

	turn := &models.ConversationTurn{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Role:       role,
		Message:    message,
		CreatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(turn).Error; err != nil {
		return nil, apperrors.NewHistoryStoreError("append conversation turn failed", err)
	}
	return turn, nil
}

func (s *GormHistoryStore) AppendExchange(ctx context.Context, ownerID, documentID, question, answer string) error {
	createdAt := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		human := &models.ConversationTurn{
			OwnerID:    ownerID,
			DocumentID: documentID,
			Role:       models.RoleHuman,
			Message:    question,
			CreatedAt:  createdAt,
		}
		if err := tx.Create(human).Error; err != nil {
			return err
		}

		assistant := &models.ConversationTurn{
			OwnerID:    ownerID,
			DocumentID: documentID,
			Role:       models.RoleAssistant,
			Message:    answer,
			CreatedAt:  createdAt,
		}
		return tx.Create(assistant).Error
	})
	if err != nil {
		return apperrors.NewHistoryStoreError("append conversation exchange failed", err)
	}

	s.logger.Debug("conversation exchange stored",
		zap.String("ownerID", ownerID),
		zap.String("documentID", documentID))
	return nil
}

func (s *GormHistoryStore) DeleteConversation(ctx context.Context, ownerID, documentID string) error {
	result := s.db.WithContext(ctx).
		Where("owner_id = ? AND document_id = ?", ownerID, documentID).
		Delete(&models.ConversationTurn{})
	if result.Error != nil {
		return apperrors.NewHistoryStoreError("delete conversation history failed", result.Error)
	}

	s.logger.Debug("conversation history deleted",
		zap.String("ownerID", ownerID),
		zap.String("documentID", documentID),
		zap.Int64("turns", result.RowsAffected))
	return nil
}

// ReadAll 按最新优先读出后反转为时间正序，同一时间戳由自增ID决定先后
func (s *GormHistoryStore) ReadAll(ctx context.Context, ownerID, documentID string) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND document_id = ?", ownerID, documentID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&turns).Error
	if err != nil {
		return nil, apperrors.NewHistoryStoreError("read conversation history failed", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
