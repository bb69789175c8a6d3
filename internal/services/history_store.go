package services

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/models"
)

// HistoryStore 按(owner, document)保存的对话历史
//
// ReadAll 必须按时间正序返回：最早的轮次在前，同一时间戳按写入顺序。
type HistoryStore interface {
	Append(ctx context.Context, ownerID, documentID, role, message string) (*models.ConversationTurn, error)
	// AppendExchange 原子地写入一问一答，提问在前
	AppendExchange(ctx context.Context, ownerID, documentID, question, answer string) error
	ReadAll(ctx context.Context, ownerID, documentID string) ([]models.ConversationTurn, error)
	// DeleteConversation 删除文档时一并清除其全部轮次
	DeleteConversation(ctx context.Context, ownerID, documentID string) error
}

func validateRole(role string) error {
	if role != models.RoleHuman && role != models.RoleAssistant {
		return apperrors.NewInvalidInputError("role", "must be human or assistant")
	}
	return nil
}

// MemoryHistoryStore 进程内实现
type MemoryHistoryStore struct {
	mu    sync.RWMutex
	seq   uint64
	turns map[string][]models.ConversationTurn
	now   func() time.Time
}

// NewMemoryHistoryStore 创建内存历史存储
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		turns: make(map[string][]models.ConversationTurn),
		now:   time.Now,
	}
}

func historyKey(ownerID, documentID string) string {
	return ownerID + "/" + documentID
}

func (s *MemoryHistoryStore) Append(ctx context.Context, ownerID, documentID, role, message string) (*models.ConversationTurn, error) {
	if err := validateRole(role); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turn := s.appendLocked(ownerID, documentID, role, message)
	return &turn, nil
}

func (s *MemoryHistoryStore) AppendExchange(ctx context.Context, ownerID, documentID, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(ownerID, documentID, models.RoleHuman, question)
	s.appendLocked(ownerID, documentID, models.RoleAssistant, answer)
	return nil
}

func (s *MemoryHistoryStore) appendLocked(ownerID, documentID, role, message string) models.ConversationTurn {
	s.seq++
	turn := models.ConversationTurn{
		ID:         s.seq,
		OwnerID:    ownerID,
		DocumentID: documentID,
		Role:       role,
		Message:    message,
		CreatedAt:  s.now(),
	}
	key := historyKey(ownerID, documentID)
	s.turns[key] = append(s.turns[key], turn)
	return turn
}

func (s *MemoryHistoryStore) ReadAll(ctx context.Context, ownerID, documentID string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[historyKey(ownerID, documentID)]
	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryHistoryStore) DeleteConversation(ctx context.Context, ownerID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, historyKey(ownerID, documentID))
	return nil
}
