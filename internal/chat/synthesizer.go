package chat

import (
	"context"
	"strings"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/aihub/pdfchat/internal/models"
	"go.uber.org/zap"
)

// AnswerSynthesizer 基于检索到的上下文生成回答
type AnswerSynthesizer struct {
	model  ChatModel
	logger *zap.Logger
}

// NewAnswerSynthesizer 创建回答生成器
func NewAnswerSynthesizer(model ChatModel, logger *zap.Logger) *AnswerSynthesizer {
	return &AnswerSynthesizer{model: model, logger: logger}
}

// BuildMessages 系统提示词 + 历史 + 当前问题
func (s *AnswerSynthesizer) BuildMessages(matches []knowledge.SearchMatch, history []models.ConversationTurn, question string) []Message {
	contents := make([]string, 0, len(matches))
	for _, match := range matches {
		if text := strings.TrimSpace(match.Content); text != "" {
			contents = append(contents, text)
		}
	}
	system := strings.Replace(answerSystemPrompt, "{context}", strings.Join(contents, contextSeparator), 1)

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, Message{Role: RoleUser, Content: question})
	return messages
}

// Synthesize 生成回答
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, matches []knowledge.SearchMatch, history []models.ConversationTurn, question string) (string, error) {
	answer, err := s.model.Complete(ctx, s.BuildMessages(matches, history, question))
	if err != nil {
		if apperrors.IsAppError(err) {
			return "", err
		}
		return "", apperrors.NewModelInvocationError("synthesize answer failed", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", apperrors.NewModelInvocationError("model returned an empty answer", nil)
	}

	s.logger.Debug("answer synthesized",
		zap.Int("contextChunks", len(matches)),
		zap.Int("historyTurns", len(history)))
	return answer, nil
}
