package chat

import (
	"context"
	"strings"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/models"
	"go.uber.org/zap"
)

// QueryRewriter 结合历史对话把追问改写为独立的检索查询
type QueryRewriter struct {
	model  ChatModel
	logger *zap.Logger
}

// NewQueryRewriter 创建查询改写器
func NewQueryRewriter(model ChatModel, logger *zap.Logger) *QueryRewriter {
	return &QueryRewriter{model: model, logger: logger}
}

// Rewrite 历史为空时原样返回问题，不调用模型
func (r *QueryRewriter) Rewrite(ctx context.Context, history []models.ConversationTurn, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	messages := historyMessages(history)
	messages = append(messages,
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleUser, Content: rewriteInstruction},
	)

	query, err := r.model.Complete(ctx, messages)
	if err != nil {
		if apperrors.IsAppError(err) {
			return "", err
		}
		return "", apperrors.NewModelInvocationError("rewrite query failed", err)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		r.logger.Warn("rewriter returned empty query, using raw question")
		return question, nil
	}

	r.logger.Debug("query rewritten",
		zap.String("question", question),
		zap.String("query", query))
	return query, nil
}

// historyMessages 按时间顺序把对话轮次映射为模型消息
func historyMessages(history []models.ConversationTurn) []Message {
	messages := make([]Message, 0, len(history)+2)
	for _, turn := range history {
		role := RoleUser
		if turn.Role == models.RoleAssistant {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: turn.Message})
	}
	return messages
}
