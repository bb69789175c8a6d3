package chat

import (
	"context"
	"strings"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// 消息角色
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message 发给语言模型的一条消息
type Message struct {
	Role    string
	Content string
}

// ChatModel 语言模型接口
type ChatModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIChatModel 基于Chat Completions接口
type OpenAIChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIChatModel 创建OpenAI对话模型
func NewOpenAIChatModel(client *openai.Client, model string, temperature float32, maxTokens int) *OpenAIChatModel {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIChatModel{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete 调用失败或无候选结果时返回ModelInvocationError，不做重试
func (m *OpenAIChatModel) Complete(ctx context.Context, messages []Message) (string, error) {
	if m.client == nil {
		return "", apperrors.NewModelInvocationError("chat model not configured", nil)
	}

	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apperrors.NewModelInvocationError("chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewModelInvocationError("chat completion returned no choices", nil)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
