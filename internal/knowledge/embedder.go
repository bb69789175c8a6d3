package knowledge

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder 定义文本向量化接口
type Embedder interface {
	// EmbedDocuments 返回的向量与输入一一对应且顺序一致
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 默认占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, apperrors.NewEmbeddingServiceError("embedding provider not configured", nil)
}

func (n *NoopEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, apperrors.NewEmbeddingServiceError("embedding provider not configured", nil)
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

const defaultEmbeddingBatchSize = 96

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器，client为空时退化为NoopEmbedder
func NewOpenAIEmbedder(client *openai.Client, model string, batchSize int) Embedder {
	if client == nil {
		return &NoopEmbedder{}
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}

	dims, ok := embeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dims,
		batchSize:  batchSize,
	}
}

func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, apperrors.NewInvalidInputError("texts", fmt.Sprintf("text %d is empty", i))
		}
	}

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := e.embedBatch(ctx, texts[start:end], vectors[start:end]); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// embedBatch 按响应中的index回填，不依赖服务端返回顺序
func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string, out [][]float32) error {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: batch,
	})
	if err != nil {
		return apperrors.NewEmbeddingServiceError("create embeddings failed", err)
	}
	if len(resp.Data) != len(batch) {
		return apperrors.NewEmbeddingServiceError(
			fmt.Sprintf("embedding response has %d vectors for %d inputs", len(resp.Data), len(batch)), nil)
	}

	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(batch) || out[item.Index] != nil {
			return apperrors.NewEmbeddingServiceError(
				fmt.Sprintf("embedding response has invalid index %d", item.Index), nil)
		}
		vector := make([]float32, len(item.Embedding))
		copy(vector, item.Embedding)
		out[item.Index] = vector
	}

	return nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewInvalidInputError("query", "text is empty")
	}

	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
