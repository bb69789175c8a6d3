package knowledge

import (
	"context"
	"fmt"
)

// VectorRecord 待写入命名空间的一条向量记录
type VectorRecord struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]interface{}
}

// SearchMatch 检索命中
type SearchMatch struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]interface{}
}

// NamespaceStats 命名空间统计
type NamespaceStats struct {
	Name        string
	RecordCount int64
}

// VectorStore 按命名空间隔离的向量存储抽象
type VectorStore interface {
	// DescribeNamespace 命名空间不存在时返回 nil, nil
	DescribeNamespace(ctx context.Context, namespace string) (*NamespaceStats, error)
	// UpsertRecords 同ID的记录覆盖写入
	UpsertRecords(ctx context.Context, namespace string, records []VectorRecord) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]SearchMatch, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	Ready() bool
}

// RecordID 同一命名空间内按块序号生成稳定ID
func RecordID(namespace string, chunkIndex int) string {
	return fmt.Sprintf("%s-%d", namespace, chunkIndex)
}
