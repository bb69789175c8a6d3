package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"

	apperrors "github.com/aihub/pdfchat/internal/errors"
)

type memoryVectorStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]VectorRecord
}

// NewMemoryVectorStore 创建进程内向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		namespaces: make(map[string]map[string]VectorRecord),
	}
}

func (s *memoryVectorStore) DescribeNamespace(ctx context.Context, namespace string) (*NamespaceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.namespaces[namespace]
	if !ok {
		return nil, nil
	}
	return &NamespaceStats{Name: namespace, RecordCount: int64(len(records))}, nil
}

func (s *memoryVectorStore) UpsertRecords(ctx context.Context, namespace string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]VectorRecord, len(records))
		s.namespaces[namespace] = ns
	}
	for _, record := range records {
		embedding := make([]float32, len(record.Embedding))
		copy(embedding, record.Embedding)
		record.Embedding = embedding
		ns[record.ID] = record
	}
	return nil
}

func (s *memoryVectorStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]SearchMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil, apperrors.NewNamespaceNotFoundError(namespace)
	}
	if k <= 0 {
		k = 4
	}

	matches := make([]SearchMatch, 0, len(ns))
	for _, record := range ns {
		metadata := make(map[string]interface{}, len(record.Metadata))
		for key, val := range record.Metadata {
			metadata[key] = val
		}
		matches = append(matches, SearchMatch{
			ID:       record.ID,
			Content:  record.Text,
			Score:    cosineSimilarity(vector, record.Embedding),
			Metadata: metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *memoryVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.namespaces, namespace)
	return nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
