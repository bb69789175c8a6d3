package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	VectorSize int
	UseTLS     bool
}

// milvusVectorStore 共用一个collection，document_id为partition key，命名空间按表达式过滤
type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int

	mu              sync.Mutex
	collectionReady bool
}

const (
	milvusFieldID        = "id"
	milvusFieldContent   = "content"
	milvusFieldDocument  = "document_id"
	milvusFieldPage      = "page_number"
	milvusFieldChunk     = "chunk_index"
	milvusFieldVector    = "vector"
	milvusContentMaxSize = 65535

	milvusNamespaceMaxSize = 256
)

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(ctx context.Context, opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "pdfchat_chunks"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
	}, nil
}

var milvusStringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// namespaceFilter 按命名空间原值精确匹配的过滤表达式
func namespaceFilter(namespace string) string {
	return fmt.Sprintf(`%s == "%s"`, milvusFieldDocument, milvusStringEscaper.Replace(namespace))
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collectionReady {
		return nil
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !hasCollection {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "pdf chunk vectors",
			Fields: []*entity.Field{
				{
					Name:       milvusFieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "256"},
				},
				{
					Name:           milvusFieldDocument,
					DataType:       entity.FieldTypeVarChar,
					IsPartitionKey: true,
					TypeParams:     map[string]string{"max_length": fmt.Sprintf("%d", milvusNamespaceMaxSize)},
				},
				{
					Name:     milvusFieldPage,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     milvusFieldChunk,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       milvusFieldContent,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": fmt.Sprintf("%d", milvusContentMaxSize)},
				},
				{
					Name:       milvusFieldVector,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.vectorSize)},
				},
			},
		}

		if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		index, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := s.milvusClient.CreateIndex(ctx, s.collection, milvusFieldVector, index, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	s.collectionReady = true
	return nil
}

func (s *milvusVectorStore) DescribeNamespace(ctx context.Context, namespace string) (*NamespaceStats, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	resultSet, err := s.milvusClient.Query(ctx, s.collection, nil, namespaceFilter(namespace), []string{"count(*)"})
	if err != nil {
		return nil, fmt.Errorf("milvus count failed: %w", err)
	}

	stats := &NamespaceStats{Name: namespace}
	if column, ok := resultSet.GetColumn("count(*)").(*entity.ColumnInt64); ok && column.Len() > 0 {
		stats.RecordCount = column.Data()[0]
	}
	return stats, nil
}

// UpsertRecords 所有记录在一次Upsert调用中写入
func (s *milvusVectorStore) UpsertRecords(ctx context.Context, namespace string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	if len(namespace) > milvusNamespaceMaxSize {
		return fmt.Errorf("namespace %q exceeds %d bytes", namespace, milvusNamespaceMaxSize)
	}

	ids := make([]string, 0, len(records))
	documents := make([]string, 0, len(records))
	pages := make([]int64, 0, len(records))
	chunks := make([]int64, 0, len(records))
	contents := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	for _, record := range records {
		if len(record.Embedding) != s.vectorSize {
			return fmt.Errorf("record %s has %d dimensions, expected %d", record.ID, len(record.Embedding), s.vectorSize)
		}
		content := record.Text
		if len(content) > milvusContentMaxSize {
			content = content[:milvusContentMaxSize]
		}
		ids = append(ids, record.ID)
		documents = append(documents, namespace)
		pages = append(pages, metadataInt(record.Metadata, "page_number"))
		chunks = append(chunks, metadataInt(record.Metadata, "chunk_index"))
		contents = append(contents, content)
		vectors = append(vectors, record.Embedding)
	}

	_, err := s.milvusClient.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(milvusFieldID, ids),
		entity.NewColumnVarChar(milvusFieldDocument, documents),
		entity.NewColumnInt64(milvusFieldPage, pages),
		entity.NewColumnInt64(milvusFieldChunk, chunks),
		entity.NewColumnVarChar(milvusFieldContent, contents),
		entity.NewColumnFloatVector(milvusFieldVector, s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		return fmt.Errorf("milvus flush failed: %w", err)
	}
	return nil
}

func (s *milvusVectorStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]SearchMatch, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 4
	}

	stats, err := s.DescribeNamespace(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if stats == nil || stats.RecordCount == 0 {
		return nil, apperrors.NewNamespaceNotFoundError(namespace)
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		nil,
		namespaceFilter(namespace),
		[]string{milvusFieldContent, milvusFieldDocument, milvusFieldPage, milvusFieldChunk},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusFieldVector,
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []SearchMatch{}, nil
	}

	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var contents, documents []string
	var pages, chunks []int64
	for _, field := range result.Fields {
		switch field.Name() {
		case milvusFieldContent:
			if val, ok := field.(*entity.ColumnVarChar); ok {
				contents = val.Data()
			}
		case milvusFieldDocument:
			if val, ok := field.(*entity.ColumnVarChar); ok {
				documents = val.Data()
			}
		case milvusFieldPage:
			if val, ok := field.(*entity.ColumnInt64); ok {
				pages = val.Data()
			}
		case milvusFieldChunk:
			if val, ok := field.(*entity.ColumnInt64); ok {
				chunks = val.Data()
			}
		}
	}

	results := make([]SearchMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := SearchMatch{Metadata: make(map[string]interface{})}
		if i < len(ids) {
			match.ID = ids[i]
		}
		if i < len(contents) {
			match.Content = contents[i]
		}
		if i < len(documents) {
			match.Metadata["document_id"] = documents[i]
		}
		if i < len(pages) {
			match.Metadata["page_number"] = pages[i]
		}
		if i < len(chunks) {
			match.Metadata["chunk_index"] = chunks[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		results = append(results, match)
	}

	return results, nil
}

func (s *milvusVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	if err := s.milvusClient.Delete(ctx, s.collection, "", namespaceFilter(namespace)); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}
	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		return fmt.Errorf("milvus flush failed: %w", err)
	}
	return nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

func metadataInt(metadata map[string]interface{}, key string) int64 {
	switch v := metadata[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}
