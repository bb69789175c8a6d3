package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/google/uuid"
)

// QdrantOptions Qdrant客户端配置
type QdrantOptions struct {
	Endpoint         string
	APIKey           string
	CollectionPrefix string
	VectorSize       int
	Distance         string
	Timeout          time.Duration
	HTTPClient       *http.Client
}

// qdrantVectorStore 每个命名空间对应一个collection
type qdrantVectorStore struct {
	client           *http.Client
	endpoint         string
	apiKey           string
	collectionPrefix string
	vectorSize       int
	distance         string
}

// NewQdrantVectorStore 创建Qdrant向量存储
func NewQdrantVectorStore(opts QdrantOptions) (VectorStore, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = "http://localhost:6333"
	}
	if !strings.HasPrefix(opts.Endpoint, "http") {
		opts.Endpoint = "http://" + opts.Endpoint
	}
	if _, err := url.Parse(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid qdrant endpoint: %w", err)
	}
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = "pdfchat"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &qdrantVectorStore{
		client:           httpClient,
		endpoint:         strings.TrimSuffix(opts.Endpoint, "/"),
		apiKey:           opts.APIKey,
		collectionPrefix: opts.CollectionPrefix,
		vectorSize:       opts.VectorSize,
		distance:         formatDistance(opts.Distance),
	}, nil
}

func formatDistance(value string) string {
	switch strings.ToLower(value) {
	case "dot", "dotproduct":
		return "Dot"
	case "euclid", "l2":
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (s *qdrantVectorStore) collectionName(namespace string) string {
	return fmt.Sprintf("%s_%s", s.collectionPrefix, url.PathEscape(namespace))
}

func (s *qdrantVectorStore) DescribeNamespace(ctx context.Context, namespace string) (*NamespaceStats, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/collections/"+s.collectionName(namespace), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qdrant describe collection failed: %s %s", resp.Status, string(raw))
	}

	var info struct {
		Result struct {
			PointsCount *int64 `json:"points_count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode qdrant collection info: %w", err)
	}

	stats := &NamespaceStats{Name: namespace}
	if info.Result.PointsCount != nil {
		stats.RecordCount = *info.Result.PointsCount
	}
	return stats, nil
}

func (s *qdrantVectorStore) ensureCollection(ctx context.Context, namespace string, vectorSize int) error {
	name := s.collectionName(namespace)
	resp, err := s.doRequest(ctx, http.MethodGet, "/collections/"+name, nil)
	if err == nil && resp.StatusCode == http.StatusOK {
		resp.Body.Close()
		return nil
	}
	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     vectorSize,
			"distance": s.distance,
		},
	}
	resp, err = s.doRequest(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create collection %s failed: %s %s", name, resp.Status, string(raw))
	}
	return nil
}

// UpsertRecords 所有点在一次请求中写入
func (s *qdrantVectorStore) UpsertRecords(ctx context.Context, namespace string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	vectorSize := len(records[0].Embedding)
	if vectorSize == 0 {
		vectorSize = s.vectorSize
	}
	if err := s.ensureCollection(ctx, namespace, vectorSize); err != nil {
		return err
	}

	points := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		if len(record.Embedding) != vectorSize {
			return fmt.Errorf("record %s has %d dimensions, expected %d", record.ID, len(record.Embedding), vectorSize)
		}
		payload := make(map[string]interface{}, len(record.Metadata)+2)
		for key, val := range record.Metadata {
			payload[key] = val
		}
		payload["record_id"] = record.ID
		payload["content"] = record.Text

		points = append(points, map[string]interface{}{
			"id":      qdrantPointID(record.ID),
			"vector":  record.Embedding,
			"payload": payload,
		})
	}

	resp, err := s.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", s.collectionName(namespace)),
		map[string]interface{}{"points": points})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant upsert failed: %s %s", resp.Status, string(raw))
	}
	return nil
}

// qdrantPointID Qdrant只接受整数或UUID作为点ID
func qdrantPointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func (s *qdrantVectorStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]SearchMatch, error) {
	if k <= 0 {
		k = 4
	}

	body := map[string]interface{}{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vectors": false,
	}

	resp, err := s.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", s.collectionName(namespace)), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewNamespaceNotFoundError(namespace)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qdrant search failed: %s %s", resp.Status, string(raw))
	}

	var searchResp struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, err
	}

	results := make([]SearchMatch, 0, len(searchResp.Result))
	for _, item := range searchResp.Result {
		payload := item.Payload
		if payload == nil {
			payload = map[string]interface{}{}
		}
		content, _ := payload["content"].(string)
		recordID, _ := payload["record_id"].(string)
		if recordID == "" {
			recordID = fmt.Sprint(item.ID)
		}
		delete(payload, "content")
		delete(payload, "record_id")

		results = append(results, SearchMatch{
			ID:       recordID,
			Content:  content,
			Score:    item.Score,
			Metadata: payload,
		})
	}

	return results, nil
}

func (s *qdrantVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	resp, err := s.doRequest(ctx, http.MethodDelete, "/collections/"+s.collectionName(namespace), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant delete collection failed: %s %s", resp.Status, string(raw))
	}
	return nil
}

func (s *qdrantVectorStore) Ready() bool {
	return s.client != nil
}

func (s *qdrantVectorStore) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	return s.client.Do(req)
}
