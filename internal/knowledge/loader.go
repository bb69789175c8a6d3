package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/models"
	"go.uber.org/zap"
)

// ContentSource 按文档定位符取回原始字节
type ContentSource interface {
	Fetch(ctx context.Context, doc *models.Document) ([]byte, error)
}

// DocumentLoader 文档加载接口
type DocumentLoader interface {
	Load(ctx context.Context, doc *models.Document) ([]Page, error)
}

// defaultMaxDocumentBytes 单个文档的大小上限
const defaultMaxDocumentBytes int64 = 64 << 20

// HTTPContentSource 通过下载地址获取文档
type HTTPContentSource struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPContentSource 创建HTTP内容源
func NewHTTPContentSource(client *http.Client) *HTTPContentSource {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPContentSource{
		client:   client,
		maxBytes: defaultMaxDocumentBytes,
	}
}

func (s *HTTPContentSource) Fetch(ctx context.Context, doc *models.Document) ([]byte, error) {
	if doc.DownloadURL == "" {
		return nil, apperrors.NewFetchError("document has no download url", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.DownloadURL, nil)
	if err != nil {
		return nil, apperrors.NewFetchError("invalid download url", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError("download document failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewFetchError(fmt.Sprintf("download document failed: %s", resp.Status), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewFetchError("read document body failed", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.NewFetchError(fmt.Sprintf("document exceeds %d bytes", s.maxBytes), nil)
	}

	return data, nil
}

// Loader 取回文档并解析为页面
type Loader struct {
	source ContentSource
	parser PageParser
	logger *zap.Logger
}

// NewLoader 创建文档加载器
func NewLoader(source ContentSource, parser PageParser, logger *zap.Logger) *Loader {
	if parser == nil {
		parser = NewPDFParser()
	}
	return &Loader{
		source: source,
		parser: parser,
		logger: logger,
	}
}

// Load 内容源不可达返回FetchError，内容无法解码返回ParseError，不做重试
func (l *Loader) Load(ctx context.Context, doc *models.Document) ([]Page, error) {
	l.logger.Info("fetching document content",
		zap.String("documentID", doc.ID),
		zap.String("objectKey", doc.ObjectKey))

	data, err := l.source.Fetch(ctx, doc)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewFetchError("fetch document content failed", err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewFetchError("document content is empty", nil)
	}

	pages, err := l.parser.ParsePages(data)
	if err != nil {
		return nil, apperrors.NewParseError("could not decode document as PDF", err)
	}

	l.logger.Info("document loaded",
		zap.String("documentID", doc.ID),
		zap.Int("bytes", len(data)),
		zap.Int("pages", len(pages)))

	return pages, nil
}
