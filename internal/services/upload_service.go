package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/aihub/pdfchat/internal/metrics"
	"github.com/aihub/pdfchat/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStore 上传文件的存储
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress io.Reader) error
	PresignedURL(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

// DocumentWriter 文档元数据写入，Delete用于上传失败后的回滚
type DocumentWriter interface {
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, ownerID, documentID string) error
}

// DocumentIndexer 构建文档命名空间
type DocumentIndexer interface {
	EnsureIndexed(ctx context.Context, ownerID, documentID string) (*knowledge.IndexResult, error)
}

// UploadRequest 上传参数
type UploadRequest struct {
	OwnerID     string `validate:"required"`
	Name        string `validate:"required,max=255"`
	ContentType string
	Size        int64 `validate:"gt=0"`
}

const (
	pdfContentType       = "application/pdf"
	defaultMaxUploadSize = 64 << 20
)

// UploadService 上传 → 保存元数据 → 生成向量
type UploadService struct {
	store      ObjectStore
	documents  DocumentWriter
	indexer    DocumentIndexer
	listeners  []StatusListener
	maxSize    int64
	validate   *validator.Validate
	translator *apperrors.ErrorTranslator
	metrics    *metrics.Metrics
	logger     *zap.Logger
	newID      func() string
}

// NewUploadService 创建上传服务
func NewUploadService(
	store ObjectStore,
	documents DocumentWriter,
	indexer DocumentIndexer,
	listeners []StatusListener,
	m *metrics.Metrics,
	logger *zap.Logger,
) *UploadService {
	return &UploadService{
		store:      store,
		documents:  documents,
		indexer:    indexer,
		listeners:  listeners,
		maxSize:    defaultMaxUploadSize,
		validate:   validator.New(),
		translator: apperrors.NewErrorTranslator(),
		metrics:    m,
		logger:     logger,
		newID:      func() string { return uuid.NewString() },
	}
}

func (s *UploadService) validateRequest(req UploadRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return s.translator.Translate(err)
	}
	if req.Size > s.maxSize {
		return apperrors.NewInvalidInputError("file", fmt.Sprintf("must not exceed %d bytes", s.maxSize))
	}
	isPDF := strings.EqualFold(req.ContentType, pdfContentType) ||
		strings.EqualFold(path.Ext(req.Name), ".pdf")
	if !isPDF {
		return apperrors.NewInvalidInputError("file", "only PDF documents are supported")
	}
	return nil
}

// Upload 状态依次为uploading、uploaded、saving、generating、done；任一步失败进入failed并返回该错误
func (s *UploadService) Upload(ctx context.Context, req UploadRequest, body io.Reader) (*models.Document, error) {
	if s.store == nil {
		return nil, apperrors.NewStorageError("object storage is not configured", nil)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          s.newID(),
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		Size:        req.Size,
		ContentType: pdfContentType,
		CreatedAt:   time.Now(),
	}
	doc.ObjectKey = fmt.Sprintf("%s/%s.pdf", req.OwnerID, doc.ID)

	tracker := NewUploadTracker(doc.ID, doc.OwnerID, s.listeners, s.metrics, s.logger)
	var written uploadArtifacts
	if err := s.run(ctx, tracker, doc, body, &written); err != nil {
		cleanupCtx := context.WithoutCancel(ctx)
		s.rollback(cleanupCtx, doc, written)
		tracker.Fail(cleanupCtx, err)
		return nil, err
	}
	return doc, nil
}

// uploadArtifacts 记录失败前已写入的对象和记录
type uploadArtifacts struct {
	object bool
	record bool
}

// rollback 删除失败上传留下的记录和对象，清理失败只记录日志
func (s *UploadService) rollback(ctx context.Context, doc *models.Document, written uploadArtifacts) {
	if written.record {
		if err := s.documents.Delete(ctx, doc.OwnerID, doc.ID); err != nil {
			s.logger.Warn("failed to remove document record after failed upload",
				zap.String("documentID", doc.ID),
				zap.Error(err))
		}
	}
	if written.object {
		if err := s.store.Remove(ctx, doc.ObjectKey); err != nil {
			s.logger.Warn("failed to remove object after failed upload",
				zap.String("documentID", doc.ID),
				zap.String("objectKey", doc.ObjectKey),
				zap.Error(err))
		}
	}
}

func (s *UploadService) run(ctx context.Context, tracker *UploadTracker, doc *models.Document, body io.Reader, written *uploadArtifacts) error {
	if err := tracker.Transition(ctx, UploadStatusUploading); err != nil {
		return err
	}

	progress := &progressReader{
		total: doc.Size,
		report: func(percent int) {
			tracker.Progress(ctx, percent)
		},
	}
	started := time.Now()
	err := s.store.Put(ctx, doc.ObjectKey, body, doc.Size, doc.ContentType, progress)
	s.metrics.ObserveStage("upload", started)
	if err != nil {
		return err
	}
	written.object = true
	if err := tracker.Transition(ctx, UploadStatusUploaded); err != nil {
		return err
	}

	url, err := s.store.PresignedURL(ctx, doc.ObjectKey)
	if err != nil {
		return err
	}
	doc.DownloadURL = url

	if err := tracker.Transition(ctx, UploadStatusSaving); err != nil {
		return err
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "save document failed").WithCause(err)
	}
	written.record = true

	if err := tracker.Transition(ctx, UploadStatusGenerating); err != nil {
		return err
	}
	result, err := s.indexer.EnsureIndexed(ctx, doc.OwnerID, doc.ID)
	if err != nil {
		return err
	}

	s.logger.Info("document uploaded and indexed",
		zap.String("documentID", doc.ID),
		zap.String("ownerID", doc.OwnerID),
		zap.Int("chunks", result.Chunks))
	return tracker.Transition(ctx, UploadStatusDone)
}

// progressReader 作为PutObjectOptions.Progress，每次Read收到的是刚上传完的字节
type progressReader struct {
	total  int64
	sent   atomic.Int64
	report func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n := len(b)
	sent := p.sent.Add(int64(n))
	if p.total > 0 {
		p.report(int(sent * 100 / p.total))
	}
	return n, nil
}
