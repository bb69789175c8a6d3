package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aihub/pdfchat/internal/config"
	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/aihub/pdfchat/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOStore 上传文件的对象存储
type MinIOStore struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
	logger        *zap.Logger
}

// NewMinIOStore 创建MinIO客户端并确保bucket存在
func NewMinIOStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	store := &MinIOStore{
		client:        client,
		bucket:        cfg.Bucket,
		presignExpiry: cfg.PresignExpiry,
		logger:        logger,
	}
	if store.presignExpiry <= 0 {
		store.presignExpiry = 7 * 24 * time.Hour
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Put 上传对象，progress每收到一段已上传的字节就被读取一次
func (s *MinIOStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress io.Reader) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		Progress:    progress,
	})
	if err != nil {
		return apperrors.NewStorageError("upload object failed", err)
	}
	return nil
}

// PresignedURL 生成限时下载地址
func (s *MinIOStore) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, nil)
	if err != nil {
		return "", apperrors.NewStorageError("presign object failed", err)
	}
	return u.String(), nil
}

// Remove 删除对象
func (s *MinIOStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.NewStorageError("remove object failed", err)
	}
	return nil
}

// Fetch 按对象键读取内容
func (s *MinIOStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.NewFetchError("open object failed", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, apperrors.NewFetchError(fmt.Sprintf("object %s does not exist", key), err)
		}
		return nil, apperrors.NewFetchError("read object failed", err)
	}
	return data, nil
}

// Ping 用于健康检查
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// MinIOContentSource 有对象键时从bucket读取，否则交给fallback按下载地址获取
type MinIOContentSource struct {
	store    *MinIOStore
	fallback knowledge.ContentSource
}

// NewMinIOContentSource 创建内容源
func NewMinIOContentSource(store *MinIOStore, fallback knowledge.ContentSource) *MinIOContentSource {
	return &MinIOContentSource{store: store, fallback: fallback}
}

func (s *MinIOContentSource) Fetch(ctx context.Context, doc *models.Document) ([]byte, error) {
	if doc.ObjectKey != "" && s.store != nil {
		return s.store.Fetch(ctx, doc.ObjectKey)
	}
	if s.fallback == nil {
		return nil, apperrors.NewFetchError("document has no object key", nil)
	}
	return s.fallback.Fetch(ctx, doc)
}
