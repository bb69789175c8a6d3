package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/kafka"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StatusCache 保存每个文档最近一次上传状态，供客户端轮询
type StatusCache interface {
	StatusListener
	Latest(ctx context.Context, documentID string) (*UploadEvent, error)
}

const defaultStatusTTL = time.Hour

// RedisStatusCache Redis状态缓存
type RedisStatusCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStatusCache 创建Redis状态缓存
func NewRedisStatusCache(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisStatusCache {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &RedisStatusCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisStatusCache) statusKey(documentID string) string {
	return fmt.Sprintf("pdfchat:doc:status:%s", documentID)
}

// OnStatus 写入失败只记录日志，不影响上传流程
func (c *RedisStatusCache) OnStatus(ctx context.Context, event UploadEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Warn("failed to marshal upload status", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.statusKey(event.DocumentID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache upload status",
			zap.String("documentID", event.DocumentID),
			zap.Error(err))
	}
}

func (c *RedisStatusCache) Latest(ctx context.Context, documentID string) (*UploadEvent, error) {
	data, err := c.client.Get(ctx, c.statusKey(documentID)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NewNotFoundError("Upload status")
	}
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "read upload status failed").WithCause(err)
	}

	var event UploadEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "decode upload status failed").WithCause(err)
	}
	return &event, nil
}

// MemoryStatusCache 未启用Redis时使用
type MemoryStatusCache struct {
	mu     sync.RWMutex
	events map[string]UploadEvent
}

// NewMemoryStatusCache 创建内存状态缓存
func NewMemoryStatusCache() *MemoryStatusCache {
	return &MemoryStatusCache{events: make(map[string]UploadEvent)}
}

func (c *MemoryStatusCache) OnStatus(ctx context.Context, event UploadEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[event.DocumentID] = event
}

func (c *MemoryStatusCache) Latest(ctx context.Context, documentID string) (*UploadEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	event, ok := c.events[documentID]
	if !ok {
		return nil, apperrors.NewNotFoundError("Upload status")
	}
	return &event, nil
}

// KafkaStatusListener 把状态事件发布到Kafka
type KafkaStatusListener struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewKafkaStatusListener 创建Kafka状态发布者
func NewKafkaStatusListener(producer *kafka.Producer, logger *zap.Logger) *KafkaStatusListener {
	return &KafkaStatusListener{producer: producer, logger: logger}
}

func (l *KafkaStatusListener) OnStatus(ctx context.Context, event UploadEvent) {
	err := l.producer.SendStatus(&kafka.DocumentStatusMessage{
		DocumentID: event.DocumentID,
		OwnerID:    event.OwnerID,
		Status:     event.Status,
		Progress:   event.Progress,
		ErrorCode:  event.ErrorCode,
		Message:    event.Message,
		Timestamp:  event.At,
	})
	if err != nil {
		l.logger.Warn("failed to publish upload status",
			zap.String("documentID", event.DocumentID),
			zap.String("status", event.Status),
			zap.Error(err))
	}
}
