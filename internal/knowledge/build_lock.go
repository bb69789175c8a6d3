package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	retry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// BuildLocker 跨进程的构建互斥，进程内的合并由IndexManager完成
type BuildLocker interface {
	Acquire(ctx context.Context, namespace string) (release func(), err error)
}

// LocalBuildLocker 单进程部署使用，不做额外互斥
type LocalBuildLocker struct{}

func (LocalBuildLocker) Acquire(ctx context.Context, namespace string) (func(), error) {
	return func() {}, nil
}

// ErrLockHeld 锁被其他持有者占用
var ErrLockHeld = errors.New("build lock held by another worker")

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisBuildLocker 基于SET NX PX的分布式锁
type RedisBuildLocker struct {
	client      redis.UniversalClient
	prefix      string
	ttl         time.Duration
	waitTimeout time.Duration
	logger      *zap.Logger
}

// NewRedisBuildLocker 创建Redis构建锁
func NewRedisBuildLocker(client redis.UniversalClient, ttl, waitTimeout time.Duration, logger *zap.Logger) *RedisBuildLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Minute
	}
	return &RedisBuildLocker{
		client:      client,
		prefix:      "pdfchat:lock:index:",
		ttl:         ttl,
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

func (l *RedisBuildLocker) Acquire(ctx context.Context, namespace string) (func(), error) {
	key := l.prefix + namespace
	token := uuid.NewString()

	backoff := retry.NewExponential(100 * time.Millisecond)
	backoff = retry.WithCappedDuration(2*time.Second, backoff)
	backoff = retry.WithMaxDuration(l.waitTimeout, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(ErrLockHeld)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("acquire build lock for %s: %w", namespace, err)
	}

	l.logger.Debug("build lock acquired", zap.String("namespace", namespace))

	release := func() {
		// 释放不受调用方取消影响
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("release build lock failed", zap.String("namespace", namespace), zap.Error(err))
		}
	}
	return release, nil
}
