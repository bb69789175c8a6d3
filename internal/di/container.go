package di

import (
	"fmt"
	"sync"

	"github.com/aihub/pdfchat/internal/config"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Lifecycle 按注册的逆序执行清理
type Lifecycle struct {
	mu    sync.Mutex
	hooks []func() error
}

// Append 注册清理函数
func (l *Lifecycle) Append(hook func() error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// Shutdown 尽力执行所有清理，返回遇到的错误
func (l *Lifecycle) Shutdown() []error {
	l.mu.Lock()
	hooks := l.hooks
	l.hooks = nil
	l.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// NewContainer 创建并注册全部依赖
func NewContainer(cfg *config.Config, logger *zap.Logger) (*dig.Container, *Lifecycle, error) {
	container := dig.New()
	lifecycle := &Lifecycle{}

	base := []interface{}{
		func() *config.Config { return cfg },
		func() *zap.Logger { return logger },
		func() *Lifecycle { return lifecycle },
	}
	for _, constructor := range append(base, providers()...) {
		if err := container.Provide(constructor); err != nil {
			return nil, nil, fmt.Errorf("register provider: %w", err)
		}
	}

	return container, lifecycle, nil
}
