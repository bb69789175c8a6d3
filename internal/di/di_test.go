package di

import (
	"errors"
	"testing"

	"github.com/aihub/pdfchat/internal/config"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Knowledge.VectorStore.Provider = "memory"
	cfg.Knowledge.Lock.Provider = "local"
	cfg.Storage.Provider = "http"
	return cfg
}

func TestNewContainer_ResolvesInProcessComponents(t *testing.T) {
	container, lifecycle, err := NewContainer(testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, lifecycle)

	err = container.Invoke(func(store knowledge.VectorStore, locker knowledge.BuildLocker, embedder knowledge.Embedder) {
		assert.True(t, store.Ready())
		assert.IsType(t, knowledge.LocalBuildLocker{}, locker)
		assert.False(t, embedder.Ready())
	})
	assert.NoError(t, err)
}

func TestNewContainer_RedisLockWithoutRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Knowledge.Lock.Provider = "redis"

	container, _, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = container.Invoke(func(locker knowledge.BuildLocker) {})
	assert.Error(t, err)
}

func TestLifecycle_ShutdownRunsInReverse(t *testing.T) {
	lifecycle := &Lifecycle{}
	var order []int
	lifecycle.Append(func() error { order = append(order, 1); return nil })
	lifecycle.Append(func() error { order = append(order, 2); return errors.New("close failed") })
	lifecycle.Append(func() error { order = append(order, 3); return nil })

	errs := lifecycle.Shutdown()
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.Len(t, errs, 1)
	assert.Empty(t, lifecycle.Shutdown())
}
