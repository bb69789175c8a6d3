package database

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe 单个依赖的健康探测
type Probe func(ctx context.Context) error

// ComponentStatus 单个依赖的检查结果
type ComponentStatus struct {
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
	ResponseTime string `json:"response_time"`
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Healthy    bool                       `json:"healthy"`
	LastCheck  time.Time                  `json:"last_check"`
	Components map[string]ComponentStatus `json:"components"`
}

// HealthChecker 依赖健康检查器
type HealthChecker struct {
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	probes map[string]Probe
	last   HealthCheckResult
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		logger:  logger,
		timeout: 5 * time.Second,
		probes:  make(map[string]Probe),
	}
}

// Register 注册一个依赖探测
func (hc *HealthChecker) Register(name string, probe Probe) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.probes[name] = probe
}

// RegisterSQL 注册数据库ping
func (hc *HealthChecker) RegisterSQL(name string, db *sql.DB) {
	hc.Register(name, db.PingContext)
}

// Check 依次执行所有探测
func (hc *HealthChecker) Check(ctx context.Context) HealthCheckResult {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.probes))
	for name := range hc.probes {
		names = append(names, name)
	}
	probes := make(map[string]Probe, len(hc.probes))
	for name, probe := range hc.probes {
		probes[name] = probe
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	result := HealthCheckResult{
		Healthy:    true,
		LastCheck:  time.Now(),
		Components: make(map[string]ComponentStatus, len(names)),
	}

	for _, name := range names {
		probeCtx, cancel := context.WithTimeout(ctx, hc.timeout)
		start := time.Now()
		err := probes[name](probeCtx)
		cancel()

		status := ComponentStatus{Healthy: err == nil, ResponseTime: time.Since(start).String()}
		if err != nil {
			status.Error = err.Error()
			result.Healthy = false
			hc.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
		}
		result.Components[name] = status
	}

	hc.mu.Lock()
	hc.last = result
	hc.mu.Unlock()

	return result
}

// IsHealthy 最近一次检查是否全部通过
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.last.Healthy
}
