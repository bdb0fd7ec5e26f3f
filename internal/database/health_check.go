package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/logger"
)

// HealthChecker 数据库健康检查器
// 后台定期ping，/ready端点读缓存的结果而不是每次都打数据库
type HealthChecker struct {
	db            *sql.DB
	checkInterval time.Duration
	retryDelay    time.Duration
	maxRetries    int

	mu        sync.RWMutex
	isHealthy bool
	lastCheck time.Time
	lastError error
	running   bool
	stopChan  chan struct{}
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(db *sql.DB) *HealthChecker {
	return &HealthChecker{
		db:            db,
		checkInterval: 30 * time.Second,
		retryDelay:    5 * time.Second,
		maxRetries:    3,
		stopChan:      make(chan struct{}),
	}
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// Start 启动后台定期检查，阻塞直到ctx结束或Stop被调用
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	interval := hc.checkInterval
	hc.mu.Unlock()

	logger.Info("database health checker started")
	hc.checkAndRetry(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.markStopped()
			return
		case <-hc.stopChan:
			hc.markStopped()
			return
		case <-ticker.C:
			hc.checkAndRetry(ctx)
		}
	}
}

// Stop 停止后台检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.running {
		return
	}
	close(hc.stopChan)
}

func (hc *HealthChecker) markStopped() {
	hc.mu.Lock()
	hc.running = false
	hc.mu.Unlock()
	logger.Info("database health checker stopped")
}

// Check 执行单次ping
func (hc *HealthChecker) Check(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := hc.db.PingContext(ctx)
	responseTime := time.Since(start)

	hc.mu.Lock()
	hc.lastCheck = time.Now()
	wasHealthy := hc.isHealthy
	hc.lastError = err
	hc.isHealthy = err == nil
	hc.mu.Unlock()

	if err != nil {
		logger.Warn("database health check failed",
			zap.Duration("response_time", responseTime),
			zap.Error(err))
		return err
	}
	if !wasHealthy {
		logger.Info("database connection restored",
			zap.Duration("response_time", responseTime))
	}
	return nil
}

// checkAndRetry 检查失败后按线性退避重试
func (hc *HealthChecker) checkAndRetry(ctx context.Context) {
	if err := hc.Check(ctx); err == nil {
		return
	}

	for i := 0; i < hc.maxRetries; i++ {
		select {
		case <-time.After(hc.retryDelay * time.Duration(i+1)):
			if err := hc.Check(ctx); err == nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
	logger.Error("database unreachable after retries", zap.Int("retries", hc.maxRetries))
}

// IsHealthy 当前健康状态
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// GetHealthResult 供就绪端点输出的检查快照
func (hc *HealthChecker) GetHealthResult() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Healthy:   hc.isHealthy,
		LastCheck: hc.lastCheck,
	}
	if hc.lastError != nil {
		result.LastError = hc.lastError.Error()
	}
	return result
}

// WaitForHealthy 阻塞等待数据库就绪，超时返回错误
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if hc.IsHealthy() {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			return timeoutCtx.Err()
		case <-ticker.C:
		}
	}
}
