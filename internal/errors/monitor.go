package errors

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorMonitor 错误监控器
type ErrorMonitor struct {
	errorCounter *prometheus.CounterVec
	responseTime *prometheus.HistogramVec

	// 内存统计
	stats      map[string]*ErrorStats
	statsMutex sync.RWMutex

	windowSize time.Duration
}

// ErrorStats 错误统计信息
type ErrorStats struct {
	Code        string
	Type        string
	Count       int64
	FirstSeen   time.Time
	LastSeen    time.Time
	AvgResponse time.Duration
}

// NewErrorMonitor 创建错误监控器，指标注册到给定registry
func NewErrorMonitor(reg prometheus.Registerer) *ErrorMonitor {
	em := &ErrorMonitor{
		windowSize: 5 * time.Minute,
		stats:      make(map[string]*ErrorStats),
	}

	em.registerMetrics(reg)
	em.startCleanupTask()

	return em
}

// registerMetrics 注册Prometheus指标
func (em *ErrorMonitor) registerMetrics(reg prometheus.Registerer) {
	factory := promauto.With(reg)

	em.errorCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "error_total",
			Help: "Total number of errors by code and type",
		},
		[]string{"code", "type", "endpoint"},
	)

	em.responseTime = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "error_response_time_seconds",
			Help:    "Response time for error requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"code", "endpoint"},
	)
}

// RecordError 记录错误
func (em *ErrorMonitor) RecordError(appErr *AppError, endpoint string, responseTime time.Duration) {
	if em == nil || appErr == nil {
		return
	}

	em.errorCounter.WithLabelValues(string(appErr.Code), getErrorTypeString(appErr.Type), endpoint).Inc()
	em.responseTime.WithLabelValues(string(appErr.Code), endpoint).Observe(responseTime.Seconds())

	em.updateStats(appErr, endpoint, responseTime)
}

// updateStats 更新内存统计
func (em *ErrorMonitor) updateStats(appErr *AppError, endpoint string, responseTime time.Duration) {
	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()

	key := string(appErr.Code) + ":" + endpoint

	stats, exists := em.stats[key]
	if !exists {
		stats = &ErrorStats{
			Code:      string(appErr.Code),
			Type:      getErrorTypeString(appErr.Type),
			FirstSeen: time.Now(),
		}
		em.stats[key] = stats
	}

	stats.Count++
	stats.LastSeen = time.Now()

	// 简单移动平均
	if stats.Count == 1 {
		stats.AvgResponse = responseTime
	} else {
		stats.AvgResponse = (stats.AvgResponse + responseTime) / 2
	}
}

// GetStats 获取错误统计信息副本
func (em *ErrorMonitor) GetStats() map[string]*ErrorStats {
	em.statsMutex.RLock()
	defer em.statsMutex.RUnlock()

	result := make(map[string]*ErrorStats)
	for k, v := range em.stats {
		statsCopy := *v
		result[k] = &statsCopy
	}

	return result
}

// GetTopErrors 获取出现次数最多的错误
func (em *ErrorMonitor) GetTopErrors(limit int) []*ErrorStats {
	em.statsMutex.RLock()
	defer em.statsMutex.RUnlock()

	statsList := make([]*ErrorStats, 0, len(em.stats))
	for _, stats := range em.stats {
		statsCopy := *stats
		statsList = append(statsList, &statsCopy)
	}

	sort.Slice(statsList, func(i, j int) bool {
		return statsList[i].Count > statsList[j].Count
	})

	if limit > 0 && len(statsList) > limit {
		statsList = statsList[:limit]
	}

	return statsList
}

// startCleanupTask 启动过期统计清理任务
func (em *ErrorMonitor) startCleanupTask() {
	go func() {
		ticker := time.NewTicker(em.windowSize)
		defer ticker.Stop()

		for range ticker.C {
			em.cleanupOldStats()
		}
	}()
}

// cleanupOldStats 清理旧的统计信息，保留2个窗口期
func (em *ErrorMonitor) cleanupOldStats() {
	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()

	threshold := time.Now().Add(-em.windowSize * 2)

	for key, stats := range em.stats {
		if stats.LastSeen.Before(threshold) {
			delete(em.stats, key)
		}
	}
}

// Reset 重置所有统计信息
func (em *ErrorMonitor) Reset() {
	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()

	em.stats = make(map[string]*ErrorStats)
}
