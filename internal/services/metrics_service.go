package services

import (
	stderrors "errors"
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/logger"
)

// MetricsService 管线Prometheus指标
// 每个实例持有独立registry，避免测试中重复注册冲突
type MetricsService struct {
	registry *prometheus.Registry

	documentsIngested *prometheus.CounterVec
	chunksUpserted    *prometheus.CounterVec
	filesSkipped      *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec

	// 通用接口动态注册的指标
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewMetricsService 创建指标服务并注册管线指标
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	ms := &MetricsService{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	ms.documentsIngested = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_documents_total",
			Help: "Total number of page documents ingested",
		},
		[]string{"namespace"},
	)

	ms.chunksUpserted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_chunks_upserted_total",
			Help: "Total number of chunks upserted into the vector index",
		},
		[]string{"namespace"},
	)

	ms.filesSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_files_skipped_total",
			Help: "Total number of source files skipped during ingestion",
		},
		[]string{"namespace", "reason"},
	)

	ms.retrievalDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_request_duration_seconds",
			Help:    "Duration of retrieval requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	ms.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answer_cache_hits_total",
			Help: "Total number of answer cache hits",
		},
		[]string{"operation"},
	)

	return ms
}

// Handler 返回/metrics的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{})
}

// Registerer 返回底层registry，供其他组件注册自有指标
func (ms *MetricsService) Registerer() prometheus.Registerer {
	return ms.registry
}

// RecordDocumentsIngested 记录摄取的页文档数
func (ms *MetricsService) RecordDocumentsIngested(namespace string, count int) {
	if ms == nil || count <= 0 {
		return
	}
	ms.documentsIngested.WithLabelValues(namespace).Add(float64(count))
}

// RecordChunksUpserted 记录写入向量索引的分块数
func (ms *MetricsService) RecordChunksUpserted(namespace string, count int) {
	if ms == nil || count <= 0 {
		return
	}
	ms.chunksUpserted.WithLabelValues(namespace).Add(float64(count))
}

// RecordFileSkipped 记录被跳过的文件，reason用错误码保持基数可控
func (ms *MetricsService) RecordFileSkipped(namespace, reason string) {
	if ms == nil {
		return
	}
	ms.filesSkipped.WithLabelValues(namespace, reason).Inc()
}

// ObserveRetrieval 记录检索请求耗时
func (ms *MetricsService) ObserveRetrieval(operation, status string, seconds float64) {
	if ms == nil {
		return
	}
	ms.retrievalDuration.WithLabelValues(operation, status).Observe(seconds)
}

// RecordCacheHit 记录缓存命中
func (ms *MetricsService) RecordCacheHit(operation string) {
	if ms == nil {
		return
	}
	ms.cacheHits.WithLabelValues(operation).Inc()
}

// IncrementCounter 通用计数器，首次调用按标签键集合注册
func (ms *MetricsService) IncrementCounter(name string, labels map[string]string) {
	if ms == nil {
		return
	}

	vec := ms.counterVec(name, labelKeys(labels))
	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		logger.Warn("metrics counter label mismatch", zap.String("name", name), zap.Error(err))
		return
	}
	counter.Inc()
}

// ObserveHistogram 通用直方图
func (ms *MetricsService) ObserveHistogram(name string, value float64, labels map[string]string) {
	if ms == nil {
		return
	}

	vec := ms.histogramVec(name, labelKeys(labels))
	observer, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		logger.Warn("metrics histogram label mismatch", zap.String("name", name), zap.Error(err))
		return
	}
	observer.Observe(value)
}

// SetGauge 通用仪表
func (ms *MetricsService) SetGauge(name string, value float64, labels map[string]string) {
	if ms == nil {
		return
	}

	vec := ms.gaugeVec(name, labelKeys(labels))
	gauge, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		logger.Warn("metrics gauge label mismatch", zap.String("name", name), zap.Error(err))
		return
	}
	gauge.Set(value)
}

func (ms *MetricsService) counterVec(name string, keys []string) *prometheus.CounterVec {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if vec, ok := ms.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, keys)
	if existing, ok := ms.registerVec(name, vec).(*prometheus.CounterVec); ok {
		vec = existing
	}
	ms.counters[name] = vec
	return vec
}

func (ms *MetricsService) histogramVec(name string, keys []string) *prometheus.HistogramVec {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if vec, ok := ms.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: name, Help: name, Buckets: prometheus.DefBuckets}, keys)
	if existing, ok := ms.registerVec(name, vec).(*prometheus.HistogramVec); ok {
		vec = existing
	}
	ms.histograms[name] = vec
	return vec
}

func (ms *MetricsService) gaugeVec(name string, keys []string) *prometheus.GaugeVec {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if vec, ok := ms.gauges[name]; ok {
		return vec
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, keys)
	if existing, ok := ms.registerVec(name, vec).(*prometheus.GaugeVec); ok {
		vec = existing
	}
	ms.gauges[name] = vec
	return vec
}

// registerVec 注册collector，重名时复用已注册的那个，其余错误只告警
func (ms *MetricsService) registerVec(name string, vec prometheus.Collector) prometheus.Collector {
	if err := ms.registry.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return already.ExistingCollector
		}
		logger.Warn("metrics registration failed", zap.String("name", name), zap.Error(err))
	}
	return vec
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
