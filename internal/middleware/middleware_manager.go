package middleware

import (
	"context"
	"time"

	"github.com/studyhub/backend-go/internal/database"
	"github.com/studyhub/backend-go/internal/kafka"
	"github.com/studyhub/backend-go/internal/logger"

	"go.uber.org/zap"
)

// MiddlewareManager 后端服务管理器，统一初始化与健康检查入口
type MiddlewareManager struct {
	ai           *AIService
	vector       *VectorService
	questionBank *QuestionBankService
	minio        *MinIOService
}

var globalMiddlewareManager *MiddlewareManager

// HealthStatus 健康状态
type HealthStatus struct {
	Status    string        `json:"status"` // healthy, unhealthy, degraded
	Latency   time.Duration `json:"latency,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewMiddlewareManager 初始化检索所需的全部后端
// autoCreateCollections只在摄取进程为真。向量存储或题库建不出来是致命错误，
// 归档属于可选能力，失败只降级。
func NewMiddlewareManager(autoCreateCollections bool) (*MiddlewareManager, error) {
	if globalMiddlewareManager != nil {
		return globalMiddlewareManager, nil
	}

	manager := &MiddlewareManager{}
	manager.ai = NewAIService()

	vector, err := NewVectorService(autoCreateCollections)
	if err != nil {
		return nil, err
	}
	manager.vector = vector

	bank, err := NewQuestionBankService(manager.ai.Embedder())
	if err != nil {
		return nil, err
	}
	manager.questionBank = bank

	minioService, err := NewMinIOService()
	if err != nil {
		logger.Logger.Warn("source archival unavailable", zap.Error(err))
	} else {
		manager.minio = minioService
	}

	globalMiddlewareManager = manager
	return manager, nil
}

// GetMiddlewareManager 获取全局管理器实例
func GetMiddlewareManager() *MiddlewareManager {
	return globalMiddlewareManager
}

// CheckHealth 检查所有后端的健康状态
func (m *MiddlewareManager) CheckHealth(ctx context.Context) map[string]HealthStatus {
	health := make(map[string]HealthStatus)
	now := time.Now()

	// PostgreSQL台账，未启用时属于降级而不是故障
	if database.DB != nil {
		start := time.Now()
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		health["postgres"] = pingStatus(err, time.Since(start))
	} else {
		health["postgres"] = HealthStatus{
			Status:    "degraded",
			Message:   "ingestion ledger disabled",
			Timestamp: now,
		}
	}

	// Redis答案缓存
	if database.RedisClient != nil {
		start := time.Now()
		err := database.RedisClient.Ping(ctx).Err()
		health["redis"] = pingStatus(err, time.Since(start))
	} else {
		health["redis"] = HealthStatus{
			Status:    "degraded",
			Message:   "redis not configured",
			Timestamp: now,
		}
	}

	// Kafka事件队列
	if kafka.GetProducer() != nil {
		health["kafka"] = HealthStatus{Status: "healthy", Timestamp: now}
	} else {
		health["kafka"] = HealthStatus{
			Status:    "degraded",
			Message:   "kafka not configured",
			Timestamp: now,
		}
	}

	// 向量存储
	if m.vector.Ready() {
		health["vector_store"] = HealthStatus{Status: "healthy", Timestamp: now}
	} else {
		health["vector_store"] = HealthStatus{
			Status:    "unhealthy",
			Message:   "vector store not ready",
			Timestamp: now,
		}
	}

	// 题库
	if m.questionBank.Ready() {
		health["question_bank"] = HealthStatus{Status: "healthy", Timestamp: now}
	} else {
		health["question_bank"] = HealthStatus{
			Status:    "unhealthy",
			Message:   "question bank not ready",
			Timestamp: now,
		}
	}

	// 模型服务
	if m.ai.Ready() {
		health["ai"] = HealthStatus{Status: "healthy", Timestamp: now}
	} else {
		health["ai"] = HealthStatus{
			Status:    "degraded",
			Message:   "model credentials missing",
			Timestamp: now,
		}
	}

	// 对象存储归档
	if m.minio != nil {
		start := time.Now()
		err := m.minio.HealthCheck(ctx)
		health["object_storage"] = pingStatus(err, time.Since(start))
	} else {
		health["object_storage"] = HealthStatus{
			Status:    "degraded",
			Message:   "source archival disabled",
			Timestamp: now,
		}
	}

	return health
}

func pingStatus(err error, latency time.Duration) HealthStatus {
	if err != nil {
		return HealthStatus{
			Status:    "unhealthy",
			Latency:   latency,
			Message:   err.Error(),
			Timestamp: time.Now(),
		}
	}
	return HealthStatus{
		Status:    "healthy",
		Latency:   latency,
		Timestamp: time.Now(),
	}
}

// Ready 检索链路必需的后端全部就绪才返回真
func (m *MiddlewareManager) Ready() bool {
	if m == nil {
		return false
	}
	return m.ai.Ready() && m.vector.Ready() && m.questionBank.Ready()
}

// GetAI 获取模型服务
func (m *MiddlewareManager) GetAI() *AIService {
	return m.ai
}

// GetVector 获取向量存储服务
func (m *MiddlewareManager) GetVector() *VectorService {
	return m.vector
}

// GetQuestionBank 获取题库服务
func (m *MiddlewareManager) GetQuestionBank() *QuestionBankService {
	return m.questionBank
}

// GetMinIO 获取归档服务，未启用时为nil
func (m *MiddlewareManager) GetMinIO() *MinIOService {
	return m.minio
}
