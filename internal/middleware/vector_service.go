package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/logger"
)

// VectorService 向量存储服务
type VectorService struct {
	store    knowledge.VectorStore
	provider string
}

var globalVectorService *VectorService

// NewVectorService 按配置构建向量存储
// autoCreate只在摄取进程为真，检索进程里集合缺失属于配置错误。
func NewVectorService(autoCreate bool) (*VectorService, error) {
	if globalVectorService != nil {
		return globalVectorService, nil
	}

	cfg := config.AppConfig
	var store knowledge.VectorStore
	switch cfg.VectorStore.Provider {
	case "milvus":
		var err error
		store, err = knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:              cfg.VectorStore.Milvus.Address,
			Username:             cfg.VectorStore.Milvus.Username,
			Password:             cfg.VectorStore.Milvus.Password,
			Database:             cfg.VectorStore.Milvus.Database,
			Collection:           cfg.Retrieval.VectorIndexName,
			VectorDim:            cfg.Retrieval.EmbeddingDimension,
			UseTLS:               cfg.VectorStore.Milvus.TLS,
			AutoCreateCollection: autoCreate,
		})
		if err != nil {
			return nil, err
		}
	default:
		store = knowledge.NewMemoryVectorStore(cfg.Retrieval.EmbeddingDimension)
	}

	globalVectorService = &VectorService{
		store:    store,
		provider: cfg.VectorStore.Provider,
	}
	logger.Logger.Info("vector store initialized",
		zap.String("provider", cfg.VectorStore.Provider),
		zap.String("collection", cfg.Retrieval.VectorIndexName))
	return globalVectorService, nil
}

// GetVectorService 获取全局向量存储服务实例
func GetVectorService() *VectorService {
	return globalVectorService
}

// Store 获取底层向量存储
func (s *VectorService) Store() knowledge.VectorStore {
	return s.store
}

// EnsureReady 校验集合存在且维度一致
func (s *VectorService) EnsureReady(ctx context.Context) error {
	return s.store.EnsureReady(ctx)
}

// Ready 检查服务是否就绪
func (s *VectorService) Ready() bool {
	return s != nil && s.store != nil && s.store.Ready()
}
