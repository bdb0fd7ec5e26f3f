package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/logger"
)

// QuestionBankService 题库混合检索服务
type QuestionBankService struct {
	bank     knowledge.QuestionBank
	provider string
}

var globalQuestionBankService *QuestionBankService

// NewQuestionBankService 按配置构建题库后端，向量化实现与检索侧共用
func NewQuestionBankService(embedder knowledge.Embedder) (*QuestionBankService, error) {
	if globalQuestionBankService != nil {
		return globalQuestionBankService, nil
	}

	cfg := config.AppConfig
	var bank knowledge.QuestionBank
	switch cfg.Search.Provider {
	case "elasticsearch":
		var err error
		bank, err = knowledge.NewElasticQuestionBank(
			cfg.Search.Elasticsearch.Addresses,
			cfg.Search.Elasticsearch.Username,
			cfg.Search.Elasticsearch.Password,
			cfg.Search.Elasticsearch.APIKey,
			cfg.Retrieval.HybridCollectionName,
			cfg.Retrieval.EmbeddingDimension,
			embedder,
		)
		if err != nil {
			return nil, err
		}
	default:
		bank = knowledge.NewMemoryQuestionBank(embedder)
	}

	globalQuestionBankService = &QuestionBankService{
		bank:     bank,
		provider: cfg.Search.Provider,
	}
	logger.Logger.Info("question bank initialized",
		zap.String("provider", cfg.Search.Provider),
		zap.String("index", cfg.Retrieval.HybridCollectionName))
	return globalQuestionBankService, nil
}

// GetQuestionBankService 获取全局题库服务实例
func GetQuestionBankService() *QuestionBankService {
	return globalQuestionBankService
}

// Bank 获取底层题库
func (s *QuestionBankService) Bank() knowledge.QuestionBank {
	return s.bank
}

// EnsureReady 校验题库索引存在且mapping一致
func (s *QuestionBankService) EnsureReady(ctx context.Context) error {
	return s.bank.EnsureReady(ctx)
}

// Ready 检查服务是否就绪
func (s *QuestionBankService) Ready() bool {
	return s != nil && s.bank != nil && s.bank.Ready()
}
