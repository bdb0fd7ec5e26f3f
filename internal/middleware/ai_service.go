package middleware

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/dashscope"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/logger"
)

// AIService 模型服务，按配置选择向量化与生成实现
type AIService struct {
	embedder  knowledge.Embedder
	generator knowledge.Generator
}

var globalAIService *AIService

// NewAIService 创建模型服务，凭据缺失时回落到占位实现而不是报错
func NewAIService() *AIService {
	if globalAIService != nil {
		return globalAIService
	}

	cfg := config.AppConfig
	if cfg.AI.DashScopeAPIKey != "" {
		dashscope.InitGlobalService(cfg.AI.DashScopeAPIKey)
	}

	service := &AIService{
		embedder:  buildEmbedder(cfg),
		generator: buildGenerator(cfg),
	}
	logger.Logger.Info("ai providers initialized",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("generation_provider", cfg.Generation.Provider))

	globalAIService = service
	return service
}

func buildEmbedder(cfg *config.Config) knowledge.Embedder {
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.AI.OpenAIAPIKey == "" {
			logger.Logger.Warn("openai api key missing, embedder falls back to noop")
			return knowledge.NoopEmbedder{}
		}
		return knowledge.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.OpenAIBaseURL, cfg.Embedding.Model)
	case "dashscope":
		return knowledge.NewDashScopeEmbedder(cfg.Embedding.Model)
	default:
		return knowledge.NewLocalEmbedder(cfg.Retrieval.EmbeddingDimension)
	}
}

func buildGenerator(cfg *config.Config) knowledge.Generator {
	switch cfg.Generation.Provider {
	case "openai":
		if cfg.AI.OpenAIAPIKey == "" {
			logger.Logger.Warn("openai api key missing, generator falls back to noop")
			return knowledge.NoopGenerator{}
		}
		return knowledge.NewOpenAIGenerator(cfg.AI.OpenAIAPIKey, cfg.AI.OpenAIBaseURL,
			cfg.Generation.Model, cfg.AI.MaxTokens, float32(cfg.AI.Temperature))
	case "dashscope":
		return knowledge.NewDashScopeGenerator(cfg.Generation.Model, cfg.AI.MaxTokens, cfg.AI.Temperature)
	default:
		return knowledge.NoopGenerator{}
	}
}

// GetAIService 获取全局模型服务实例
func GetAIService() *AIService {
	return globalAIService
}

// Embedder 获取向量化实现
func (s *AIService) Embedder() knowledge.Embedder {
	return s.embedder
}

// Generator 获取生成实现
func (s *AIService) Generator() knowledge.Generator {
	return s.generator
}

// ValidateDimensions 启动期校验向量化输出维度与索引配置一致
func (s *AIService) ValidateDimensions() error {
	configured := config.AppConfig.Retrieval.EmbeddingDimension
	actual := s.embedder.Dimensions()
	if configured > 0 && actual > 0 && actual != configured {
		return errors.NewConfigError(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("向量化模型输出%d维，索引配置为%d维", actual, configured))
	}
	return nil
}

// Ready 向量化与生成都可用才算就绪
func (s *AIService) Ready() bool {
	return s != nil && s.embedder.Ready() && s.generator.Ready()
}
