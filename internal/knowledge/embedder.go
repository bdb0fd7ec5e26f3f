package knowledge

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/studyhub/backend-go/internal/errors"
)

// embeddingDimensions 常见模型的向量维度
var embeddingDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Embedder 文本向量化接口
// Dimensions 返回的维度在启动阶段与向量索引配置比对，不一致直接拒绝启动。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 未配置向量化服务时的占位实现
type NoopEmbedder struct{}

func (NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.NewConfigError(errors.ErrCodeCredentialsMissing, "向量化服务未配置")
}

func (NoopEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.NewConfigError(errors.ErrCodeCredentialsMissing, "向量化服务未配置")
}

func (NoopEmbedder) Dimensions() int {
	return 0
}

func (NoopEmbedder) Ready() bool {
	return false
}

// OpenAIEmbedder 调用OpenAI embeddings接口
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
	mu     sync.Mutex // 简单串行限速，避免并发打爆配额
}

// NewOpenAIEmbedder 创建OpenAI向量化客户端，baseURL为空时使用官方地址
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	dims := embeddingDimensions[model]
	if dims == 0 {
		dims = 1536
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dims:   dims,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeEmbeddingFailed, "调用OpenAI向量化接口失败").WithCause(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.NewBackendError(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("向量化结果数量不匹配: 期望%d个，返回%d个", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			continue
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, errors.NewBackendError(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("第%d条文本未返回向量", i))
		}
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
