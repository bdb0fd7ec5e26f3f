package knowledge

import (
	"context"
	"fmt"

	"github.com/studyhub/backend-go/internal/dashscope"
	"github.com/studyhub/backend-go/internal/errors"
)

// DashScopeEmbedder 使用阿里云DashScope Embedding API（基于统一服务）
type DashScopeEmbedder struct {
	service    *dashscope.Service
	model      string
	dimensions int
}

// 千问Embedding模型维度映射
var dashscopeEmbeddingDimensions = map[string]int{
	"text-embedding-v1": 1536,
	"text-embedding-v2": 1536,
	"text-embedding-v3": 1536, // 支持自定义维度
	"text-embedding-v4": 1536, // 支持自定义维度
}

// NewDashScopeEmbedder 创建DashScope向量化客户端，全局服务未初始化时返回占位实现
func NewDashScopeEmbedder(model string) Embedder {
	service := dashscope.GetGlobalService()
	if service == nil || !service.Ready() {
		return &NoopEmbedder{}
	}

	if model == "" {
		model = "text-embedding-v1"
	}
	dims, ok := dashscopeEmbeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &DashScopeEmbedder{
		service:    service,
		model:      model,
		dimensions: dims,
	}
}

func (e *DashScopeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *DashScopeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.service == nil || !e.service.Ready() {
		return nil, errors.NewConfigError(errors.ErrCodeCredentialsMissing, "DashScope服务未初始化")
	}

	req := dashscope.EmbeddingRequest{
		Model:          e.model,
		Input:          texts,
		EncodingFormat: "float",
	}
	// v3和v4模型支持在请求里指定输出维度
	if e.model == "text-embedding-v3" || e.model == "text-embedding-v4" {
		req.Dimensions = &e.dimensions
	}

	resp, err := e.service.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeEmbeddingFailed, "调用DashScope向量化接口失败").WithCause(err)
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
		converted := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			converted[i] = float32(v)
		}
		vectors[item.Index] = converted
	}
	for i, v := range vectors {
		if v == nil {
			return nil, errors.NewBackendError(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("第%d条文本未返回向量", i))
		}
	}
	return vectors, nil
}

func (e *DashScopeEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *DashScopeEmbedder) Ready() bool {
	return e.service != nil && e.service.Ready()
}
