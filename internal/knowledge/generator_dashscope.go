package knowledge

import (
	"context"

	"github.com/studyhub/backend-go/internal/dashscope"
	"github.com/studyhub/backend-go/internal/errors"
)

// DashScopeGenerator 使用阿里云DashScope聊天接口生成回答
type DashScopeGenerator struct {
	service     *dashscope.Service
	model       string
	maxTokens   int
	temperature float64
}

// NewDashScopeGenerator 创建DashScope生成客户端，全局服务未初始化时返回占位实现
func NewDashScopeGenerator(model string, maxTokens int, temperature float64) Generator {
	service := dashscope.GetGlobalService()
	if service == nil || !service.Ready() {
		return &NoopGenerator{}
	}
	if model == "" {
		model = "qwen-plus"
	}
	return &DashScopeGenerator{
		service:     service,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (g *DashScopeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := dashscope.ChatRequest{
		Model: g.model,
		Messages: []dashscope.ChatMessage{
			{Role: "user", Content: prompt},
		},
	}
	if g.maxTokens > 0 {
		req.MaxTokens = &g.maxTokens
	}
	if g.temperature > 0 {
		req.Temperature = &g.temperature
	}

	resp, err := g.service.ChatCompletion(ctx, req)
	if err != nil {
		return "", errors.NewBackendError(errors.ErrCodeGenerationFailed, "调用DashScope生成接口失败").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewBackendError(errors.ErrCodeGenerationFailed, "生成接口未返回任何结果")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *DashScopeGenerator) Ready() bool {
	return g.service != nil && g.service.Ready()
}
