package knowledge

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/studyhub/backend-go/internal/errors"
)

// Generator 文本生成服务
// 检索管线把它当黑盒：送进完整prompt，拿到的输出原样返回给调用方，
// 不做解析、不做改写。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Ready() bool
}

// NoopGenerator 生成服务未配置时的占位实现
type NoopGenerator struct{}

func (NoopGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.NewConfigError(errors.ErrCodeCredentialsMissing, "生成服务未配置")
}

func (NoopGenerator) Ready() bool {
	return false
}

// OpenAIGenerator 调用OpenAI chat接口生成回答
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIGenerator 创建OpenAI生成客户端，baseURL为空时使用官方地址
func NewOpenAIGenerator(apiKey, baseURL, model string, maxTokens int, temperature float32) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", errors.NewBackendError(errors.ErrCodeGenerationFailed, "调用OpenAI生成接口失败").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewBackendError(errors.ErrCodeGenerationFailed, "生成接口未返回任何结果")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) Ready() bool {
	return g.client != nil
}
