package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/logger"
)

// NotesService 笔记问答编排
// 流程固定：向量化查询、查配置的命名空间、按预算拼上下文、组提示词、
// 调生成服务并原样返回其输出
type NotesService struct {
	embedder  knowledge.Embedder
	store     knowledge.VectorStore
	generator knowledge.Generator
	assembler *ContextAssembler
	cache     *AnswerCache
	breaker   *CircuitBreaker
	metrics   *MetricsService

	// 摄取与检索共用同一个配置项，杜绝两边各写一个字符串的错配
	namespace     string
	topK          int
	retryAttempts int
	retryDelay    time.Duration
}

// NewNotesService 创建笔记问答服务，检索参数取自全局配置
func NewNotesService(embedder knowledge.Embedder, store knowledge.VectorStore, generator knowledge.Generator, cache *AnswerCache, metrics *MetricsService) *NotesService {
	namespace := "default"
	topK := 5
	budget := 2000
	attempts := 3
	delay := time.Second

	if cfg := config.AppConfig; cfg != nil {
		namespace = cfg.Retrieval.VectorNamespace
		topK = cfg.Retrieval.TopKNotes
		budget = cfg.Retrieval.ContextTokenBudget
		attempts = cfg.Backend.RetryAttempts
		delay = cfg.Backend.BaseDelay()
	}

	if cache == nil {
		cache = NewAnswerCache(nil, 0)
	}

	return &NotesService{
		embedder:      embedder,
		store:         store,
		generator:     generator,
		assembler:     NewContextAssembler(budget),
		cache:         cache,
		breaker:       NewCircuitBreaker("generation", 5, 2, 30*time.Second),
		metrics:       metrics,
		namespace:     namespace,
		topK:          topK,
		retryAttempts: attempts,
		retryDelay:    delay,
	}
}

// Namespace 返回检索使用的命名空间
func (s *NotesService) Namespace() string {
	return s.namespace
}

// Answer 回答一条自由文本提问，返回生成服务的原文
func (s *NotesService) Answer(ctx context.Context, queryText string) (string, error) {
	start := time.Now()
	queryText = strings.TrimSpace(queryText)

	if err := ValidateNotesQuery(queryText); err != nil {
		s.metrics.ObserveRetrieval("notes", "invalid", time.Since(start).Seconds())
		return "", err
	}

	cacheKey := NotesCacheKey(s.namespace, queryText)
	if cached, ok := s.cache.Get(ctx, cacheKey); ok {
		s.metrics.RecordCacheHit("notes")
		s.metrics.ObserveRetrieval("notes", "cached", time.Since(start).Seconds())
		return cached, nil
	}

	vector, err := s.embedQuery(ctx, queryText)
	if err != nil {
		s.metrics.ObserveRetrieval("notes", "error", time.Since(start).Seconds())
		return "", err
	}

	matches, err := s.queryStore(ctx, vector)
	if err != nil {
		s.metrics.ObserveRetrieval("notes", "error", time.Since(start).Seconds())
		return "", err
	}

	contextBlock, used := s.assembler.AssembleNotes(matches)
	if used == 0 {
		// 没有命中不是错误，带空上下文照常走生成
		logger.Info("notes query matched nothing",
			zap.String("namespace", s.namespace))
	}

	answer, err := s.generate(ctx, BuildNotesPrompt(contextBlock, queryText))
	if err != nil {
		s.metrics.ObserveRetrieval("notes", "error", time.Since(start).Seconds())
		return "", err
	}

	s.cache.Set(ctx, cacheKey, answer)
	s.metrics.ObserveRetrieval("notes", "success", time.Since(start).Seconds())
	logger.Info("notes query answered",
		zap.String("namespace", s.namespace),
		zap.Int("context_chunks", used),
		zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}

func (s *NotesService) embedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := errors.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
		v, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	return vector, err
}

func (s *NotesService) queryStore(ctx context.Context, vector []float32) ([]knowledge.RetrievalMatch, error) {
	var matches []knowledge.RetrievalMatch
	err := errors.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
		m, err := s.store.Query(ctx, s.namespace, vector, s.topK)
		if err != nil {
			return err
		}
		matches = m
		return nil
	})
	return matches, err
}

func (s *NotesService) generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := errors.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
		return s.breaker.Do(ctx, func(ctx context.Context) error {
			text, err := s.generator.Generate(ctx, prompt)
			if err != nil {
				return err
			}
			out = text
			return nil
		})
	})
	return out, err
}

// BuildNotesPrompt 组装问答提示词，上下文为空时仍然发起请求
func BuildNotesPrompt(contextBlock, query string) string {
	var b strings.Builder
	b.WriteString("You are a helpful study assistant for primary school students. ")
	b.WriteString("Answer the question using only the study notes provided below. ")
	b.WriteString("If the notes do not contain the answer, say so plainly.\n\n")
	b.WriteString("Study notes:\n")
	if contextBlock == "" {
		b.WriteString("(no matching notes found)\n")
	} else {
		b.WriteString(contextBlock)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}
