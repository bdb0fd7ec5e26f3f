package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/logger"
)

// quizQuestionTarget 一份测验要求生成的题目数
const quizQuestionTarget = 10

// QuizRequest 测验请求，三个字段都是自由文本
type QuizRequest struct {
	Level      string `json:"level"`
	Difficulty string `json:"difficulty"`
	Subject    string `json:"subject"`
}

// QuizService 测验生成编排
// 先从精选题库做混合检索，取回的题目拼成上下文，再让生成服务据此出一份新卷子
type QuizService struct {
	bank      knowledge.QuestionBank
	generator knowledge.Generator
	assembler *ContextAssembler
	cache     *AnswerCache
	breaker   *CircuitBreaker
	metrics   *MetricsService

	topK          int
	strictSubject bool
	retryAttempts int
	retryDelay    time.Duration
}

// NewQuizService 创建测验服务，检索参数取自全局配置
func NewQuizService(bank knowledge.QuestionBank, generator knowledge.Generator, cache *AnswerCache, metrics *MetricsService) *QuizService {
	topK := 15
	budget := 2000
	strict := false
	attempts := 3
	delay := time.Second

	if cfg := config.AppConfig; cfg != nil {
		topK = cfg.Retrieval.TopKQuiz
		budget = cfg.Retrieval.ContextTokenBudget
		strict = cfg.Retrieval.StrictSubjectFilter
		attempts = cfg.Backend.RetryAttempts
		delay = cfg.Backend.BaseDelay()
	}
	if topK < quizQuestionTarget {
		topK = quizQuestionTarget
	}

	if cache == nil {
		cache = NewAnswerCache(nil, 0)
	}

	return &QuizService{
		bank:          bank,
		generator:     generator,
		assembler:     NewContextAssembler(budget),
		cache:         cache,
		breaker:       NewCircuitBreaker("generation", 5, 2, 30*time.Second),
		metrics:       metrics,
		topK:          topK,
		strictSubject: strict,
		retryAttempts: attempts,
		retryDelay:    delay,
	}
}

// GenerateQuiz 按年级、难度、学科生成一份测验，返回生成服务的原文
func (s *QuizService) GenerateQuiz(ctx context.Context, req QuizRequest) (string, error) {
	start := time.Now()
	req.Level = strings.TrimSpace(req.Level)
	req.Difficulty = strings.TrimSpace(req.Difficulty)
	req.Subject = strings.TrimSpace(req.Subject)

	if err := ValidateQuizRequest(req); err != nil {
		s.metrics.ObserveRetrieval("quiz", "invalid", time.Since(start).Seconds())
		return "", err
	}

	cacheKey := QuizCacheKey(req.Level, req.Difficulty, req.Subject)
	if cached, ok := s.cache.Get(ctx, cacheKey); ok {
		s.metrics.RecordCacheHit("quiz")
		s.metrics.ObserveRetrieval("quiz", "cached", time.Since(start).Seconds())
		return cached, nil
	}

	matches, err := s.searchBank(ctx, req)
	if err != nil {
		s.metrics.ObserveRetrieval("quiz", "error", time.Since(start).Seconds())
		return "", err
	}

	contextBlock, used := s.assembler.AssembleQuestions(matches)
	if used < quizQuestionTarget {
		// 题库供给不足照常出卷，成品题数由生成服务就地取材决定
		logger.Warn("question pool below quiz target",
			zap.Int("retrieved", used),
			zap.Int("target", quizQuestionTarget),
			zap.String("subject", req.Subject))
	}

	quiz, err := s.generate(ctx, BuildQuizPrompt(contextBlock, req))
	if err != nil {
		s.metrics.ObserveRetrieval("quiz", "error", time.Since(start).Seconds())
		return "", err
	}

	s.cache.Set(ctx, cacheKey, quiz)
	s.metrics.ObserveRetrieval("quiz", "success", time.Since(start).Seconds())
	logger.Info("quiz generated",
		zap.String("level", req.Level),
		zap.String("difficulty", req.Difficulty),
		zap.String("subject", req.Subject),
		zap.Int("source_questions", used),
		zap.Duration("elapsed", time.Since(start)))
	return quiz, nil
}

// SeedQuestions 批量写入题库，供运营端灌题
func (s *QuizService) SeedQuestions(ctx context.Context, questions []knowledge.QuizQuestionRecord) error {
	if err := ValidateQuestionSeed(questions); err != nil {
		return err
	}
	err := errors.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
		return s.bank.SeedQuestions(ctx, questions)
	})
	if err != nil {
		return err
	}
	logger.Info("question bank seeded", zap.Int("count", len(questions)))
	return nil
}

func (s *QuizService) searchBank(ctx context.Context, req QuizRequest) ([]knowledge.QuestionMatch, error) {
	searchReq := knowledge.QuestionSearchRequest{
		QueryText: buildQuizQuery(req),
		TopK:      s.topK,
	}
	if s.strictSubject {
		searchReq.Subject = req.Subject
	}

	var matches []knowledge.QuestionMatch
	err := errors.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
		m, err := s.bank.Search(ctx, searchReq)
		if err != nil {
			return err
		}
		matches = m
		return nil
	})
	return matches, err
}

func (s *QuizService) generate(ctx context.Context, prompt string) (string, error) {
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

// buildQuizQuery 把结构化请求拼成一句自然语言查询，供混合检索打分
func buildQuizQuery(req QuizRequest) string {
	return fmt.Sprintf("%s %s %s questions", req.Level, req.Difficulty, req.Subject)
}

// BuildQuizPrompt 组装出卷提示词，要求生成服务只依据给出的题目出题
func BuildQuizPrompt(contextBlock string, req QuizRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a quiz generator for %s students. ", req.Level)
	fmt.Fprintf(&b, "Create exactly %d multiple-choice questions about %s at %s difficulty. ",
		quizQuestionTarget, req.Subject, req.Difficulty)
	b.WriteString("Base every question only on the reference questions below, ")
	b.WriteString("and output only the questions with four options each, no commentary.\n\n")
	b.WriteString("Reference questions:\n")
	if contextBlock == "" {
		b.WriteString("(no reference questions available)\n")
	} else {
		b.WriteString(contextBlock)
		b.WriteString("\n")
	}
	b.WriteString("\nQuiz:")
	return b.String()
}
