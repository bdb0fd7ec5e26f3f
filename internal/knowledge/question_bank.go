package knowledge

import (
	"context"

	"github.com/studyhub/backend-go/internal/errors"
)

// QuizQuestionRecord 题库中的一道题
type QuizQuestionRecord struct {
	ID           string `json:"id"`
	QuestionText string `json:"question_text"`
	OptionsText  string `json:"options_text"`
	Level        string `json:"level"`
	Difficulty   string `json:"difficulty"`
	Subject      string `json:"subject"`
}

// QuestionSearchRequest 题库混合检索请求
type QuestionSearchRequest struct {
	QueryText string
	TopK      int
	// Subject 非空时在存储层做严格的元数据过滤
	// 过滤条件永远来自结构化请求字段，不从查询文本里猜。
	Subject string
}

// QuestionMatch 题库检索命中
type QuestionMatch struct {
	Question QuizQuestionRecord
	Score    float64
}

// QuestionBank 精选题库，词法与向量混合检索
type QuestionBank interface {
	EnsureReady(ctx context.Context) error
	// SeedQuestions 批量写入题目，同一ID重复写入是覆盖
	SeedQuestions(ctx context.Context, questions []QuizQuestionRecord) error
	Search(ctx context.Context, req QuestionSearchRequest) ([]QuestionMatch, error)
	Ready() bool
}

// NoopQuestionBank 题库未配置时的占位实现
type NoopQuestionBank struct{}

func (NoopQuestionBank) EnsureReady(ctx context.Context) error {
	return errors.NewConfigError(errors.ErrCodeIndexMissing, "题库未配置")
}

func (NoopQuestionBank) SeedQuestions(ctx context.Context, questions []QuizQuestionRecord) error {
	return errors.NewConfigError(errors.ErrCodeIndexMissing, "题库未配置")
}

func (NoopQuestionBank) Search(ctx context.Context, req QuestionSearchRequest) ([]QuestionMatch, error) {
	return nil, errors.NewConfigError(errors.ErrCodeIndexMissing, "题库未配置")
}

func (NoopQuestionBank) Ready() bool {
	return false
}
