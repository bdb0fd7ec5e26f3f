package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/knowledge"
)

// ValidationError 单字段验证错误
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidationErrors 多个验证错误
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator 请求数据验证器
type Validator struct {
	errors ValidationErrors
}

// NewValidator 创建验证器
func NewValidator() *Validator {
	return &Validator{}
}

// HasErrors 检查是否有验证错误
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors 返回所有验证错误
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// AddError 添加验证错误
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// AsAppError 把验证结果映射为请求形状错误，无错误时返回nil
func (v *Validator) AsAppError() error {
	if !v.HasErrors() {
		return nil
	}
	return errors.NewValidationError(v.errors.Error()).WithDetails(v.errors)
}

// Required 验证必填字符串
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "cannot be empty")
	}
	return v
}

// MaxLength 验证最大长度（按rune计）
func (v *Validator) MaxLength(field, value string, maxLen int) *Validator {
	if utf8.RuneCountInString(value) > maxLen {
		v.AddError(field, fmt.Sprintf("cannot be longer than %d characters", maxLen))
	}
	return v
}

// MinLength 验证最小长度（按rune计）
func (v *Validator) MinLength(field, value string, minLen int) *Validator {
	if utf8.RuneCountInString(value) < minLen {
		v.AddError(field, fmt.Sprintf("must be at least %d characters long", minLen))
	}
	return v
}

// Range 验证整数范围
func (v *Validator) Range(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.AddError(field, fmt.Sprintf("must be between %d and %d", min, max))
	}
	return v
}

// ValidateNotesQuery 验证笔记问答请求
func ValidateNotesQuery(query string) error {
	v := NewValidator()
	v.Required("query", query)
	v.MaxLength("query", query, 1000)
	return v.AsAppError()
}

// ValidateQuizRequest 验证组卷请求，三个字段都来自结构化输入
func ValidateQuizRequest(req QuizRequest) error {
	v := NewValidator()
	v.Required("level", req.Level)
	v.MaxLength("level", req.Level, 100)
	v.Required("difficulty", req.Difficulty)
	v.MaxLength("difficulty", req.Difficulty, 50)
	v.Required("subject", req.Subject)
	v.MaxLength("subject", req.Subject, 100)
	return v.AsAppError()
}

// ValidateIngestionRequest 验证摄取请求
func ValidateIngestionRequest(folder, namespace string) error {
	v := NewValidator()
	v.Required("folder", folder)
	v.MaxLength("folder", folder, 1024)
	v.Required("namespace", namespace)
	v.MaxLength("namespace", namespace, 255)
	return v.AsAppError()
}

// ValidateRunsQuery 验证摄取历史查询分页参数
func ValidateRunsQuery(limit int) error {
	v := NewValidator()
	v.Range("limit", limit, 1, 100)
	return v.AsAppError()
}

// ValidateQuestionSeed 验证题库种子数据，逐条检查关键字段
func ValidateQuestionSeed(questions []knowledge.QuizQuestionRecord) error {
	v := NewValidator()
	if len(questions) == 0 {
		v.AddError("questions", "cannot be empty")
		return v.AsAppError()
	}

	for i, q := range questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		v.Required(prefix+".id", q.ID)
		v.MaxLength(prefix+".id", q.ID, 255)
		v.Required(prefix+".question_text", q.QuestionText)
	}
	return v.AsAppError()
}
