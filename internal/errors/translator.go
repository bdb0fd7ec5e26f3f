package errors

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
)

// ErrorTranslator 错误转换器
type ErrorTranslator struct{}

// defaultTranslator GetAppError共享的进程级转换器
var defaultTranslator = NewErrorTranslator()

// NewErrorTranslator 创建错误转换器
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate 将各种类型的错误转换为AppError
func (t *ErrorTranslator) Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	// 已经是AppError的直接解出，包括被包装过的
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	// 处理不同类型的错误
	switch e := err.(type) {
	case validator.ValidationErrors:
		return t.translateValidationErrors(e)
	case *net.OpError:
		return t.translateNetworkError(e)
	case migrate.ErrDirty:
		return NewSystemError(ErrCodeDatabaseError, "Database migration in dirty state").WithCause(e)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewBackendError(ErrCodeTimeout, "Operation timed out").WithCause(err)
	}

	errMsg := err.Error()

	// 数据库相关错误
	if t.isDatabaseError(err) {
		return t.translateDatabaseError(err)
	}

	// 文件系统错误
	if strings.Contains(errMsg, "no such file") || strings.Contains(errMsg, "permission denied") {
		return NewSystemError(ErrCodeInternalServer, "File system error").WithCause(err)
	}

	// 后端服务错误
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "no such host") {
		return NewBackendError(ErrCodeBackendUnavailable, "Backend service unavailable").WithCause(err)
	}

	// 默认系统错误
	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// translateValidationErrors 转换验证错误
func (t *ErrorTranslator) translateValidationErrors(validationErrors validator.ValidationErrors) *AppError {
	var details []map[string]interface{}

	for _, fieldError := range validationErrors {
		detail := map[string]interface{}{
			"field":   fieldError.Field(),
			"tag":     fieldError.Tag(),
			"value":   fieldError.Value(),
			"message": t.getValidationErrorMessage(fieldError),
		}
		details = append(details, detail)
	}

	return NewValidationError("Validation failed").
		WithDetails(map[string]interface{}{
			"errors": details,
		})
}

// translateNetworkError 转换网络错误
func (t *ErrorTranslator) translateNetworkError(netErr *net.OpError) *AppError {
	if netErr.Timeout() {
		return NewBackendError(ErrCodeTimeout, "Operation timed out").WithCause(netErr)
	}

	return NewBackendError(ErrCodeConnectionFailed, "Network error").WithCause(netErr)
}

// translateDatabaseError 转换数据库错误
func (t *ErrorTranslator) translateDatabaseError(err error) *AppError {
	errMsg := err.Error()

	// PostgreSQL特定错误
	if strings.Contains(errMsg, "duplicate key value") || strings.Contains(errMsg, "violates unique constraint") {
		return NewBusinessError(ErrCodeConflict, "Resource already exists").WithCause(err)
	}

	if strings.Contains(errMsg, "violates foreign key constraint") {
		return NewBusinessError(ErrCodeBadRequest, "Invalid reference").WithCause(err)
	}

	if strings.Contains(errMsg, "violates not-null constraint") {
		return NewBusinessError(ErrCodeBadRequest, "Required field is missing").WithCause(err)
	}

	// 连接相关错误
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewBackendError(ErrCodeConnectionFailed, "Database connection failed").WithCause(err)
	}

	// 默认数据库错误
	return NewSystemError(ErrCodeDatabaseError, "Database operation failed").WithCause(err)
}

// isDatabaseError 检查是否为数据库错误
func (t *ErrorTranslator) isDatabaseError(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	databaseKeywords := []string{
		"pq:", "postgresql", "sqlstate", "relation", "column",
		"constraint", "foreign key", "primary key", "duplicate key",
	}

	for _, keyword := range databaseKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}

	return false
}

// getValidationErrorMessage 获取验证错误消息
func (t *ErrorTranslator) getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	tag := fieldError.Tag()

	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "gte":
		return field + " must be greater than or equal to " + fieldError.Param()
	case "lte":
		return field + " must be less than or equal to " + fieldError.Param()
	case "gt":
		return field + " must be greater than " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	default:
		return field + " is invalid"
	}
}

// Wrap 包装错误为AppError
func (t *ErrorTranslator) Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	return NewSystemError(code, message).WithCause(err)
}

// WrapBackend 包装后端IO错误
func (t *ErrorTranslator) WrapBackend(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	return NewBackendError(code, message).WithCause(err)
}
