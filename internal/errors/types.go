package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer  ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired  ErrorCode = "MISSING_REQUIRED"

	// 配置错误（启动期致命，不重试）
	ErrCodeConfigInvalid      ErrorCode = "CONFIG_INVALID"
	ErrCodeDimensionMismatch  ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeIndexMissing       ErrorCode = "INDEX_MISSING"
	ErrCodeCredentialsMissing ErrorCode = "CREDENTIALS_MISSING"

	// 文档提取错误（单文件/单页可恢复）
	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeOCRUnavailable    ErrorCode = "OCR_UNAVAILABLE"

	// 后端IO错误（可重试）
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeUpsertFailed       ErrorCode = "UPSERT_FAILED"
	ErrCodeSearchFailed       ErrorCode = "SEARCH_FAILED"
	ErrCodeEmbeddingFailed    ErrorCode = "EMBEDDING_FAILED"
	ErrCodeGenerationFailed   ErrorCode = "GENERATION_FAILED"
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"

	// 业务逻辑错误
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeOperationFailed  ErrorCode = "OPERATION_FAILED"
	ErrCodeInvalidState     ErrorCode = "INVALID_STATE"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
	ErrorTypeConfiguration
	ErrorTypeExtraction
)

// ReasonCategory 面向调用方的失败原因类别
type ReasonCategory string

const (
	ReasonBackendUnavailable ReasonCategory = "backend_unavailable"
	ReasonIndexMissing       ReasonCategory = "index_missing"
	ReasonInvalidRequest     ReasonCategory = "invalid_request"
	ReasonInternal           ReasonCategory = "internal"
)

// AppError 应用错误结构体
type AppError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Type      ErrorType   `json:"type"`
	HTTPCode  int         `json:"-"`
	Details   interface{} `json:"details,omitempty"`
	Cause     error       `json:"-"`
	RequestID string      `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithRequestID 添加请求ID
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Category 返回该错误对调用方暴露的原因类别
func (e *AppError) Category() ReasonCategory {
	switch e.Code {
	case ErrCodeIndexMissing, ErrCodeDimensionMismatch:
		return ReasonIndexMissing
	case ErrCodeBackendUnavailable, ErrCodeTimeout, ErrCodeConnectionFailed,
		ErrCodeUpsertFailed, ErrCodeSearchFailed, ErrCodeEmbeddingFailed, ErrCodeGenerationFailed:
		return ReasonBackendUnavailable
	}
	switch e.Type {
	case ErrorTypeValidation:
		return ReasonInvalidRequest
	case ErrorTypeExternal:
		return ReasonBackendUnavailable
	default:
		return ReasonInternal
	}
}

// 错误构造函数

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewBusinessError 创建业务错误
func NewBusinessError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: getHTTPCodeForError(code),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Invalid input for field '%s': %s", field, reason),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeResourceNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewConfigError 创建配置错误，该类错误致命且不应重试
func NewConfigError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeConfiguration,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewExtractionError 创建文档提取错误，单文件范围内可恢复
func NewExtractionError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeExtraction,
		HTTPCode: http.StatusUnprocessableEntity,
	}
}

// NewBackendError 创建后端IO错误
func NewBackendError(code ErrorCode, message string) *AppError {
	httpCode := http.StatusBadGateway
	if code == ErrCodeTimeout {
		httpCode = http.StatusGatewayTimeout
	}
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: httpCode,
	}
}

// getHTTPCodeForError 根据错误码获取HTTP状态码
func getHTTPCodeForError(code ErrorCode) int {
	switch code {
	case ErrCodeResourceNotFound, ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeMissingRequired, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeBackendUnavailable, ErrCodeConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsAppError 检查是否为AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取AppError，如果不是则经转换器翻译为AppError
func GetAppError(err error) *AppError {
	if err == nil {
		return NewSystemError(ErrCodeInternalServer, "Internal server error")
	}
	return defaultTranslator.Translate(err)
}

// IsFatal 检查错误是否为致命配置错误
func IsFatal(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == ErrorTypeConfiguration
	}
	return false
}

// CategoryOf 返回任意错误对应的原因类别
func CategoryOf(err error) ReasonCategory {
	if err == nil {
		return ""
	}
	return GetAppError(err).Category()
}
