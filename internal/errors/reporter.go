package errors

import (
	"time"

	"go.uber.org/zap"
)

// ErrorReporter 错误上报器，负责错误日志与监控指标
type ErrorReporter struct {
	logger  *zap.Logger
	monitor *ErrorMonitor
}

// NewErrorReporter 创建错误上报器
func NewErrorReporter(logger *zap.Logger, monitor *ErrorMonitor) *ErrorReporter {
	return &ErrorReporter{
		logger:  logger,
		monitor: monitor,
	}
}

// Report 记录一次请求错误，包括结构化日志与监控指标
func (h *ErrorReporter) Report(appErr *AppError, method, path, clientIP string, elapsed time.Duration) {
	if h == nil || appErr == nil {
		return
	}

	if h.monitor != nil {
		h.monitor.RecordError(appErr, path, elapsed)
	}

	if h.logger != nil {
		h.logError(appErr, method, path, clientIP)
	}
}

// logError 记录错误日志
func (h *ErrorReporter) logError(appErr *AppError, method, path, clientIP string) {
	fields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_type", getErrorTypeString(appErr.Type)),
		zap.Int("http_code", appErr.HTTPCode),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("remote_addr", clientIP),
	}

	if appErr.RequestID != "" {
		fields = append(fields, zap.String("request_id", appErr.RequestID))
	}

	if appErr.Cause != nil {
		fields = append(fields, zap.String("cause", appErr.Cause.Error()))
	}

	// 根据错误类型选择日志级别
	switch appErr.Type {
	case ErrorTypeSystem, ErrorTypeConfiguration:
		h.logger.Error(appErr.Message, fields...)
	case ErrorTypeValidation:
		h.logger.Info(appErr.Message, fields...)
	case ErrorTypeBusiness, ErrorTypeExternal, ErrorTypeExtraction:
		h.logger.Warn(appErr.Message, fields...)
	default:
		h.logger.Error(appErr.Message, fields...)
	}
}

// getErrorTypeString 获取错误类型字符串
func getErrorTypeString(errorType ErrorType) string {
	switch errorType {
	case ErrorTypeSystem:
		return "system"
	case ErrorTypeBusiness:
		return "business"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeExternal:
		return "external"
	case ErrorTypeConfiguration:
		return "configuration"
	case ErrorTypeExtraction:
		return "extraction"
	default:
		return "unknown"
	}
}

// ShouldIncludeDetails 判断错误详情是否可以向调用方暴露
// 系统和外部错误不向调用方暴露细节
func ShouldIncludeDetails(appErr *AppError) bool {
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeBusiness, ErrorTypeExtraction:
		return true
	default:
		return false
	}
}
