package errors

import (
	"context"
	"errors"
	"time"
)

// RetryableError 标记可重试的错误
type RetryableError struct {
	Err error
}

// Error 实现error接口
func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// Unwrap 返回底层错误
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// MarkRetryable 将错误标记为可重试
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable 检查错误是否可重试
// 显式标记的RetryableError和后端IO类错误可重试，配置错误永不重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeExternal
	}

	return false
}

// Retry 以线性退避执行操作，只重试可重试的错误
// 第i次失败后等待(i+1)*baseDelay，上下文取消时立即返回
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * baseDelay):
			}
		}
	}

	return lastErr
}
