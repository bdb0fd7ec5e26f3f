package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return MarkRetryable(fmt.Errorf("transient"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	fatal := NewConfigError(ErrCodeDimensionMismatch, "dim mismatch")

	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return fatal
	})

	// 配置错误不重试，第一次失败即返回
	assert.Equal(t, 1, calls)
	assert.Equal(t, fatal, err)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return NewBackendError(ErrCodeTimeout, "timeout")
	})

	assert.Equal(t, 3, calls)
	assert.Error(t, err)
	assert.Equal(t, ErrCodeTimeout, GetAppError(err).Code)
}

func TestRetryRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return MarkRetryable(fmt.Errorf("transient"))
	})

	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(MarkRetryable(fmt.Errorf("x"))))
	assert.True(t, IsRetryable(NewBackendError(ErrCodeBackendUnavailable, "down")))
	assert.False(t, IsRetryable(NewConfigError(ErrCodeIndexMissing, "missing")))
	assert.False(t, IsRetryable(NewValidationError("bad")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
	assert.False(t, IsRetryable(nil))

	// 包装后的RetryableError通过errors.As解出
	wrapped := fmt.Errorf("call failed: %w", MarkRetryable(fmt.Errorf("inner")))
	assert.True(t, IsRetryable(wrapped))
}

func TestMarkRetryableNil(t *testing.T) {
	assert.Nil(t, MarkRetryable(nil))
}
