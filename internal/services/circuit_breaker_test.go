package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/studyhub/backend-go/internal/errors"
)

var errBoom = stderrors.New("boom")

func failingCall(ctx context.Context) error { return errBoom }

func okCall(ctx context.Context) error { return nil }

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("generation", 3, 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Do(ctx, failingCall), errBoom)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	// 打开后不再触碰下游，直接报后端不可用
	err := cb.Do(ctx, func(ctx context.Context) error {
		t.Fatal("downstream must not be called while open")
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, errors.ReasonBackendUnavailable, errors.CategoryOf(err))
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker("generation", 1, 2, 10*time.Millisecond)
	ctx := context.Background()

	assert.Error(t, cb.Do(ctx, failingCall))
	assert.Equal(t, CircuitOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	// 冷却期后放行探测，两次成功关闭熔断
	assert.NoError(t, cb.Do(ctx, okCall))
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.NoError(t, cb.Do(ctx, okCall))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("generation", 1, 2, 10*time.Millisecond)
	ctx := context.Background()

	assert.Error(t, cb.Do(ctx, failingCall))
	time.Sleep(15 * time.Millisecond)

	assert.Error(t, cb.Do(ctx, failingCall))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("generation", 2, 1, time.Minute)
	ctx := context.Background()

	assert.Error(t, cb.Do(ctx, failingCall))
	assert.NoError(t, cb.Do(ctx, okCall))
	assert.Error(t, cb.Do(ctx, failingCall))

	// 中间的成功清零了失败计数，单次失败不该打开
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerIgnoresCanceledContext(t *testing.T) {
	cb := NewCircuitBreaker("generation", 1, 1, time.Minute)

	err := cb.Do(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerStats(t *testing.T) {
	cb := NewCircuitBreaker("generation", 5, 2, time.Minute)

	stats := cb.Stats()

	assert.Equal(t, "generation", stats["name"])
	assert.Equal(t, "closed", stats["state"])
}
