package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studyhub/backend-go/internal/errors"
)

// CircuitState 熔断器状态
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String 返回状态字符串
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker 外部后端调用熔断器
// 连续失败达到阈值后打开，冷却期过后放行探测请求，
// 半开状态下连续成功达到阈值才重新关闭
type CircuitBreaker struct {
	name string

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	state       int32
	failures    int32
	successes   int32
	lastFailure time.Time
	mu          sync.RWMutex
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(name string, failureThreshold, successThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		state:            int32(CircuitClosed),
	}
}

// Do 在熔断保护下执行调用
// 熔断打开时直接返回后端不可用错误，不触碰下游
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return errors.NewBackendError(errors.ErrCodeBackendUnavailable,
			fmt.Sprintf("%s熔断器打开，暂时拒绝请求", cb.name))
	}

	err := fn(ctx)
	if err != nil && stderrors.Is(err, context.Canceled) {
		// 调用方主动取消不计入熔断统计
		return err
	}

	cb.record(err == nil)
	return err
}

// State 返回当前状态
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt32(&cb.state))
}

// Stats 返回熔断器统计信息
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.RLock()
	lastFailure := cb.lastFailure
	cb.mu.RUnlock()

	return map[string]interface{}{
		"name":              cb.name,
		"state":             cb.State().String(),
		"failure_count":     atomic.LoadInt32(&cb.failures),
		"success_count":     atomic.LoadInt32(&cb.successes),
		"failure_threshold": cb.failureThreshold,
		"success_threshold": cb.successThreshold,
		"cooldown":          cb.cooldown.String(),
		"last_failure_time": lastFailure,
	}
}

func (cb *CircuitBreaker) allow() bool {
	switch cb.State() {
	case CircuitClosed:
		return true
	case CircuitOpen:
		cb.mu.RLock()
		cooled := time.Since(cb.lastFailure) >= cb.cooldown
		cb.mu.RUnlock()

		if cooled {
			atomic.StoreInt32(&cb.state, int32(CircuitHalfOpen))
			atomic.StoreInt32(&cb.successes, 0)
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(success bool) {
	if success {
		cb.recordSuccess()
		return
	}
	cb.recordFailure()
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.State() {
	case CircuitHalfOpen:
		count := atomic.AddInt32(&cb.successes, 1)
		if int(count) >= cb.successThreshold {
			atomic.StoreInt32(&cb.state, int32(CircuitClosed))
			atomic.StoreInt32(&cb.failures, 0)
		}
	case CircuitClosed:
		atomic.StoreInt32(&cb.failures, 0)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	cb.lastFailure = time.Now()
	cb.mu.Unlock()

	switch cb.State() {
	case CircuitHalfOpen:
		atomic.StoreInt32(&cb.state, int32(CircuitOpen))
		atomic.StoreInt32(&cb.successes, 0)
	case CircuitClosed:
		count := atomic.AddInt32(&cb.failures, 1)
		if int(count) >= cb.failureThreshold {
			atomic.StoreInt32(&cb.state, int32(CircuitOpen))
		}
	}
}
