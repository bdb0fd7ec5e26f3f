package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAppError(t *testing.T) {
	// 已经是AppError时直接返回
	appErr := NewValidationError("bad input")
	assert.Equal(t, appErr, GetAppError(appErr))

	// 普通错误包装为系统错误
	plain := fmt.Errorf("boom")
	wrapped := GetAppError(plain)
	assert.Equal(t, ErrCodeInternalServer, wrapped.Code)
	assert.Equal(t, ErrorTypeSystem, wrapped.Type)
	assert.Equal(t, plain, wrapped.Cause)
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	appErr := NewBackendError(ErrCodeConnectionFailed, "Milvus连接失败").WithCause(cause)

	assert.Equal(t, cause, appErr.Unwrap())
	assert.Contains(t, appErr.Error(), "connection reset")
}

func TestCategoryMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected ReasonCategory
	}{
		{"后端不可用", NewBackendError(ErrCodeBackendUnavailable, "es down"), ReasonBackendUnavailable},
		{"超时", NewBackendError(ErrCodeTimeout, "timeout"), ReasonBackendUnavailable},
		{"索引缺失", NewConfigError(ErrCodeIndexMissing, "collection not found"), ReasonIndexMissing},
		{"维度不匹配", NewConfigError(ErrCodeDimensionMismatch, "dim mismatch"), ReasonIndexMissing},
		{"验证失败", NewValidationError("missing query"), ReasonInvalidRequest},
		{"系统错误", NewSystemError(ErrCodeInternalServer, "oops"), ReasonInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Category())
		})
	}
}

func TestCategoryOfPlainError(t *testing.T) {
	assert.Equal(t, ReasonInternal, CategoryOf(fmt.Errorf("anything")))
	assert.Equal(t, ReasonCategory(""), CategoryOf(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewConfigError(ErrCodeDimensionMismatch, "embedding dim 384 != index dim 1536")))
	assert.True(t, IsFatal(NewConfigError(ErrCodeCredentialsMissing, "missing api key")))
	assert.False(t, IsFatal(NewBackendError(ErrCodeTimeout, "timeout")))
	assert.False(t, IsFatal(fmt.Errorf("plain")))
}

func TestBackendErrorHTTPCode(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, NewBackendError(ErrCodeTimeout, "t").HTTPCode)
	assert.Equal(t, http.StatusBadGateway, NewBackendError(ErrCodeUpsertFailed, "u").HTTPCode)
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("question").HTTPCode)
	assert.Equal(t, http.StatusBadRequest, NewInvalidInputError("top_k", "must be positive").HTTPCode)
}
