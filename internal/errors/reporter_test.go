package errors

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorReporterRecordsMetricsAndStats(t *testing.T) {
	monitor := NewErrorMonitor(prometheus.NewRegistry())
	reporter := NewErrorReporter(zap.NewNop(), monitor)

	appErr := NewValidationError("query不能为空")
	reporter.Report(appErr, http.MethodPost, "/api/notes", "127.0.0.1", 5*time.Millisecond)
	reporter.Report(appErr, http.MethodPost, "/api/notes", "127.0.0.1", 3*time.Millisecond)

	counter := monitor.errorCounter.WithLabelValues(string(ErrCodeValidationFailed), "validation", "/api/notes")
	assert.Equal(t, 2.0, testutil.ToFloat64(counter))

	top := monitor.GetTopErrors(1)
	require.Len(t, top, 1)
	assert.Equal(t, int64(2), top[0].Count)
	assert.Equal(t, string(ErrCodeValidationFailed), top[0].Code)

	monitor.Reset()
	assert.Empty(t, monitor.GetStats())
}

func TestErrorReporterNilSafe(t *testing.T) {
	var reporter *ErrorReporter
	reporter.Report(NewValidationError("x"), http.MethodGet, "/", "", 0)

	NewErrorReporter(nil, nil).Report(nil, http.MethodGet, "/", "", 0)
	NewErrorReporter(nil, nil).Report(NewValidationError("x"), http.MethodGet, "/", "", 0)
}

func TestShouldIncludeDetails(t *testing.T) {
	assert.True(t, ShouldIncludeDetails(NewValidationError("bad input")))
	assert.True(t, ShouldIncludeDetails(NewNotFoundError("question")))
	assert.False(t, ShouldIncludeDetails(NewSystemError(ErrCodeInternalServer, "oops")))
	assert.False(t, ShouldIncludeDetails(NewBackendError(ErrCodeTimeout, "timeout")))
}
