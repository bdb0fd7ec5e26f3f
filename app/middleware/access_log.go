package middleware

import (
	"strings"
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/logger"
)

// MarkRequestStart 在路由前记录请求开始时间
func MarkRequestStart(ctx *context.Context) {
	ctx.Input.SetData("request_start", time.Now())
}

// AccessLogFilter 请求访问日志
// 挂在FinishRouter阶段，此时状态码已经确定。
func AccessLogFilter(ctx *context.Context) {
	start, ok := ctx.Input.GetData("request_start").(time.Time)
	if !ok {
		return
	}

	status := ctx.Output.Status
	if status == 0 {
		status = 200
	}

	fields := []zap.Field{
		zap.String("method", ctx.Input.Method()),
		zap.String("path", ctx.Input.URI()),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("ip", clientIP(ctx)),
	}

	switch {
	case status >= 500:
		logger.Error("request completed", fields...)
	case status >= 400:
		logger.Warn("request completed", fields...)
	default:
		logger.Info("request completed", fields...)
	}
}

// clientIP 获取客户端真实IP
func clientIP(ctx *context.Context) string {
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For可能包含多个IP，取第一个
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := ctx.Input.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return ctx.Input.IP()
}
