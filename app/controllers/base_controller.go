package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/beego/beego/v2/server/web"

	"github.com/studyhub/backend-go/app/bootstrap"
	"github.com/studyhub/backend-go/internal/errors"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 按错误类别映射HTTP状态码并输出原因类别
func (c *BaseController) JSONAppError(err error) {
	appErr := errors.GetAppError(err)
	c.reportAppError(appErr)

	body := map[string]interface{}{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
		"reason":  appErr.Category(),
	}
	if appErr.Details != nil && errors.ShouldIncludeDetails(appErr) {
		body["details"] = appErr.Details
	}
	c.JSON(appErr.HTTPCode, body)
}

// reportAppError 上报错误日志与监控指标
func (c *BaseController) reportAppError(appErr *errors.AppError) {
	app := bootstrap.GetApp()
	if app == nil {
		return
	}

	var elapsed time.Duration
	if v := c.Ctx.Input.GetData("request_start"); v != nil {
		if start, ok := v.(time.Time); ok {
			elapsed = time.Since(start)
		}
	}

	app.ErrorReporter().Report(appErr, c.Ctx.Request.Method, c.Ctx.Request.URL.Path, c.getClientIP(), elapsed)
}

// getClientIP 获取客户端真实IP地址
func (c *BaseController) getClientIP() string {
	// X-Forwarded-For可能包含多个IP，取第一个
	xForwardedFor := c.Ctx.Input.Header("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	xRealIP := c.Ctx.Input.Header("X-Real-IP")
	if xRealIP != "" {
		return xRealIP
	}

	return c.Ctx.Input.IP()
}
