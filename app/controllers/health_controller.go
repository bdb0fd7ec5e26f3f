package controllers

import (
	"net/http"
	"time"

	"github.com/studyhub/backend-go/app/bootstrap"
	"github.com/studyhub/backend-go/internal/config"
)

// RootController 根路径控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{
		"service": "studyhub-retrieval",
		"status":  "running",
	})
}

// HealthController 健康与就绪检查控制器
type HealthController struct {
	BaseController
}

// Health 存活检查，进程活着就返回200
func (c *HealthController) Health() {
	c.JSONSuccess(map[string]string{"status": "healthy"})
}

// Ready 就绪检查
// 检索链路必需的后端全部就绪才返回200，可选后端只体现在组件明细里。
func (c *HealthController) Ready() {
	app := bootstrap.GetApp()
	if app == nil || app.Manager() == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	manager := app.Manager()
	components := manager.CheckHealth(c.Ctx.Request.Context())

	status := http.StatusOK
	overall := "ready"
	if !manager.Ready() {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}

	env := ""
	if config.AppConfig != nil {
		env = config.AppConfig.Server.Env
	}

	c.JSON(status, map[string]interface{}{
		"status":     overall,
		"env":        env,
		"components": components,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}
