package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"

	"github.com/studyhub/backend-go/app/bootstrap"
	"github.com/studyhub/backend-go/internal/services"
)

// MetricsController 指标控制器
type MetricsController struct {
	web.Controller
	metricsService *services.MetricsService
}

// Prepare 初始化控制器
func (c *MetricsController) Prepare() {
	if c.metricsService == nil {
		if app := bootstrap.GetApp(); app != nil {
			c.metricsService = app.Metrics()
		}
	}
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	if c.metricsService == nil {
		http.Error(c.Ctx.ResponseWriter, "metrics unavailable", http.StatusServiceUnavailable)
		return
	}

	c.metricsService.Handler().ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
