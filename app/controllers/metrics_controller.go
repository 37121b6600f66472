package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"

	"github.com/aihub/persona-assistant/internal/knowledge"
	"github.com/aihub/persona-assistant/internal/services"
)

// MetricsController 指标控制器
type MetricsController struct {
	web.Controller
	Metrics *services.MetricsService
}

// Prepare 初始化控制器
func (c *MetricsController) Prepare() {
	c.EnableRender = false
}

// Get 返回Prometheus格式的指标
func (c *MetricsController) Get() {
	c.Metrics.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
	Index *knowledge.MemoryIndex
}

// Prepare 初始化控制器
func (c *HealthController) Prepare() {
	c.EnableRender = false
}

// Health 报告索引规模
func (c *HealthController) Health() {
	if c.Index == nil {
		c.JSONError(http.StatusServiceUnavailable, "index not loaded")
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"chunks": c.Index.Len(),
	})
}
