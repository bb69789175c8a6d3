package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/aihub/pdfchat/internal/database"
	"github.com/beego/beego/v2/server/web"
)

// HealthController 依赖健康检查
type HealthController struct {
	web.Controller
	Checker *database.HealthChecker
}

// NewHealthController 创建健康检查控制器
func NewHealthController(checker *database.HealthChecker) *HealthController {
	return &HealthController{Checker: checker}
}

// Health 所有依赖健康时返回200，否则503
func (c *HealthController) Health() {
	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 10*time.Second)
	defer cancel()

	result := c.Checker.Check(ctx)
	status := http.StatusOK
	if !result.Healthy {
		status = http.StatusServiceUnavailable
	}

	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = result
	c.ServeJSON()
}
