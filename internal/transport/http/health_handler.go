package httptransport

import (
	"github.com/gin-gonic/gin"

	"outprio/backend/internal/health"
)

// HealthHandler 健康检查的 HTTP 处理器
type HealthHandler struct {
	checker *health.HealthChecker
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Local 检查本地服务与存储
// @Summary 本地健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /health/local [get]
func (h *HealthHandler) Local(c *gin.Context) {
	if err := h.checker.CheckLocal(); err != nil {
		Error(c, 503, err.Error())
		return
	}
	Success(c, gin.H{"status": "ok"})
}

// Outlook 检查上游邮箱连通性
// @Summary 上游邮箱健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /health/outlook [get]
func (h *HealthHandler) Outlook(c *gin.Context) {
	if err := h.checker.CheckOutlook(); err != nil {
		Error(c, 503, err.Error())
		return
	}
	Success(c, gin.H{"status": "ok"})
}

// Summary 全量健康状态
// @Summary 健康状态汇总
// @Tags 健康
// @Produce json
// @Success 200 {object} Response
// @Router /health [get]
func (h *HealthHandler) Summary(c *gin.Context) {
	Success(c, h.checker.CheckHealth())
}
