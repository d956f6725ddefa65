package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outprio/backend/internal/service"
)

// LicenseHandler 许可状态与试用的 HTTP 处理器
type LicenseHandler struct {
	licenses *service.LicenseService
	log      *zap.Logger
}

// NewLicenseHandler 创建许可处理器
func NewLicenseHandler(licenses *service.LicenseService, log *zap.Logger) *LicenseHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LicenseHandler{licenses: licenses, log: log}
}

// Status 查询当前许可状态
// @Summary 查询许可状态
// @Description 返回付费/试用状态和试用剩余天数
// @Tags 许可
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 404 {object} Response "档案不存在"
// @Router /v1/license [get]
func (h *LicenseHandler) Status(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	info, err := h.licenses.Status(userID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			NotFound(c, GetErrorMessage(service.ErrProfileNotFound))
			return
		}
		h.log.Error("failed to get license status", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, info)
}

// Profile 查询账号档案
// @Summary 查询档案
// @Description 返回试用与订阅字段的完整档案
// @Tags 许可
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 404 {object} Response "档案不存在"
// @Router /v1/profile [get]
func (h *LicenseHandler) Profile(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	profile, err := h.licenses.Profile(userID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			NotFound(c, GetErrorMessage(service.ErrProfileNotFound))
			return
		}
		h.log.Error("failed to get profile", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, profile)
}

// StartTrial 开始免费试用
// @Summary 开始试用
// @Description 首次调用开始试用计时，重复调用不重置
// @Tags 许可
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 404 {object} Response "档案不存在"
// @Router /v1/license/trial [post]
func (h *LicenseHandler) StartTrial(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	info, err := h.licenses.StartTrial(userID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			NotFound(c, GetErrorMessage(service.ErrProfileNotFound))
			return
		}
		h.log.Error("failed to start trial", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	SuccessWithMsg(c, "试用已开始", info)
}
