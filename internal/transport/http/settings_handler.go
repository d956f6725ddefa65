package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/service"
)

// SettingsHandler 用户设置的 HTTP 处理器
type SettingsHandler struct {
	settings *service.SettingsService
	userID   string
	log      *zap.Logger
}

// NewSettingsHandler 创建设置处理器。userID 是本地模式下的固定用户
func NewSettingsHandler(settings *service.SettingsService, userID string, log *zap.Logger) *SettingsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsHandler{settings: settings, userID: userID, log: log}
}

// Get 获取用户设置
// @Summary 获取用户设置
// @Description 返回身份、VIP 列表、界面标签等设置，缺省时返回默认值
// @Tags 设置
// @Produce json
// @Success 200 {object} Response{data=domain.UserSettings}
// @Router /user-config [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get(h.userID)
	if err != nil {
		h.log.Error("failed to load user settings", zap.Error(err))
		InternalError(c, MsgSettingsGetFailed)
		return
	}

	Success(c, settings)
}

// Save 保存用户设置
// @Summary 保存用户设置
// @Description 整体替换用户设置并重建分类器
// @Tags 设置
// @Accept json
// @Produce json
// @Param request body domain.UserSettings true "用户设置"
// @Success 200 {object} Response{data=domain.UserSettings}
// @Failure 400 {object} Response "设置校验失败"
// @Router /user-config [post]
func (h *SettingsHandler) Save(c *gin.Context) {
	var settings domain.UserSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	settings.UserID = h.userID

	if err := h.settings.Save(settings); err != nil {
		h.log.Error("failed to save user settings", zap.Error(err))
		InternalError(c, MsgSettingsSaveFailed)
		return
	}

	SuccessWithMsg(c, "用户设置已保存", settings)
}
