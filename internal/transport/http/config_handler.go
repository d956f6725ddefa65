package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/service"
)

// ConfigHandler 抓取配置的 HTTP 处理器
type ConfigHandler struct {
	configs *service.FetchConfigService
	log     *zap.Logger
}

// NewConfigHandler 创建配置处理器
func NewConfigHandler(configs *service.FetchConfigService, log *zap.Logger) *ConfigHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConfigHandler{configs: configs, log: log}
}

// fetchConfigPayload 抓取配置的线格式。lookback_hours 与 start/end 互斥，
// 提供 start/end 即视为自定义范围
type fetchConfigPayload struct {
	IntervalMinutes int    `json:"fetch_interval_minutes"`
	LookbackHours   int    `json:"lookback_hours,omitempty"`
	Start           string `json:"start,omitempty"`
	End             string `json:"end,omitempty"`
}

func toPayload(cfg domain.FetchConfig) fetchConfigPayload {
	p := fetchConfigPayload{IntervalMinutes: cfg.IntervalMinutes}
	if cfg.Window.Mode == domain.WindowCustom {
		p.Start = domain.FormatLocalTime(cfg.Window.Start)
		p.End = domain.FormatLocalTime(cfg.Window.End)
	} else {
		p.LookbackHours = cfg.Window.LookbackHours
	}
	return p
}

func (p fetchConfigPayload) toConfig() (domain.FetchConfig, error) {
	cfg := domain.FetchConfig{IntervalMinutes: p.IntervalMinutes}

	if p.Start != "" || p.End != "" {
		start, err := domain.ParseLocalTime(p.Start)
		if err != nil {
			return cfg, domain.ErrRangeIncomplete
		}
		end, err := domain.ParseLocalTime(p.End)
		if err != nil {
			return cfg, domain.ErrRangeIncomplete
		}
		cfg.Window = domain.CustomWindow(start, end)
		return cfg, nil
	}

	cfg.Window = domain.PresetWindow(p.LookbackHours)
	return cfg, nil
}

// statusPayload 调度状态的线格式
type statusPayload struct {
	LastFetch            string `json:"last_fetch,omitempty"`
	NextFetch            string `json:"next_fetch,omitempty"`
	AwaitingConfirmation bool   `json:"awaiting_confirmation"`
}

// Get 获取当前抓取配置
// @Summary 获取抓取配置
// @Tags 配置
// @Produce json
// @Success 200 {object} Response
// @Router /config [get]
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configs.Get()
	if err != nil {
		h.log.Error("failed to load fetch config", zap.Error(err))
		InternalError(c, MsgConfigGetFailed)
		return
	}

	Success(c, toPayload(cfg))
}

// Save 保存抓取配置并重启调度器
// @Summary 保存抓取配置
// @Description 整体替换抓取配置。大回看窗口保存后调度器会挂起等待确认
// @Tags 配置
// @Accept json
// @Produce json
// @Param request body fetchConfigPayload true "抓取配置"
// @Success 200 {object} Response
// @Failure 400 {object} Response "配置校验失败"
// @Router /config [post]
func (h *ConfigHandler) Save(c *gin.Context) {
	var payload fetchConfigPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	cfg, err := payload.toConfig()
	if err != nil {
		BadRequest(c, GetErrorMessage(err))
		return
	}

	if err := h.configs.Save(cfg); err != nil {
		switch {
		case errors.Is(err, domain.ErrIntervalNotAllowed),
			errors.Is(err, domain.ErrLookbackOutOfRange),
			errors.Is(err, domain.ErrRangeIncomplete),
			errors.Is(err, domain.ErrRangeInverted),
			errors.Is(err, domain.ErrRangeTooLong):
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to save fetch config", zap.Error(err))
			InternalError(c, MsgConfigSaveFailed)
		}
		return
	}

	SuccessWithMsg(c, "抓取配置已保存", toPayload(cfg))
}

// Confirm 确认大窗口抓取
// @Summary 确认抓取窗口
// @Description 确认超过默认回看的窗口，调度器立即按该窗口启动
// @Tags 配置
// @Produce json
// @Success 200 {object} Response
// @Router /config/confirm [post]
func (h *ConfigHandler) Confirm(c *gin.Context) {
	h.configs.Confirm()
	Success(c, h.status())
}

// Reset 恢复默认抓取配置
// @Summary 重置抓取配置
// @Tags 配置
// @Produce json
// @Success 200 {object} Response
// @Router /config/reset [post]
func (h *ConfigHandler) Reset(c *gin.Context) {
	cfg, err := h.configs.Reset()
	if err != nil {
		h.log.Error("failed to reset fetch config", zap.Error(err))
		InternalError(c, MsgConfigSaveFailed)
		return
	}

	SuccessWithMsg(c, "抓取配置已重置为默认值", toPayload(cfg))
}

// Status 获取调度器状态
// @Summary 获取调度状态
// @Tags 配置
// @Produce json
// @Success 200 {object} Response
// @Router /config/status [get]
func (h *ConfigHandler) Status(c *gin.Context) {
	Success(c, h.status())
}

func (h *ConfigHandler) status() statusPayload {
	st := h.configs.Status()

	p := statusPayload{AwaitingConfirmation: st.AwaitingConfirmation}
	if !st.LastFetch.IsZero() {
		p.LastFetch = domain.FormatLocalTime(st.LastFetch)
	}
	if !st.NextFetch.IsZero() {
		p.NextFetch = domain.FormatLocalTime(st.NextFetch)
	}
	return p
}
