package httptransport

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/service"
	"outprio/backend/internal/triage"
)

// fetchNowTimeout 手动触发一次抓取的总超时
const fetchNowTimeout = 2 * time.Minute

// EmailHandler 邮件列表与单封操作的 HTTP 处理器
type EmailHandler struct {
	emails   *service.EmailService
	configs  *service.FetchConfigService
	settings *service.SettingsService
	userID   string
	log      *zap.Logger
}

// NewEmailHandler 创建邮件处理器。userID 是本地模式下的固定用户
func NewEmailHandler(
	emails *service.EmailService,
	configs *service.FetchConfigService,
	settings *service.SettingsService,
	userID string,
	log *zap.Logger,
) *EmailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailHandler{
		emails:   emails,
		configs:  configs,
		settings: settings,
		userID:   userID,
		log:      log,
	}
}

// List 获取分拣后的邮件列表
// @Summary 获取邮件列表
// @Description 返回按重要度分组的邮件。带 start/end 参数时查询自定义时间范围
// @Tags 邮件
// @Produce json
// @Param search query string false "搜索关键词"
// @Param sort query string false "排序列" Enums(importance, received, sender, subject, preview, reason)
// @Param dir query string false "排序方向" Enums(asc, desc)
// @Param page query int false "页号，从1开始"
// @Param page_size query int false "每页条数"
// @Param start query string false "自定义范围开始（本地时间 2006-01-02T15:04:05）"
// @Param end query string false "自定义范围结束"
// @Success 200 {object} Response "分组后的邮件视图"
// @Failure 400 {object} Response "时间范围参数错误"
// @Router /emails [get]
func (h *EmailHandler) List(c *gin.Context) {
	q := h.buildQuery(c)

	startRaw := c.Query("start")
	endRaw := c.Query("end")

	// 无范围参数走常规快照
	if startRaw == "" && endRaw == "" {
		Success(c, h.emails.List(q))
		return
	}

	// 范围参数必须成对出现
	if startRaw == "" || endRaw == "" {
		BadRequest(c, GetErrorMessage(service.ErrRangeIncomplete))
		return
	}

	start, err := domain.ParseLocalTime(startRaw)
	if err != nil {
		BadRequest(c, MsgInvalidTimeRange)
		return
	}
	end, err := domain.ParseLocalTime(endRaw)
	if err != nil {
		BadRequest(c, MsgInvalidTimeRange)
		return
	}

	records, err := h.emails.ListRange(c.Request.Context(), start, end)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRangeIncomplete),
			errors.Is(err, service.ErrRangeInverted),
			errors.Is(err, service.ErrRangeTooLong):
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("range query failed", zap.Error(err))
			InternalError(c, MsgEmailListFailed)
		}
		return
	}

	Success(c, triage.Apply(records, q))
}

// Dismiss 清除单封邮件
// @Summary 清除邮件
// @Description 从列表中移除邮件并在上游标记已读
// @Tags 邮件
// @Produce json
// @Param id path string true "邮件 Message-ID"
// @Success 200 {object} Response
// @Router /emails/{id}/dismiss [post]
func (h *EmailHandler) Dismiss(c *gin.Context) {
	messageID := c.Param("id")

	if err := h.emails.Dismiss(c.Request.Context(), messageID); err != nil {
		// 列表里已经移除，只把持久化失败报告给前端
		h.log.Error("dismiss failed", zap.String("message_id", messageID), zap.Error(err))
		InternalError(c, MsgDismissFailed)
		return
	}

	Success(c, gin.H{"message_id": messageID})
}

// DismissConversation 清除整个会话
// @Summary 清除会话
// @Description 清除同一会话下的全部邮件
// @Tags 邮件
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} Response "被清除的邮件数"
// @Router /emails/{id}/dismiss-conversation [post]
func (h *EmailHandler) DismissConversation(c *gin.Context) {
	conversationID := c.Param("id")

	count, err := h.emails.DismissConversation(c.Request.Context(), conversationID)
	if err != nil {
		h.log.Error("dismiss conversation failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		InternalError(c, MsgDismissFailed)
		return
	}

	Success(c, gin.H{"conversation_id": conversationID, "dismissed": count})
}

// Open 用系统默认程序打开归档的 .eml 文件
// @Summary 打开邮件
// @Tags 邮件
// @Produce json
// @Param id path string true "邮件 Message-ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response "邮件未归档"
// @Router /open/{id} [post]
func (h *EmailHandler) Open(c *gin.Context) {
	messageID := c.Param("id")

	if err := h.emails.Open(c.Request.Context(), messageID); err != nil {
		if errors.Is(err, service.ErrEmailNotFound) {
			NotFound(c, GetErrorMessage(service.ErrEmailNotFound))
			return
		}
		h.log.Error("open failed", zap.String("message_id", messageID), zap.Error(err))
		InternalError(c, MsgOpenFailed)
		return
	}

	Success(c, gin.H{"message_id": messageID})
}

// FetchNow 立即按当前配置抓取一轮
// @Summary 立即抓取
// @Description 跳过调度器间隔，按当前配置同步抓取一轮
// @Tags 邮件
// @Produce json
// @Success 200 {object} Response "本次抓取后的快照条数"
// @Router /fetch-now [post]
func (h *EmailHandler) FetchNow(c *gin.Context) {
	cfg, err := h.configs.Get()
	if err != nil {
		h.log.Error("failed to load fetch config", zap.Error(err))
		InternalError(c, MsgConfigGetFailed)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), fetchNowTimeout)
	defer cancel()

	if err := h.emails.FetchAndTrack(ctx, cfg.Window); err != nil {
		h.log.Error("manual fetch failed", zap.Error(err))
		InternalError(c, MsgFetchFailed)
		return
	}

	Success(c, gin.H{"count": len(h.emails.Snapshot())})
}

// buildQuery 把查询参数组装成列表变换参数，缺省值取用户设置
func (h *EmailHandler) buildQuery(c *gin.Context) triage.Query {
	settings, err := h.settings.Get(h.userID)
	if err != nil {
		settings = domain.DefaultUserSettings(h.userID)
	}

	q := triage.Query{
		Search:    c.Query("search"),
		SortKey:   settings.DefaultSort,
		Direction: triage.Descending,
		Page:      1,
		PageSize:  settings.EntriesPerPage,
	}

	if sort := c.Query("sort"); sort != "" {
		q.SortKey = domain.SortColumn(sort)
	}
	if dir := c.Query("dir"); dir == string(triage.Ascending) {
		q.Direction = triage.Ascending
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		q.Page = page
	}
	if size, err := strconv.Atoi(c.Query("page_size")); err == nil && size > 0 {
		q.PageSize = size
	}

	return q
}
