package httptransport

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outprio/backend/internal/service"
)

// BillingHandler Stripe 订阅相关的 HTTP 处理器
type BillingHandler struct {
	billing *service.BillingService
	log     *zap.Logger
}

// NewBillingHandler 创建计费处理器
func NewBillingHandler(billing *service.BillingService, log *zap.Logger) *BillingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BillingHandler{billing: billing, log: log}
}

type checkoutRequest struct {
	Plan string `json:"plan" binding:"required"` // month 或 year
}

// CreateCheckoutSession 创建订阅支付会话
// @Summary 创建支付会话
// @Description 为当前用户创建 Stripe Checkout 会话，返回跳转地址
// @Tags 计费
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body checkoutRequest true "订阅计划"
// @Success 200 {object} Response "Checkout 跳转地址"
// @Failure 400 {object} Response "未知计划"
// @Router /v1/billing/create-checkout-session [post]
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	userID := c.GetString("userID")
	email := c.GetString("email")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	url, err := h.billing.CreateCheckoutSession(userID, email, req.Plan)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlan) {
			BadRequest(c, GetErrorMessage(service.ErrUnknownPlan))
			return
		}
		h.log.Error("failed to create checkout session", zap.Error(err))
		InternalError(c, "创建支付会话失败")
		return
	}

	Success(c, gin.H{"url": url})
}

// UpgradeSubscription 为现有订阅切换计划
// @Summary 升级订阅
// @Description 创建新计划的结账会话，支付完成后被替换的旧订阅作废
// @Tags 计费
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body checkoutRequest true "新订阅计划"
// @Success 200 {object} Response "Checkout 跳转地址"
// @Failure 400 {object} Response "未知计划或没有现存订阅"
// @Router /v1/billing/upgrade-subscription [post]
func (h *BillingHandler) UpgradeSubscription(c *gin.Context) {
	userID := c.GetString("userID")
	email := c.GetString("email")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	url, err := h.billing.UpgradeSubscription(userID, email, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan):
			BadRequest(c, GetErrorMessage(service.ErrUnknownPlan))
		case errors.Is(err, service.ErrSubscriptionNotSet):
			BadRequest(c, GetErrorMessage(service.ErrSubscriptionNotSet))
		default:
			h.log.Error("failed to upgrade subscription",
				zap.String("user_id", userID), zap.Error(err))
			InternalError(c, "升级订阅失败")
		}
		return
	}

	Success(c, gin.H{"url": url})
}

// CancelSubscription 在当前周期末取消订阅
// @Summary 取消订阅
// @Description 订阅在当前计费周期结束时停止续费
// @Tags 计费
// @Produce json
// @Security BearerAuth
// @Param id path string true "Stripe 订阅 ID"
// @Success 200 {object} Response
// @Router /v1/billing/cancel-subscription/{id} [post]
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	subscriptionID := c.Param("id")

	if err := h.billing.CancelSubscription(subscriptionID); err != nil {
		h.log.Error("failed to cancel subscription",
			zap.String("subscription_id", subscriptionID), zap.Error(err))
		InternalError(c, "取消订阅失败")
		return
	}

	SuccessWithMsg(c, "订阅将在当前周期结束时取消", nil)
}

// ResumeSubscription 撤销周期末取消
// @Summary 恢复订阅
// @Tags 计费
// @Produce json
// @Security BearerAuth
// @Param id path string true "Stripe 订阅 ID"
// @Success 200 {object} Response
// @Router /v1/billing/resume-subscription/{id} [post]
func (h *BillingHandler) ResumeSubscription(c *gin.Context) {
	subscriptionID := c.Param("id")

	if err := h.billing.ResumeSubscription(subscriptionID); err != nil {
		h.log.Error("failed to resume subscription",
			zap.String("subscription_id", subscriptionID), zap.Error(err))
		InternalError(c, "恢复订阅失败")
		return
	}

	SuccessWithMsg(c, "订阅已恢复续费", nil)
}

// SubscriptionInfo 查询订阅详情
// @Summary 查询订阅详情
// @Tags 计费
// @Produce json
// @Security BearerAuth
// @Param id path string true "Stripe 订阅 ID"
// @Success 200 {object} Response
// @Router /v1/billing/subscription-info/{id} [get]
func (h *BillingHandler) SubscriptionInfo(c *gin.Context) {
	subscriptionID := c.Param("id")

	sub, err := h.billing.SubscriptionInfo(subscriptionID)
	if err != nil {
		h.log.Error("failed to get subscription",
			zap.String("subscription_id", subscriptionID), zap.Error(err))
		InternalError(c, "获取订阅信息失败")
		return
	}

	Success(c, gin.H{
		"id":                   sub.ID,
		"status":               sub.Status,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
		"current_period_end":   sub.CurrentPeriodEnd,
	})
}

// CreatePortalSession 创建 Stripe 客户门户会话
// @Summary 打开客户门户
// @Description 返回 Stripe Billing Portal 跳转地址，用户在门户中管理支付方式
// @Tags 计费
// @Produce json
// @Security BearerAuth
// @Param id path string true "Stripe 订阅 ID"
// @Success 200 {object} Response "门户跳转地址"
// @Router /v1/billing/create-portal-session/{id} [post]
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	subscriptionID := c.Param("id")

	url, err := h.billing.CreatePortalSession(subscriptionID)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotSet) {
			BadRequest(c, GetErrorMessage(service.ErrSubscriptionNotSet))
			return
		}
		h.log.Error("failed to create portal session",
			zap.String("subscription_id", subscriptionID), zap.Error(err))
		InternalError(c, "创建门户会话失败")
		return
	}

	Success(c, gin.H{"url": url})
}

// Webhook 接收 Stripe 事件回调。签名校验失败返回 400，
// 处理失败返回 500 让 Stripe 重试
// @Summary Stripe Webhook
// @Tags 计费
// @Accept json
// @Produce json
// @Success 200 {object} Response
// @Failure 400 {object} Response "签名校验失败"
// @Router /v1/billing/webhook [post]
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.billing.HandleWebhook(payload, signature); err != nil {
		if errors.Is(err, service.ErrWebhookInvalid) {
			BadRequest(c, "webhook 签名校验失败")
			return
		}
		h.log.Error("webhook handling failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, nil)
}
