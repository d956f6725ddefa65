package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"outprio/backend/internal/config"
	"outprio/backend/internal/storage"
)

var (
	ErrUnknownPlan        = errors.New("unknown subscription plan")
	ErrWebhookInvalid     = errors.New("webhook signature verification failed")
	ErrSubscriptionNotSet = errors.New("profile has no subscription")
)

// BillingService 是 Stripe 的薄代理：结账、订阅管理、回调落档案。
// 订阅状态的唯一权威是 Stripe，档案只是回调写入的缓存视图。
type BillingService struct {
	cfg      config.StripeConfig
	profiles storage.ProfileRepository
	log      *zap.Logger
}

// NewBillingService 创建计费服务并设置 Stripe 密钥。
func NewBillingService(cfg config.StripeConfig, profiles storage.ProfileRepository, log *zap.Logger) *BillingService {
	stripe.Key = cfg.SecretKey
	return &BillingService{cfg: cfg, profiles: profiles, log: log}
}

// priceFor 把订阅周期映射到价格 ID。
func (s *BillingService) priceFor(plan string) (string, error) {
	switch plan {
	case "month":
		return s.cfg.MonthlyPriceID, nil
	case "year":
		return s.cfg.AnnualPriceID, nil
	}
	return "", ErrUnknownPlan
}

// CreateCheckoutSession 创建订阅结账会话，返回跳转 URL。
// 用户 ID 放进 client_reference_id，回调里靠它找回档案。
func (s *BillingService) CreateCheckoutSession(userID, email, plan string) (string, error) {
	price, err := s.priceFor(plan)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(price),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		CustomerEmail:     stripe.String(email),
		ClientReferenceID: stripe.String(userID),
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// UpgradeSubscription 为已有订阅的用户创建切换计划的结账会话。
// 没有现存订阅就没有可升级的对象；新订阅在 checkout.session.completed
// 回调里生效，被替换的旧订阅也在那里作废。
func (s *BillingService) UpgradeSubscription(userID, email, plan string) (string, error) {
	profile, err := s.profiles.GetProfile(userID)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.SubscriptionID == "" {
		return "", ErrSubscriptionNotSet
	}
	return s.CreateCheckoutSession(userID, email, plan)
}

// CancelSubscription 在当前计费周期结束时取消订阅。
// 已付周期用到期末，档案状态由 Stripe 的 deleted 回调收尾。
func (s *BillingService) CancelSubscription(subscriptionID string) error {
	_, err := subscription.Update(subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	s.log.Info("subscription set to cancel at period end",
		zap.String("subscription_id", subscriptionID))
	return nil
}

// ResumeSubscription 撤销期末取消。
func (s *BillingService) ResumeSubscription(subscriptionID string) error {
	_, err := subscription.Update(subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("failed to resume subscription: %w", err)
	}
	return nil
}

// SubscriptionInfo 查询订阅详情。
func (s *BillingService) SubscriptionInfo(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// CreatePortalSession 创建客户自助门户会话，返回跳转 URL。
func (s *BillingService) CreatePortalSession(subscriptionID string) (string, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub.Customer == nil {
		return "", ErrSubscriptionNotSet
	}

	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.Customer.ID),
		ReturnURL: stripe.String(s.cfg.SuccessURL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook 校验签名并处理 Stripe 回调。
// 未处理的事件类型静默忽略，Stripe 会重试失败的投递。
func (s *BillingService) HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return ErrWebhookInvalid
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return s.activateSubscription(&sess)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return s.deactivateSubscription(sub.ID)
	default:
		s.log.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		return nil
	}
}

// activateSubscription 结账完成：把订阅写进档案，并取消被替换的旧订阅。
func (s *BillingService) activateSubscription(sess *stripe.CheckoutSession) error {
	userID := sess.ClientReferenceID
	if userID == "" || sess.Subscription == nil {
		return errors.New("checkout session missing reference or subscription")
	}

	sub, err := subscription.Get(sess.Subscription.ID, nil)
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}

	profile, err := s.profiles.GetProfile(userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	// 升降级场景：新订阅生效后旧订阅立即作废
	if old := profile.SubscriptionID; old != "" && old != sub.ID {
		if _, err := subscription.Cancel(old, nil); err != nil {
			s.log.Warn("failed to cancel superseded subscription",
				zap.String("subscription_id", old),
				zap.Error(err))
		}
	}

	start := time.Unix(sub.CurrentPeriodStart, 0)
	end := time.Unix(sub.CurrentPeriodEnd, 0)
	profile.IsPaid = true
	profile.SubscriptionID = sub.ID
	profile.SubscriptionType = planInterval(sub)
	profile.SubscriptionStart = &start
	profile.SubscriptionEnd = &end

	if err := s.profiles.SaveProfile(profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	s.log.Info("subscription activated",
		zap.String("user_id", userID),
		zap.String("subscription_id", sub.ID))
	return nil
}

// deactivateSubscription 订阅终止：按订阅 ID 找回档案并撤销付费标记。
func (s *BillingService) deactivateSubscription(subscriptionID string) error {
	profile, err := s.profiles.GetProfileBySubscription(subscriptionID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			// 档案里已经是别的订阅了，无需处理
			return nil
		}
		return fmt.Errorf("failed to load profile: %w", err)
	}

	profile.IsPaid = false
	profile.SubscriptionID = ""
	profile.SubscriptionType = ""
	if err := s.profiles.SaveProfile(profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	s.log.Info("subscription deactivated",
		zap.String("user_id", profile.UserID),
		zap.String("subscription_id", subscriptionID))
	return nil
}

// planInterval 从订阅条目推出计费周期（month / year）。
func planInterval(sub *stripe.Subscription) string {
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil && item.Price.Recurring != nil {
			return string(item.Price.Recurring.Interval)
		}
	}
	return ""
}
