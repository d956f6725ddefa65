package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outprio/backend/internal/config"
	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage/memory"
)

func newTestBilling(t *testing.T) (*BillingService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := config.StripeConfig{
		MonthlyPriceID: "price_month",
		AnnualPriceID:  "price_year",
	}
	return NewBillingService(cfg, store, zap.NewNop()), store
}

func TestPriceFor(t *testing.T) {
	svc, _ := newTestBilling(t)

	t.Run("已知计划映射到价格 ID", func(t *testing.T) {
		price, err := svc.priceFor("month")
		require.NoError(t, err)
		assert.Equal(t, "price_month", price)

		price, err = svc.priceFor("year")
		require.NoError(t, err)
		assert.Equal(t, "price_year", price)
	})

	t.Run("未知计划报错", func(t *testing.T) {
		_, err := svc.priceFor("weekly")
		assert.ErrorIs(t, err, ErrUnknownPlan)
	})
}

func TestUpgradeSubscription(t *testing.T) {
	t.Run("没有现存订阅不能升级", func(t *testing.T) {
		svc, store := newTestBilling(t)
		require.NoError(t, store.SaveProfile(&domain.Profile{
			UserID: "u1",
			Email:  "abdul@example.com",
		}))

		_, err := svc.UpgradeSubscription("u1", "abdul@example.com", "year")
		assert.ErrorIs(t, err, ErrSubscriptionNotSet)
	})

	t.Run("档案不存在原样上抛", func(t *testing.T) {
		svc, _ := newTestBilling(t)
		_, err := svc.UpgradeSubscription("ghost", "ghost@example.com", "year")
		assert.Error(t, err)
	})
}
