// Package health 提供两路健康检查：本地存储与上游邮箱。
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"outprio/backend/internal/mailsource"
	"outprio/backend/internal/storage"
)

const checkTimeout = 5 * time.Second

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	source mailsource.Source
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器。source 可为 nil（纯账号服务进程）。
func NewHealthChecker(store storage.Store, source mailsource.Source, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		source: source,
		logger: logger,
	}
	hc.addChecks()
	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck("storage", func() error {
		return hc.store.Health()
	})

	if hc.source != nil {
		// 上游检查会真的拨号，只挂 readiness 不挂 liveness
		hc.health.AddReadinessCheck("mailsource", func() error {
			return hc.CheckOutlook()
		})
	}
}

// CheckLocal 检查本地存储。
func (hc *HealthChecker) CheckLocal() error {
	if err := hc.store.Health(); err != nil {
		return fmt.Errorf("storage unhealthy: %w", err)
	}
	return nil
}

// CheckOutlook 检查上游邮箱连通性。
func (hc *HealthChecker) CheckOutlook() error {
	if hc.source == nil {
		return fmt.Errorf("no mail source configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	if err := hc.source.Health(ctx); err != nil {
		return fmt.Errorf("mail source unhealthy: %w", err)
	}
	return nil
}

// Handler 返回健康检查处理器（/live 和 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// CheckHealth 执行全部检查并返回摘要。
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.CheckLocal(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}

	if hc.source != nil {
		if err := hc.CheckOutlook(); err != nil {
			results["mailsource"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results["mailsource"] = "OK"
		}
	} else {
		results["mailsource"] = "NOT_AVAILABLE"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}
