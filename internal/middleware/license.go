package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/service"
)

// LicenseGate 许可校验中间件：试用或订阅过期时拒绝业务请求
type LicenseGate struct {
	licenses *service.LicenseService
	log      *zap.Logger
}

// NewLicenseGate 创建许可校验中间件
func NewLicenseGate(licenses *service.LicenseService, log *zap.Logger) *LicenseGate {
	if log == nil {
		log = zap.NewNop()
	}
	return &LicenseGate{
		licenses: licenses,
		log:      log,
	}
}

// RequireActive 要求有效许可（付费或试用期内），过期返回 402
func (lg *LicenseGate) RequireActive() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		info, err := lg.licenses.Status(userID)
		if err != nil {
			lg.log.Warn("license lookup failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": "no license found, start a trial or subscribe",
			})
			c.Abort()
			return
		}

		if info.Status != domain.LicenseActive {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":  "trial or subscription expired",
				"status": info.Status,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
