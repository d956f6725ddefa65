package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"outprio/backend/internal/auth"
	"outprio/backend/internal/config"
	"outprio/backend/internal/health"
	"outprio/backend/internal/middleware"
	"outprio/backend/internal/monitoring"
	"outprio/backend/internal/service"
	"outprio/backend/internal/websocket"
)

// TriageRouterDependencies 分拣后端路由的依赖项
type TriageRouterDependencies struct {
	Config        *config.Config
	EmailService  *service.EmailService
	ConfigService *service.FetchConfigService
	Settings      *service.SettingsService
	HealthChecker *health.HealthChecker
	WebSocketHub  *websocket.Hub
	Metrics       *monitoring.Metrics
	Licenses      *service.LicenseService // 非 nil 时主视图路由做许可校验
	UserID        string                  // 本地模式下的固定用户
	Logger        *zap.Logger
}

// NewTriageRouter 创建分拣后端的 Gin 路由实例。
// 该服务只监听回环地址，供桌面前端调用，不做请求认证。
func NewTriageRouter(deps TriageRouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
	router.Use(corsMiddleware(deps.Config))

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
		router.Use(mm.RateLimitMetrics())
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	} else {
		router.Use(gin.Recovery())
	}

	emailHandler := NewEmailHandler(deps.EmailService, deps.ConfigService, deps.Settings, deps.UserID, deps.Logger)
	configHandler := NewConfigHandler(deps.ConfigService, deps.Logger)
	settingsHandler := NewSettingsHandler(deps.Settings, deps.UserID, deps.Logger)

	// 手动抓取会打上游 IMAP，限制触发频率
	fetchLimiter := middleware.NewRateLimiter(rate.Every(10*time.Second), 3)

	// ========== Email Routes ==========
	emailRoutes := router.Group("/")
	if deps.Licenses != nil {
		gate := middleware.NewLicenseGate(deps.Licenses, deps.Logger)
		emailRoutes.Use(func(c *gin.Context) {
			c.Set("userID", deps.UserID)
			c.Next()
		}, gate.RequireActive())
	}
	emailRoutes.GET("/emails", emailHandler.List)
	emailRoutes.POST("/emails/:id/dismiss", emailHandler.Dismiss)
	emailRoutes.POST("/emails/:id/dismiss-conversation", emailHandler.DismissConversation)
	emailRoutes.POST("/open/:id", emailHandler.Open)
	emailRoutes.POST("/fetch-now", fetchLimiter.Handler(), emailHandler.FetchNow)

	// ========== Config Routes ==========
	router.GET("/config", configHandler.Get)
	router.POST("/config", configHandler.Save)
	router.POST("/config/confirm", configHandler.Confirm)
	router.POST("/config/reset", configHandler.Reset)
	router.GET("/config/status", configHandler.Status)

	// ========== Settings Routes ==========
	router.GET("/user-config", settingsHandler.Get)
	router.POST("/user-config", settingsHandler.Save)

	// ========== Health Routes ==========
	if deps.HealthChecker != nil {
		healthHandler := NewHealthHandler(deps.HealthChecker)
		router.GET("/health", healthHandler.Summary)
		router.GET("/health/local", healthHandler.Local)
		router.GET("/health/outlook", healthHandler.Outlook)
		router.GET("/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/ready", gin.WrapH(deps.HealthChecker.Handler()))
	}

	// ========== WebSocket Routes ==========
	if deps.WebSocketHub != nil {
		router.GET("/events", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	return router
}

// WebRouterDependencies 账号/计费服务路由的依赖项
type WebRouterDependencies struct {
	Config         *config.Config
	AuthService    *auth.AuthService
	OTPService     *service.OTPService
	LicenseService *service.LicenseService
	BillingService *service.BillingService
	JWTAuth        *middleware.JWTAuth
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewWebRouter 创建账号/计费服务的 Gin 路由实例
func NewWebRouter(deps WebRouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(corsMiddleware(deps.Config))
	router.Use(middleware.DynamicBodySizeLimit(map[string]int64{
		"/v1/billing/webhook": middleware.WebhookBodyLimit,
	}, middleware.SmallBodyLimit))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ValidateContentType("application/json"))

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	} else {
		router.Use(gin.Recovery())
	}

	// 登录和注册防爆破
	authLimiter := middleware.NewRateLimiter(rate.Every(time.Second), 10)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.OTPService, deps.Logger)
	licenseHandler := NewLicenseHandler(deps.LicenseService, deps.Logger)

	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authLimiter.Handler(), authHandler.Register)
			authRoutes.POST("/login", authLimiter.Handler(), authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", deps.JWTAuth.RequireAuth(), authHandler.Me)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.POST("/change-password", deps.JWTAuth.RequireAuth(), authHandler.ChangePassword)
			authRoutes.POST("/password-reset/request", authLimiter.Handler(), authHandler.RequestPasswordReset)
			authRoutes.POST("/password-reset/confirm", authLimiter.Handler(), authHandler.ConfirmPasswordReset)
		}

		// ========== License Routes ==========
		licenseRoutes := v1.Group("/license")
		licenseRoutes.Use(deps.JWTAuth.RequireAuth())
		{
			licenseRoutes.GET("", licenseHandler.Status)
			licenseRoutes.POST("/trial", licenseHandler.StartTrial)
		}

		// ========== Profile Routes ==========
		v1.GET("/profile", deps.JWTAuth.RequireAuth(), licenseHandler.Profile)

		// ========== Billing Routes ==========
		if deps.BillingService != nil {
			billingHandler := NewBillingHandler(deps.BillingService, deps.Logger)
			billingRoutes := v1.Group("/billing")
			{
				// webhook 用 Stripe 签名校验身份，不走 JWT
				billingRoutes.POST("/webhook", billingHandler.Webhook)

				billingRoutes.POST("/create-checkout-session", deps.JWTAuth.RequireAuth(), billingHandler.CreateCheckoutSession)
				billingRoutes.POST("/upgrade-subscription", deps.JWTAuth.RequireAuth(), billingHandler.UpgradeSubscription)
				billingRoutes.POST("/cancel-subscription/:id", deps.JWTAuth.RequireAuth(), billingHandler.CancelSubscription)
				billingRoutes.POST("/resume-subscription/:id", deps.JWTAuth.RequireAuth(), billingHandler.ResumeSubscription)
				billingRoutes.GET("/subscription-info/:id", deps.JWTAuth.RequireAuth(), billingHandler.SubscriptionInfo)
				billingRoutes.POST("/create-portal-session/:id", deps.JWTAuth.RequireAuth(), billingHandler.CreatePortalSession)
			}
		}
	}

	return router
}

// corsMiddleware 按配置构造 CORS 中间件
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := gincors.Config{
		AllowOrigins: cfg.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}

	return gincors.New(corsConfig)
}
