package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"outprio/backend/internal/auth"
	jwtpkg "outprio/backend/internal/auth/jwt"
	"outprio/backend/internal/config"
	"outprio/backend/internal/logger"
	"outprio/backend/internal/middleware"
	"outprio/backend/internal/monitoring"
	"outprio/backend/internal/service"
	"outprio/backend/internal/storage"
	"outprio/backend/internal/storage/hybrid"
	"outprio/backend/internal/storage/memory"
	httptransport "outprio/backend/internal/transport/http"
)

// main 启动账号/计费服务：注册登录、许可状态与 Stripe 订阅。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting outprio web server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 账号数据必须落库，内存存储只给本地开发用
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = hybrid.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Warn("using memory storage, accounts will not survive restarts")
	}
	defer store.Close()

	// 两个 JWT 句柄共用一套配置：签发走包装层，中间件校验走底层管理器
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	authService := auth.NewAuthService(store, store, auth.NewJWTManager(&cfg.JWT), store)
	jwtAuth := middleware.NewJWTAuth(jwtManager, store, log)

	otpService := service.NewOTPService(store, store, cfg.OTP.Expiry, log)
	licenseService := service.NewLicenseService(store, log)

	var billingService *service.BillingService
	if cfg.Stripe.SecretKey != "" {
		billingService = service.NewBillingService(cfg.Stripe, store, log)
		log.Info("stripe billing enabled")
	} else {
		log.Warn("no stripe secret key configured, billing routes disabled")
	}

	metrics := monitoring.NewMetrics()

	router := httptransport.NewWebRouter(httptransport.WebRouterDependencies{
		Config:         cfg,
		AuthService:    authService,
		OTPService:     otpService,
		LicenseService: licenseService,
		BillingService: billingService,
		JWTAuth:        jwtAuth,
		Metrics:        metrics,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("web API server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	// 过期验证码定期清理
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				if n, err := otpService.PurgeExpired(); err != nil {
					log.Error("failed to purge expired OTP codes", zap.Error(err))
				} else if n > 0 {
					log.Info("purged expired OTP codes", zap.Int("count", n))
				}
			}
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
