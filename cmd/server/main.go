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

	"outprio/backend/internal/config"
	"outprio/backend/internal/domain"
	"outprio/backend/internal/health"
	"outprio/backend/internal/logger"
	"outprio/backend/internal/mailsource"
	"outprio/backend/internal/monitoring"
	"outprio/backend/internal/scheduler"
	"outprio/backend/internal/service"
	"outprio/backend/internal/storage"
	"outprio/backend/internal/storage/filesystem"
	"outprio/backend/internal/storage/hybrid"
	"outprio/backend/internal/storage/memory"
	httptransport "outprio/backend/internal/transport/http"
	"outprio/backend/internal/websocket"
)

// localUserID 是分拣后端单用户模式下的固定用户标识。
// 设置与许可都挂在这个账号上。
const localUserID = "local-user"

// main 启动本机分拣后端：调度拉取、分类快照与前端 API。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
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
	log.Info("starting outprio triage server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = initializeDatabaseStorage(cfg, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// .eml 归档失败不拦启动，只是没有原始邮件可看
	var archive *filesystem.Store
	if cfg.Archive.Dir != "" {
		archive, err = filesystem.NewStore(cfg.Archive.Dir)
		if err != nil {
			log.Warn("failed to initialize archive store, raw emails will not be kept",
				zap.String("dir", cfg.Archive.Dir),
				zap.Error(err))
			archive = nil
		}
	}

	// 上游邮箱：没配 IMAP 账号时退化为假数据源，方便前端联调
	var source mailsource.Source
	if cfg.IMAP.Username != "" {
		source = mailsource.NewIMAPSource(cfg.IMAP, log)
		log.Info("using IMAP mail source", zap.String("address", cfg.IMAP.Address))
	} else {
		source = mailsource.NewFakeSource()
		log.Warn("no IMAP credentials configured, using fake mail source")
	}

	// 初始化监控指标
	metrics := monitoring.NewMetrics()

	// WebSocket 事件推送。本地服务不做连接认证。
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, nil, metrics, log)

	opener := mailsource.NewOpener(cfg.Archive.OpenCmd)
	emailService := service.NewEmailService(source, store, archive, opener, wsHub, nil, log)
	emailService.SetMetrics(metrics)
	defer emailService.Close()

	settingsService := service.NewSettingsService(store, emailService, log)
	if settings, err := settingsService.Get(localUserID); err != nil {
		log.Warn("failed to load user settings, using defaults", zap.Error(err))
	} else {
		emailService.ReloadSettings(&settings)
	}

	// 调度器：每轮拉取喂告警追踪器，自动回退时把默认配置落库
	fetchFailures := &monitoring.FetchFailureTracker{}
	fetch := func(ctx context.Context, window domain.FetchWindow) error {
		err := emailService.FetchAndTrack(ctx, window)
		fetchFailures.Record(err)
		return err
	}
	sched := scheduler.New(fetch, log, func(def domain.FetchConfig) {
		if err := store.SaveFetchConfig(&def); err != nil {
			log.Error("failed to persist auto-reset fetch config", zap.Error(err))
		}
	})
	defer sched.Stop()

	configService := service.NewFetchConfigService(store, sched, log)
	startCfg, err := configService.Get()
	if err != nil {
		log.Warn("failed to load fetch config, using defaults", zap.Error(err))
		startCfg = domain.DefaultFetchConfig()
	}
	sched.Start(startCfg)

	// 许可校验只在共享数据库模式下开启：本机内存存储里没有账号档案
	var licenseService *service.LicenseService
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		licenseService = service.NewLicenseService(store, log)
	}

	healthChecker := health.NewHealthChecker(store, source, log)

	// 告警：上游连续失败、存储不可用、内存超限
	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.ConsecutiveFetchFailuresRule(fetchFailures, 3))
	alertManager.AddRule(monitoring.StorageHealthRule(store))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0))

	router := httptransport.NewTriageRouter(httptransport.TriageRouterDependencies{
		Config:        cfg,
		EmailService:  emailService,
		ConfigService: configService,
		Settings:      settingsService,
		HealthChecker: healthChecker,
		WebSocketHub:  wsHub,
		Metrics:       metrics,
		Licenses:      licenseService,
		UserID:        localUserID,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("triage API server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 监控服务 goroutine
	group.Go(func() error {
		log.Info("starting alert monitoring")
		alertManager.StartMonitoring(groupCtx, 1*time.Minute)
		return nil
	})

	// 定期清理 goroutine：过期的跟踪记录只占地方
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -trackedRetentionDays)
				if n, err := store.PurgeTrackedBefore(cutoff); err != nil {
					log.Error("failed to purge tracked emails", zap.Error(err))
				} else if n > 0 {
					log.Info("purged stale tracked emails", zap.Int("count", n))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		sched.Stop()
		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// trackedRetentionDays 决定已驳回/已跟踪记录保留多少天。
// 超过最大回看窗口（30 天）的记录不会再被任何查询命中。
const trackedRetentionDays = 31

// initializeDatabaseStorage 建立 SQL + Redis 混合存储。
func initializeDatabaseStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	log.Info("initializing database storage",
		zap.String("database_type", cfg.Database.Type),
		zap.String("redis_address", cfg.Redis.Address),
	)

	store, err := hybrid.NewStore(
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
		return nil, fmt.Errorf("failed to create hybrid store: %w", err)
	}

	log.Info("database storage initialized successfully",
		zap.String("database_type", cfg.Database.Type),
	)
	return store, nil
}
