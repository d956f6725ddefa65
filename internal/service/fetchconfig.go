package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/scheduler"
	"outprio/backend/internal/storage"
)

// FetchConfigService 管理拉取配置的读写，并在保存后驱动调度器。
// 配置整体读整体写，没有逐键补丁。
type FetchConfigService struct {
	store storage.FetchConfigRepository
	sched *scheduler.Scheduler
	log   *zap.Logger
}

// NewFetchConfigService 创建拉取配置服务。
func NewFetchConfigService(store storage.FetchConfigRepository, sched *scheduler.Scheduler, log *zap.Logger) *FetchConfigService {
	return &FetchConfigService{store: store, sched: sched, log: log}
}

// Get 返回持久化的配置；还没有保存过时返回默认值。
func (s *FetchConfigService) Get() (domain.FetchConfig, error) {
	cfg, err := s.store.GetFetchConfig()
	if err != nil {
		if errors.Is(err, storage.ErrSettingsNotFound) {
			return domain.DefaultFetchConfig(), nil
		}
		return domain.FetchConfig{}, fmt.Errorf("failed to load fetch config: %w", err)
	}
	return *cfg, nil
}

// Save 校验并持久化新配置，成功后重启调度器。
// 先落库再重启：进程此刻崩掉，重启后载入的也是新配置。
func (s *FetchConfigService) Save(cfg domain.FetchConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveFetchConfig(&cfg); err != nil {
		return fmt.Errorf("failed to save fetch config: %w", err)
	}

	s.sched.Restart(cfg)
	s.log.Info("fetch config saved",
		zap.Int("fetch_interval_minutes", cfg.IntervalMinutes),
		zap.String("mode", string(cfg.Window.Mode)))
	return nil
}

// Confirm 确认启动时挂起的大窗口配置。
func (s *FetchConfigService) Confirm() {
	s.sched.Confirm()
}

// Reset 放弃当前窗口回落默认，并把默认配置持久化。
func (s *FetchConfigService) Reset() (domain.FetchConfig, error) {
	cfg := s.sched.Reset()
	if err := s.store.SaveFetchConfig(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to persist default config: %w", err)
	}
	s.log.Info("fetch config reset to default")
	return cfg, nil
}

// Status 透出调度器快照。
func (s *FetchConfigService) Status() scheduler.Status {
	return s.sched.Status()
}
