// Package scheduler 拥有拉取节拍：立即拉一次，然后按配置间隔滴答。
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"outprio/backend/internal/domain"
)

// confirmTimeout 是大窗口配置等待确认的时限，超时自动回落到默认窗口。
const confirmTimeout = 60 * time.Second

// FetchFunc 执行一轮拉取。错误被调度器记录并吞掉，节拍不变。
type FetchFunc func(ctx context.Context, window domain.FetchWindow) error

// Status 是调度器的对外快照。
type Status struct {
	LastFetch            time.Time
	NextFetch            time.Time
	AwaitingConfirmation bool
}

// Scheduler 串行驱动周期拉取。
//
// 启动时如果载入的配置回看超过默认值或是自定义区间，调度器挂起等待
// 确认，并起一个一次性定时器：60 秒内没有确认就自动回落到默认窗口。
// 每次 Restart 恰好对应一次立即拉取，之后按新间隔滴答。
type Scheduler struct {
	fetch FetchFunc
	log   *zap.Logger

	mu        sync.Mutex
	cfg       domain.FetchConfig
	cancel    context.CancelFunc
	lastFetch time.Time
	nextFetch time.Time

	awaiting     bool
	confirmTimer *time.Timer
	timeout      time.Duration

	// onAutoReset 在确认超时回落后调用，让上层持久化默认配置。
	onAutoReset func(domain.FetchConfig)
}

// New 创建调度器。onAutoReset 可以为 nil。
func New(fetch FetchFunc, log *zap.Logger, onAutoReset func(domain.FetchConfig)) *Scheduler {
	return &Scheduler{
		fetch:       fetch,
		log:         log,
		timeout:     confirmTimeout,
		onAutoReset: onAutoReset,
	}
}

// Start 用载入的配置启动。大窗口配置先挂起等确认。
func (s *Scheduler) Start(cfg domain.FetchConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	if cfg.Window.NeedsConfirmation() {
		s.awaiting = true
		s.confirmTimer = time.AfterFunc(s.timeout, s.autoReset)
		s.log.Warn("fetch window needs confirmation, scheduler suspended",
			zap.Duration("timeout", s.timeout))
		return
	}
	s.startLoopLocked()
}

// Restart 用新配置重启：先撤销待确认状态和旧节拍，再立即拉取一次并按
// 新间隔滴答。挂起期间保存的新配置会取代待确认的配置。
func (s *Scheduler) Restart(cfg domain.FetchConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearConfirmLocked()
	s.stopLocked()
	s.cfg = cfg
	s.startLoopLocked()
}

// Confirm 确认挂起的大窗口配置并启动节拍。
// 没有待确认的配置时是无操作。
func (s *Scheduler) Confirm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.awaiting {
		return
	}
	s.clearConfirmLocked()
	s.log.Info("fetch window confirmed",
		zap.String("mode", string(s.cfg.Window.Mode)))
	s.startLoopLocked()
}

// Reset 放弃挂起或生效的配置，回落到默认窗口并启动节拍。
// 返回生效的默认配置，供上层持久化。
func (s *Scheduler) Reset() domain.FetchConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearConfirmLocked()
	s.stopLocked()
	s.cfg = domain.DefaultFetchConfig()
	s.startLoopLocked()
	return s.cfg
}

// Stop 停止节拍。可重复调用。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearConfirmLocked()
	s.stopLocked()
}

// Status 返回当前快照。
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		LastFetch:            s.lastFetch,
		NextFetch:            s.nextFetch,
		AwaitingConfirmation: s.awaiting,
	}
}

// autoReset 在确认超时后回落到默认窗口。
func (s *Scheduler) autoReset() {
	s.mu.Lock()
	if !s.awaiting {
		s.mu.Unlock()
		return
	}
	s.awaiting = false
	s.confirmTimer = nil
	s.stopLocked()
	s.cfg = domain.DefaultFetchConfig()
	s.startLoopLocked()
	cb := s.onAutoReset
	cfg := s.cfg
	s.mu.Unlock()

	s.log.Warn("fetch window confirmation timed out, reverted to default",
		zap.Int("lookback_hours", cfg.Window.LookbackHours))
	if cb != nil {
		cb(cfg)
	}
}

// startLoopLocked 起一个拉取循环。调用方必须持有 s.mu。
func (s *Scheduler) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop(ctx, s.cfg)
}

// stopLocked 取消当前循环。调用方必须持有 s.mu。
func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// clearConfirmLocked 取消确认定时器。调用方必须持有 s.mu。
func (s *Scheduler) clearConfirmLocked() {
	if s.confirmTimer != nil {
		s.confirmTimer.Stop()
		s.confirmTimer = nil
	}
	s.awaiting = false
}

// loop 立即拉一次，然后按间隔滴答直到 ctx 取消。
func (s *Scheduler) loop(ctx context.Context, cfg domain.FetchConfig) {
	interval := cfg.Interval()
	s.runFetch(ctx, cfg.Window, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runFetch(ctx, cfg.Window, interval)
		}
	}
}

// runFetch 执行一轮拉取。lastFetch 在尝试开始时记录，失败不影响节拍。
func (s *Scheduler) runFetch(ctx context.Context, window domain.FetchWindow, interval time.Duration) {
	started := time.Now()
	s.mu.Lock()
	s.lastFetch = started
	s.nextFetch = started.Add(interval)
	s.mu.Unlock()

	if err := s.fetch(ctx, window); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("scheduled fetch failed", zap.Error(err))
	}
}
