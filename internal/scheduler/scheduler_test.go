package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outprio/backend/internal/domain"
)

// countingFetch 统计拉取次数并通知每次调用。
type countingFetch struct {
	count  atomic.Int64
	calls  chan domain.FetchWindow
	result error
}

func newCountingFetch() *countingFetch {
	return &countingFetch{calls: make(chan domain.FetchWindow, 16)}
}

func (c *countingFetch) fn(ctx context.Context, window domain.FetchWindow) error {
	c.count.Add(1)
	select {
	case c.calls <- window:
	default:
	}
	return c.result
}

func waitForFetch(t *testing.T, c *countingFetch) domain.FetchWindow {
	t.Helper()
	select {
	case w := <-c.calls:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not triggered in time")
		return domain.FetchWindow{}
	}
}

func TestSchedulerStart(t *testing.T) {
	t.Run("默认配置立即拉取一次", func(t *testing.T) {
		fetch := newCountingFetch()
		s := New(fetch.fn, zap.NewNop(), nil)
		defer s.Stop()

		s.Start(domain.DefaultFetchConfig())
		waitForFetch(t, fetch)

		status := s.Status()
		assert.False(t, status.AwaitingConfirmation)
		assert.False(t, status.LastFetch.IsZero())
		assert.True(t, status.NextFetch.After(status.LastFetch))
	})

	t.Run("大窗口配置挂起等确认", func(t *testing.T) {
		fetch := newCountingFetch()
		s := New(fetch.fn, zap.NewNop(), nil)
		defer s.Stop()

		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(24)
		s.Start(cfg)

		assert.True(t, s.Status().AwaitingConfirmation)
		assert.EqualValues(t, 0, fetch.count.Load())
	})

	t.Run("确认后启动节拍", func(t *testing.T) {
		fetch := newCountingFetch()
		s := New(fetch.fn, zap.NewNop(), nil)
		defer s.Stop()

		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(24)
		s.Start(cfg)
		s.Confirm()

		w := waitForFetch(t, fetch)
		assert.Equal(t, 24, w.LookbackHours)
		assert.False(t, s.Status().AwaitingConfirmation)
	})

	t.Run("无挂起时确认是无操作", func(t *testing.T) {
		fetch := newCountingFetch()
		s := New(fetch.fn, zap.NewNop(), nil)
		defer s.Stop()

		s.Confirm()
		assert.EqualValues(t, 0, fetch.count.Load())
	})
}

func TestSchedulerAutoReset(t *testing.T) {
	t.Run("超时回落到默认窗口并持久化", func(t *testing.T) {
		fetch := newCountingFetch()
		persisted := make(chan domain.FetchConfig, 1)
		s := New(fetch.fn, zap.NewNop(), func(cfg domain.FetchConfig) {
			persisted <- cfg
		})
		s.timeout = 50 * time.Millisecond
		defer s.Stop()

		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.CustomWindow(
			time.Now().Add(-48*time.Hour), time.Now())
		s.Start(cfg)

		select {
		case got := <-persisted:
			assert.Equal(t, domain.WindowPreset, got.Window.Mode)
			assert.Equal(t, domain.DefaultLookbackHours, got.Window.LookbackHours)
		case <-time.After(2 * time.Second):
			t.Fatal("auto reset did not fire")
		}

		w := waitForFetch(t, fetch)
		assert.Equal(t, domain.DefaultLookbackHours, w.LookbackHours)
	})

	t.Run("确认后定时器不再触发", func(t *testing.T) {
		fetch := newCountingFetch()
		var resets atomic.Int64
		s := New(fetch.fn, zap.NewNop(), func(domain.FetchConfig) {
			resets.Add(1)
		})
		s.timeout = 50 * time.Millisecond
		defer s.Stop()

		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(12)
		s.Start(cfg)
		s.Confirm()

		time.Sleep(150 * time.Millisecond)
		assert.EqualValues(t, 0, resets.Load())
	})
}

func TestSchedulerRestart(t *testing.T) {
	t.Run("重启停掉旧节拍并立即拉取", func(t *testing.T) {
		fetch := newCountingFetch()
		s := New(fetch.fn, zap.NewNop(), nil)
		defer s.Stop()

		s.Start(domain.DefaultFetchConfig())
		waitForFetch(t, fetch)

		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(2)
		s.Restart(cfg)

		w := waitForFetch(t, fetch)
		assert.Equal(t, 2, w.LookbackHours)
	})

	t.Run("挂起期间保存新配置取代待确认配置", func(t *testing.T) {
		fetch := newCountingFetch()
		var resets atomic.Int64
		s := New(fetch.fn, zap.NewNop(), func(domain.FetchConfig) {
			resets.Add(1)
		})
		s.timeout = 100 * time.Millisecond
		defer s.Stop()

		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(24)
		s.Start(cfg)
		require.True(t, s.Status().AwaitingConfirmation)

		saved := domain.DefaultFetchConfig()
		saved.Window = domain.PresetWindow(2)
		s.Restart(saved)

		w := waitForFetch(t, fetch)
		assert.Equal(t, 2, w.LookbackHours)
		assert.False(t, s.Status().AwaitingConfirmation)

		// 确认定时器已撤销，超时后不会回落到默认配置
		time.Sleep(200 * time.Millisecond)
		assert.EqualValues(t, 0, resets.Load())
	})

	t.Run("拉取失败不阻断节拍", func(t *testing.T) {
		fetch := newCountingFetch()
		fetch.result = errors.New("upstream down")
		s := New(fetch.fn, zap.NewNop(), nil)
		defer s.Stop()

		s.Start(domain.DefaultFetchConfig())
		waitForFetch(t, fetch)

		s.Restart(domain.DefaultFetchConfig())
		waitForFetch(t, fetch)

		status := s.Status()
		assert.False(t, status.LastFetch.IsZero())
	})
}

func TestSchedulerReset(t *testing.T) {
	t.Run("放弃挂起配置回落默认", func(t *testing.T) {
		fetch := newCountingFetch()
		s := New(fetch.fn, zap.NewNop(), nil)
		defer s.Stop()

		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(24)
		s.Start(cfg)
		require.True(t, s.Status().AwaitingConfirmation)

		got := s.Reset()
		assert.Equal(t, domain.DefaultLookbackHours, got.Window.LookbackHours)
		assert.False(t, s.Status().AwaitingConfirmation)
		waitForFetch(t, fetch)
	})
}

func TestSchedulerStop(t *testing.T) {
	t.Run("停止后不再拉取", func(t *testing.T) {
		fetch := newCountingFetch()
		s := New(fetch.fn, zap.NewNop(), nil)

		s.Start(domain.DefaultFetchConfig())
		waitForFetch(t, fetch)
		s.Stop()

		before := fetch.count.Load()
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, before, fetch.count.Load())

		// 重复停止不恐慌
		s.Stop()
	})
}
