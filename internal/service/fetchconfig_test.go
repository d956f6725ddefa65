package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/scheduler"
	"outprio/backend/internal/storage/memory"
)

func newConfigService(t *testing.T) (*FetchConfigService, *memory.Store, chan domain.FetchWindow) {
	t.Helper()
	store := memory.NewStore()
	fetches := make(chan domain.FetchWindow, 16)
	sched := scheduler.New(func(ctx context.Context, w domain.FetchWindow) error {
		select {
		case fetches <- w:
		default:
		}
		return nil
	}, zap.NewNop(), nil)
	t.Cleanup(sched.Stop)
	return NewFetchConfigService(store, sched, zap.NewNop()), store, fetches
}

func TestFetchConfigService(t *testing.T) {
	t.Run("没保存过时返回默认配置", func(t *testing.T) {
		svc, _, _ := newConfigService(t)
		cfg, err := svc.Get()
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultFetchIntervalMinutes, cfg.IntervalMinutes)
		assert.Equal(t, domain.DefaultLookbackHours, cfg.Window.LookbackHours)
	})

	t.Run("保存后立即重启节拍", func(t *testing.T) {
		svc, store, fetches := newConfigService(t)
		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(2)
		require.NoError(t, svc.Save(cfg))

		saved, err := store.GetFetchConfig()
		require.NoError(t, err)
		assert.Equal(t, 2, saved.Window.LookbackHours)

		select {
		case w := <-fetches:
			assert.Equal(t, 2, w.LookbackHours)
		case <-time.After(2 * time.Second):
			t.Fatal("save did not trigger a fetch")
		}
	})

	t.Run("非法配置不落库", func(t *testing.T) {
		svc, store, _ := newConfigService(t)
		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(0)
		err := svc.Save(cfg)
		assert.ErrorIs(t, err, domain.ErrLookbackOutOfRange)

		// 落库的仍是默认值
		saved, err := store.GetFetchConfig()
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultLookbackHours, saved.Window.LookbackHours)
	})

	t.Run("重置回落默认并持久化", func(t *testing.T) {
		svc, store, _ := newConfigService(t)
		cfg := domain.DefaultFetchConfig()
		cfg.Window = domain.PresetWindow(2)
		require.NoError(t, svc.Save(cfg))

		got, err := svc.Reset()
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultLookbackHours, got.Window.LookbackHours)

		saved, err := store.GetFetchConfig()
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultLookbackHours, saved.Window.LookbackHours)
	})
}
