package domain

import (
	"errors"
	"time"
)

// 抓取配置相关的错误定义
var (
	ErrIntervalNotAllowed = errors.New("fetch interval not in preset list")
	ErrLookbackOutOfRange = errors.New("lookback hours out of range")
	ErrRangeIncomplete    = errors.New("must provide both start and end for custom range")
	ErrRangeInverted      = errors.New("end must be after start")
	ErrRangeTooLong       = errors.New("range cannot exceed 31 days")
)

// 抓取配置的固定约束
const (
	DefaultFetchIntervalMinutes = 5
	DefaultLookbackHours        = 3
	MaxLookbackHours            = 720
	MaxCustomRangeDays          = 31

	// ConfirmLookbackHours 超过该回看窗口时，调度器启动前需要用户确认
	ConfirmLookbackHours = 3
)

// FetchIntervalPresets 抓取间隔的可选项（分钟）
var FetchIntervalPresets = []int{1, 5, 15, 30, 60, 180, 360, 720, 1440}

// LookbackPresets 回看窗口的可选项（小时）
var LookbackPresets = []int{1, 3, 6, 12, 24, 72, 168, 720}

// WindowMode 回看窗口模式
type WindowMode string

const (
	WindowPreset WindowMode = "preset" // 预设回看小时数
	WindowCustom WindowMode = "custom" // 显式起止时间
)

// FetchWindow 表示回看窗口：预设小时数或显式起止范围，二者互斥。
//
// 线格式仍然是 {lookback_hours, start, end} 两组可空字段，但在进程内
// 建成带标签的联合类型，让"恰好一种模式生效"的不变量无法被破坏。
type FetchWindow struct {
	Mode          WindowMode
	LookbackHours int
	Start         time.Time
	End           time.Time
}

// PresetWindow 构造预设回看窗口。
func PresetWindow(hours int) FetchWindow {
	return FetchWindow{Mode: WindowPreset, LookbackHours: hours}
}

// CustomWindow 构造显式起止窗口。
func CustomWindow(start, end time.Time) FetchWindow {
	return FetchWindow{Mode: WindowCustom, Start: start, End: end}
}

// Bounds 计算窗口在指定时刻的实际起止时间。
func (w FetchWindow) Bounds(now time.Time) (start, end time.Time) {
	if w.Mode == WindowCustom {
		return w.Start, w.End
	}
	return now.Add(-time.Duration(w.LookbackHours) * time.Hour), now
}

// Validate 校验窗口约束。只在保存时调用，不做逐键校验。
func (w FetchWindow) Validate() error {
	switch w.Mode {
	case WindowCustom:
		if w.Start.IsZero() || w.End.IsZero() {
			return ErrRangeIncomplete
		}
		if !w.End.After(w.Start) {
			return ErrRangeInverted
		}
		// 恰好 31 天合法，超过才拒绝
		if w.End.Sub(w.Start) > MaxCustomRangeDays*24*time.Hour {
			return ErrRangeTooLong
		}
	default:
		if w.LookbackHours < 1 || w.LookbackHours > MaxLookbackHours {
			return ErrLookbackOutOfRange
		}
	}
	return nil
}

// NeedsConfirmation 判断该窗口是否需要启动前确认：
// 自定义范围，或回看超过默认 3 小时。
func (w FetchWindow) NeedsConfirmation() bool {
	if w.Mode == WindowCustom {
		return true
	}
	return w.LookbackHours > ConfirmLookbackHours
}

// FetchConfig 抓取配置：间隔 + 回看窗口。保存时整体替换。
type FetchConfig struct {
	IntervalMinutes int
	Window          FetchWindow
}

// DefaultFetchConfig 返回默认配置（5 分钟间隔，回看 3 小时）。
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		IntervalMinutes: DefaultFetchIntervalMinutes,
		Window:          PresetWindow(DefaultLookbackHours),
	}
}

// Interval 返回抓取间隔时长。
func (c FetchConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Validate 校验整体配置。
func (c FetchConfig) Validate() error {
	allowed := false
	for _, preset := range FetchIntervalPresets {
		if c.IntervalMinutes == preset {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrIntervalNotAllowed
	}
	return c.Window.Validate()
}
