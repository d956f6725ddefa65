package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidLocalTime 本地时间字符串格式无效
var ErrInvalidLocalTime = errors.New("invalid naive local time string")

// 后端下发的 received 字段支持的两种裸格式（无时区后缀）
const (
	localTimeLayout       = "2006-01-02T15:04:05"
	localTimeMinuteLayout = "2006-01-02T15:04"
)

// ParseLocalTime 把不带时区后缀的 ISO-8601 字符串解析为本地墙上时钟时间。
//
// 分类器产出的时间戳就是本地时间的字面值，渲染给用户时必须逐字一致，
// 与客户端机器的时区偏移无关。因此这里用 time.ParseInLocation 直接按
// 本地时区逐分量构造，绝不能走假定 UTC 的解析路径（time.Parse 对无
// 时区字符串默认 UTC，会整体偏移一个时区差）。
func ParseLocalTime(value string) (time.Time, error) {
	// 截掉可能出现的小数秒（Outlook 导出偶尔携带）
	if idx := strings.IndexByte(value, '.'); idx > 0 {
		value = value[:idx]
	}

	if t, err := time.ParseInLocation(localTimeLayout, value, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localTimeMinuteLayout, value, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidLocalTime, value)
}

// FormatLocalTime 把时间格式化为裸的本地 ISO-8601 字符串（线格式）。
func FormatLocalTime(t time.Time) string {
	return t.Format(localTimeLayout)
}

// SameLocalDay 判断两个时间是否落在同一个本地日历日。
func SameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
