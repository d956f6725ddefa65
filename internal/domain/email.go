package domain

import (
	"strings"
	"time"
)

// ImportanceTier 重要度等级（由分类器产出，2-5，数值越大越紧急）
type ImportanceTier int

const (
	TierCritical ImportanceTier = 5 // VIP + 唯一收件人 / VIP + 提及
	TierMajor    ImportanceTier = 4 // VIP 发件人 / 仅提及
	TierHigh     ImportanceTier = 3 // 唯一收件人
	TierMedium   ImportanceTier = 2 // 小收件组 / VIP 在收件人中
	TierNone     ImportanceTier = 0 // 低于阈值，不进入列表
)

// 重要度分组的固定展示顺序（从高到低，空组省略由展示层处理）
var TierOrder = []ImportanceTier{TierCritical, TierMajor, TierHigh, TierMedium}

// EmailRecord 表示一封已分类的待办邮件。
//
// 字段名与桌面端消费的线格式保持一致：received 是不带时区后缀的
// 本地时间 ISO-8601 字符串，必须用 ParseLocalTime 解析。
type EmailRecord struct {
	MessageID      string         `json:"message_id"`
	ConversationID string         `json:"conversation_id"`
	Sender         string         `json:"sender"`
	SenderSMTP     string         `json:"-"` // 仅分类器内部使用，不下发
	Subject        string         `json:"subject"`
	Preview        string         `json:"preview"`
	Received       string         `json:"received"`
	Importance     ImportanceTier `json:"importance"`
	Reason         string         `json:"reason"`
}

// ReceivedAt 返回按本地墙上时钟解析的接收时间。
func (e *EmailRecord) ReceivedAt() time.Time {
	t, err := ParseLocalTime(e.Received)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Reasons 拆分 "+" 连接的标签列表。
func (e *EmailRecord) Reasons() []string {
	parts := strings.Split(e.Reason, "+")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// TrackedEmail 记录一封邮件的本地跟踪状态（主要是驳回标记）。
//
// 对应原始后端的 tracked_emails 表：只隐藏，不删除服务端记录。
type TrackedEmail struct {
	MessageID      string     `json:"messageId" gorm:"primaryKey;type:varchar(255)"`
	ConversationID string     `json:"conversationId" gorm:"type:varchar(255);index"`
	FirstSeenAt    time.Time  `json:"firstSeenAt"`
	DismissedAt    *time.Time `json:"dismissedAt,omitempty" gorm:"index"`
}

// IsDismissed 判断邮件是否已被驳回。
func (t *TrackedEmail) IsDismissed() bool {
	return t.DismissedAt != nil
}
