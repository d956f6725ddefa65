// Package mailsource 抽象上游邮箱：按时间窗拉取未读邮件并提供健康检查。
package mailsource

import (
	"context"
	"errors"

	"outprio/backend/internal/domain"
)

// ErrNotFound 表示按 Message-ID 找不到对应的邮件。
var ErrNotFound = errors.New("mailsource: message not found")

// FetchedEmail 是一封刚拉取、尚未分类的邮件。
//
// 地址字段统一为小写 SMTP 地址；Body 是纯文本正文（完整回复链，
// 截取最后一段由分类器负责）。Raw 是原始 RFC 5322 字节，用于落盘归档。
type FetchedEmail struct {
	MessageID      string
	ConversationID string
	Sender         string // 显示名
	SenderSMTP     string
	To             []string // To 行收件人（小写 SMTP）
	Recipients     []string // To + CC 全部收件人（小写 SMTP）
	RecipientNames []string // 收件人显示名（小写）
	Subject        string
	Body           string
	Received       string // 本地时间 ISO-8601，无时区后缀
	Raw            []byte
}

// Source 是邮件来源接口。实现负责连接管理与消息解析，
// 调用方只关心"给我这个时间窗里的未读邮件"。
type Source interface {
	// Fetch 拉取窗口内的全部未读邮件。窗口由 now 解析出绝对边界。
	Fetch(ctx context.Context, window domain.FetchWindow) ([]FetchedEmail, error)

	// MarkRead 把一封邮件标记为已读（驳回后的后台动作，失败可忽略）。
	MarkRead(ctx context.Context, messageID string) error

	// Health 检查与上游邮箱的连通性。
	Health(ctx context.Context) error

	// Close 释放底层连接。
	Close() error
}
