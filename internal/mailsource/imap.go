package mailsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"outprio/backend/internal/config"
	"outprio/backend/internal/domain"
)

const dialTimeout = 5 * time.Second

// IMAPSource 通过 IMAP 拉取上游邮箱的未读邮件。
//
// 每次操作建立一条短连接（登录、选择文件夹、操作、登出）：
// 拉取周期以分钟计，维护长连接和 IDLE 不划算，断线重连也更简单。
type IMAPSource struct {
	cfg config.IMAPConfig
	log *zap.Logger
}

// NewIMAPSource 创建 IMAP 邮件来源。不在此处拨号，连接按需建立。
func NewIMAPSource(cfg config.IMAPConfig, log *zap.Logger) *IMAPSource {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &IMAPSource{cfg: cfg, log: log}
}

// connect 拨号并登录，返回已选中目标文件夹的客户端。
func (s *IMAPSource) connect(readOnly bool) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		c   *client.Client
		err error
	)
	if s.cfg.UseTLS {
		c, err = client.DialWithDialerTLS(dialer, s.cfg.Address, nil)
	} else {
		c, err = client.DialWithDialer(dialer, s.cfg.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial imap server: %w", err)
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if _, err := c.Select(s.cfg.Folder, readOnly); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to select folder %s: %w", s.cfg.Folder, err)
	}

	return c, nil
}

// Fetch 拉取窗口内的全部未读邮件（信封 + 完整正文）。
//
// IMAP 的 SINCE/BEFORE 只有日期粒度，搜索结果会比窗口宽，
// 精确的时间边界在信封日期上二次过滤。
func (s *IMAPSource) Fetch(ctx context.Context, window domain.FetchWindow) ([]FetchedEmail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	start, end := window.Bounds(now)

	c, err := s.connect(true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = start
	// BEFORE 是开区间且按天截断，多取一天再在信封日期上过滤
	criteria.Before = end.AddDate(0, 0, 1)

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search failed: %w", err)
	}
	if len(uids) == 0 {
		s.log.Debug("no unread messages in window",
			zap.Time("start", start),
			zap.Time("end", end))
		return []FetchedEmail{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	out := make([]FetchedEmail, 0, len(uids))
	for msg := range messages {
		fetched, ok := s.parseMessage(msg, section, start, end)
		if ok {
			out = append(out, fetched)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch failed: %w", err)
	}

	s.log.Info("fetched unread messages",
		zap.Int("matched", len(uids)),
		zap.Int("parsed", len(out)),
		zap.String("folder", s.cfg.Folder))
	return out, nil
}

// parseMessage 把一条 IMAP 消息转成 FetchedEmail。
// 没有 Message-ID 或落在窗口之外的消息丢弃。
func (s *IMAPSource) parseMessage(msg *imap.Message, section *imap.BodySectionName, start, end time.Time) (FetchedEmail, bool) {
	if msg == nil || msg.Envelope == nil || msg.Envelope.MessageId == "" {
		s.log.Warn("skipping message without envelope or Message-ID",
			zap.Uint32("uid", msgUID(msg)))
		return FetchedEmail{}, false
	}
	env := msg.Envelope

	received := env.Date
	if received.IsZero() || received.Before(start) || received.After(end) {
		return FetchedEmail{}, false
	}

	fetched := FetchedEmail{
		MessageID: trimMessageID(env.MessageId),
		Subject:   env.Subject,
		Received:  domain.FormatLocalTime(received.Local()),
	}

	if len(env.From) > 0 {
		fetched.Sender = strings.TrimSpace(env.From[0].PersonalName)
		fetched.SenderSMTP = strings.ToLower(env.From[0].Address())
		if fetched.Sender == "" {
			fetched.Sender = fetched.SenderSMTP
		}
	}

	for _, addr := range env.To {
		smtp := strings.ToLower(addr.Address())
		fetched.To = append(fetched.To, smtp)
		fetched.Recipients = append(fetched.Recipients, smtp)
		fetched.RecipientNames = append(fetched.RecipientNames, strings.ToLower(addr.PersonalName))
	}
	for _, addr := range env.Cc {
		fetched.Recipients = append(fetched.Recipients, strings.ToLower(addr.Address()))
		fetched.RecipientNames = append(fetched.RecipientNames, strings.ToLower(addr.PersonalName))
	}

	// 会话标识取回复链的根 Message-ID，没有回复链就是自己
	fetched.ConversationID = fetched.MessageID
	if id := trimMessageID(env.InReplyTo); id != "" {
		fetched.ConversationID = id
	}

	body := msg.GetBody(section)
	if body == nil {
		s.log.Warn("message has no body section", zap.String("message_id", fetched.MessageID))
		return fetched, true
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		s.log.Warn("failed to read message body",
			zap.String("message_id", fetched.MessageID),
			zap.Error(err))
		return fetched, true
	}
	fetched.Raw = raw

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		s.log.Warn("failed to parse mime envelope",
			zap.String("message_id", fetched.MessageID),
			zap.Error(err))
		return fetched, true
	}
	fetched.Body = envelope.Text

	// References 头比 In-Reply-To 更可靠：第一个引用就是会话根
	if refs := strings.Fields(envelope.GetHeader("References")); len(refs) > 0 {
		fetched.ConversationID = trimMessageID(refs[0])
	}

	return fetched, true
}

// MarkRead 按 Message-ID 搜索并打上 \Seen 标记。
func (s *IMAPSource) MarkRead(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := s.connect(false)
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", trimMessageID(messageID))

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("imap search by message-id failed: %w", err)
	}
	if len(uids) == 0 {
		return ErrNotFound
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := c.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}
	return nil
}

// Health 验证能连上并登录上游邮箱。
func (s *IMAPSource) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := s.connect(true)
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()
	return c.Noop()
}

// Close 实现 Source。短连接模式下没有需要释放的资源。
func (s *IMAPSource) Close() error { return nil }

// trimMessageID 去掉 Message-ID 两侧的尖括号和空白。
func trimMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return id
}

func msgUID(msg *imap.Message) uint32 {
	if msg == nil {
		return 0
	}
	return msg.Uid
}
