package mailsource

import (
	"context"
	"sync"
	"time"

	"outprio/backend/internal/domain"
)

// FakeSource 是内存邮件来源，用于本地开发和测试。
type FakeSource struct {
	mu       sync.Mutex
	emails   []FetchedEmail
	read     map[string]bool
	fetchErr error
	health   error
}

// NewFakeSource 创建空的内存来源。
func NewFakeSource() *FakeSource {
	return &FakeSource{read: make(map[string]bool)}
}

// Add 追加邮件到来源。
func (f *FakeSource) Add(emails ...FetchedEmail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, emails...)
}

// SetFetchError 让后续 Fetch 返回指定错误。
func (f *FakeSource) SetFetchError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

// SetHealthError 让后续 Health 返回指定错误。
func (f *FakeSource) SetHealthError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health = err
}

// WasMarkedRead 报告邮件是否已被标记已读。
func (f *FakeSource) WasMarkedRead(messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read[messageID]
}

// Fetch 返回窗口内且未标记已读的邮件。
func (f *FakeSource) Fetch(ctx context.Context, window domain.FetchWindow) ([]FetchedEmail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	start, end := window.Bounds(time.Now())
	out := make([]FetchedEmail, 0, len(f.emails))
	for _, e := range f.emails {
		if f.read[e.MessageID] {
			continue
		}
		t, err := domain.ParseLocalTime(e.Received)
		if err != nil {
			continue
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkRead 标记邮件已读；邮件不存在返回 ErrNotFound。
func (f *FakeSource) MarkRead(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emails {
		if e.MessageID == messageID {
			f.read[messageID] = true
			return nil
		}
	}
	return ErrNotFound
}

// Health 返回注入的健康状态。
func (f *FakeSource) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

// Close 实现 Source。
func (f *FakeSource) Close() error { return nil }
