// Package service 封装 OutPrio 的业务操作：拉取分类、驳回、配置与账号。
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"outprio/backend/internal/cache"
	"outprio/backend/internal/classifier"
	"outprio/backend/internal/domain"
	"outprio/backend/internal/mailsource"
	"outprio/backend/internal/pool"
	"outprio/backend/internal/storage"
	"outprio/backend/internal/storage/filesystem"
	"outprio/backend/internal/triage"
)

var (
	ErrRangeIncomplete = errors.New("must provide both start and end or neither")
	ErrRangeInverted   = errors.New("end must be after start")
	ErrRangeTooLong    = errors.New("range cannot exceed 31 days")
	ErrEmailNotFound   = errors.New("email not found")
)

// 自定义区间查询的结果缓存时长。同一区间反复翻页不用每次都打上游。
const rangeCacheTTL = time.Minute

// classifyWorkers 限制一轮拉取里并发分类的协程数。
const classifyWorkers = 4

// Notifier 把事件推给已连接的前端（WebSocket 集线器实现）。
type Notifier interface {
	Publish(event string, data interface{})
}

// MetricsRecorder 上报拉取周期与分类结果的指标，可选注入。
type MetricsRecorder interface {
	RecordFetchCycle(duration time.Duration, fetched, kept int, err error)
	RecordClassified(tier string)
}

// EmailService 驱动核心闭环：拉取 → 分类 → 跟踪 → 快照。
//
// 快照是最近一轮调度拉取的分类结果，读操作都打快照；
// 驳回按乐观/确认两种语义分别处理单封与整个会话。
type EmailService struct {
	source   mailsource.Source
	store    storage.Store
	archive  *filesystem.Store
	opener   *mailsource.Opener
	notifier Notifier
	tasks    *pool.WorkerPool
	ranges   *cache.RecordCache
	log      *zap.Logger

	mu       sync.RWMutex
	cls      *classifier.Classifier
	settings *domain.UserSettings
	snapshot []domain.EmailRecord
	metrics  MetricsRecorder
}

// SetMetrics 注入指标上报器。需在开始调度前调用。
func (s *EmailService) SetMetrics(m MetricsRecorder) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// NewEmailService 创建邮件服务并启动后台任务池。
// settings 为 nil 时使用默认设置。
func NewEmailService(
	source mailsource.Source,
	store storage.Store,
	archive *filesystem.Store,
	opener *mailsource.Opener,
	notifier Notifier,
	settings *domain.UserSettings,
	log *zap.Logger,
) *EmailService {
	if settings == nil {
		def := domain.DefaultUserSettings("")
		settings = &def
	}
	s := &EmailService{
		source:   source,
		store:    store,
		archive:  archive,
		opener:   opener,
		notifier: notifier,
		tasks:    pool.NewWorkerPool(4, 64),
		ranges:   cache.NewRecordCache(16, rangeCacheTTL),
		log:      log,
		cls:      classifier.New(settings),
		settings: settings,
	}
	s.tasks.Start(context.Background())
	return s
}

// ReloadSettings 用新的用户设置重建分类器。
// 下一轮拉取即生效，已有快照不回溯重算。
func (s *EmailService) ReloadSettings(settings *domain.UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.cls = classifier.New(settings)
	s.ranges.Clear()
	s.log.Info("classifier re-armed",
		zap.String("vip_group", settings.VIPGroupName))
}

// FetchAndTrack 执行一轮完整拉取：
// 上游取未读 → 并发分类 → 低于阈值丢弃 → 登记跟踪 → 过滤已驳回 →
// 换上新快照并归档原始邮件，最后广播 fetched 事件。
func (s *EmailService) FetchAndTrack(ctx context.Context, window domain.FetchWindow) error {
	start := time.Now()
	emails, err := s.source.Fetch(ctx, window)
	if err != nil {
		s.recordCycle(start, 0, 0, err)
		return fmt.Errorf("fetch failed: %w", err)
	}

	records := s.classify(ctx, emails)

	dismissed, err := s.store.ListDismissedIDs()
	if err != nil {
		s.recordCycle(start, len(emails), 0, err)
		return fmt.Errorf("failed to load dismissed ids: %w", err)
	}

	kept := make([]domain.EmailRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		if err := s.store.TrackEmail(&domain.TrackedEmail{
			MessageID:      rec.MessageID,
			ConversationID: rec.ConversationID,
			FirstSeenAt:    time.Now(),
		}); err != nil {
			s.log.Warn("failed to track email",
				zap.String("message_id", rec.MessageID),
				zap.Error(err))
		}
		if _, ok := dismissed[rec.MessageID]; ok {
			continue
		}
		kept = append(kept, rec)
	}

	s.archiveRaw(emails, kept)

	s.mu.Lock()
	s.snapshot = kept
	s.mu.Unlock()

	s.recordCycle(start, len(emails), len(kept), nil)
	s.log.Info("fetch cycle complete",
		zap.Int("fetched", len(emails)),
		zap.Int("kept", len(kept)))
	if s.notifier != nil {
		s.notifier.Publish("fetched", map[string]interface{}{
			"timestamp": domain.FormatLocalTime(time.Now()),
			"count":     len(kept),
		})
	}
	return nil
}

// classify 并发给一批邮件打分，保持输入顺序，丢弃不相关和低分邮件。
func (s *EmailService) classify(ctx context.Context, emails []mailsource.FetchedEmail) []domain.EmailRecord {
	s.mu.RLock()
	cls := s.cls
	settings := s.settings
	s.mu.RUnlock()

	results := make([]*domain.EmailRecord, len(emails))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(classifyWorkers)
	for i := range emails {
		i := i
		g.Go(func() error {
			if rec, ok := rateEmail(cls, settings, emails[i]); ok {
				results[i] = &rec
			}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()

	out := make([]domain.EmailRecord, 0, len(emails))
	for _, rec := range results {
		if rec != nil {
			if metrics != nil {
				metrics.RecordClassified(strconv.Itoa(int(rec.Importance)))
			}
			out = append(out, *rec)
		}
	}
	return out
}

// recordCycle 上报一轮拉取的耗时与数量。
func (s *EmailService) recordCycle(start time.Time, fetched, kept int, err error) {
	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()
	if metrics != nil {
		metrics.RecordFetchCycle(time.Since(start), fetched, kept, err)
	}
}

// rateEmail 把一封拉取的邮件变成分类记录。
// 不是发给本人的、或低于阈值的返回 false。
func rateEmail(cls *classifier.Classifier, settings *domain.UserSettings, e mailsource.FetchedEmail) (domain.EmailRecord, bool) {
	if !addressedToUser(settings, e) {
		return domain.EmailRecord{}, false
	}

	lastBody := classifier.ExtractLastMessage(e.Body)
	tier, reason := cls.Rate(classifier.Message{
		Sender:     e.Sender,
		SenderSMTP: e.SenderSMTP,
		To:         e.To,
		Recipients: e.Recipients,
		Body:       lastBody,
	})
	if tier < domain.TierMedium {
		return domain.EmailRecord{}, false
	}

	return domain.EmailRecord{
		MessageID:      e.MessageID,
		ConversationID: e.ConversationID,
		Sender:         classifier.NormalizeSender(e.Sender, e.SenderSMTP),
		SenderSMTP:     e.SenderSMTP,
		Subject:        e.Subject,
		Preview:        makePreview(lastBody),
		Received:       e.Received,
		Importance:     tier,
		Reason:         reason,
	}, true
}

// addressedToUser 判断邮件是否真的发给了本人：
// 本人地址（含别名）出现在收件人里，或显示名里带有本人全名。
func addressedToUser(settings *domain.UserSettings, e mailsource.FetchedEmail) bool {
	own := strings.ToLower(settings.OutlookEmail)
	for _, r := range e.Recipients {
		if r == own {
			return true
		}
		for _, alias := range settings.AliasList() {
			if r == strings.ToLower(alias) {
				return true
			}
		}
	}
	fullName := strings.ToLower(settings.FullName)
	if fullName != "" &&
		strings.Contains(strings.Join(e.RecipientNames, " "), fullName) {
		return true
	}
	return false
}

const previewLength = 200

// makePreview 取正文开头并压平换行。截断落在 rune 边界上，
// 不会把多字节字符劈成两半。
func makePreview(body string) string {
	if len(body) > previewLength {
		cut := previewLength
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	body = strings.ReplaceAll(body, "\r", " ")
	return strings.ReplaceAll(body, "\n", " ")
}

// archiveRaw 在后台把保留下来的邮件原文写进 .eml 归档。
func (s *EmailService) archiveRaw(emails []mailsource.FetchedEmail, kept []domain.EmailRecord) {
	if s.archive == nil {
		return
	}
	keep := make(map[string]struct{}, len(kept))
	for _, rec := range kept {
		keep[rec.MessageID] = struct{}{}
	}
	for _, e := range emails {
		if _, ok := keep[e.MessageID]; !ok || len(e.Raw) == 0 {
			continue
		}
		email := e
		s.tasks.Submit(func() {
			received, err := domain.ParseLocalTime(email.Received)
			if err != nil {
				received = time.Now()
			}
			if _, err := s.archive.SaveEmail(email.MessageID, received, email.Raw); err != nil {
				s.log.Warn("failed to archive email",
					zap.String("message_id", email.MessageID),
					zap.Error(err))
			}
		})
	}
}

// List 对当前快照执行筛选、排序、分组、分页。
func (s *EmailService) List(q triage.Query) triage.View {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()
	return triage.Apply(snapshot, q)
}

// Snapshot 返回当前快照的副本（平铺，不分页）。
func (s *EmailService) Snapshot() []domain.EmailRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EmailRecord, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// ListRange 按显式起止区间临时拉取一批邮件。
// 不进快照、不登记跟踪，只过滤已驳回；结果短暂缓存。
func (s *EmailService) ListRange(ctx context.Context, start, end time.Time) ([]domain.EmailRecord, error) {
	if start.IsZero() || end.IsZero() {
		return nil, ErrRangeIncomplete
	}
	if !end.After(start) {
		return nil, ErrRangeInverted
	}
	if end.Sub(start) > domain.MaxCustomRangeDays*24*time.Hour {
		return nil, ErrRangeTooLong
	}

	key := fmt.Sprintf("range:%d:%d", start.Unix(), end.Unix())
	if cached, ok := s.ranges.Get(key); ok {
		return cached, nil
	}

	emails, err := s.source.Fetch(ctx, domain.CustomWindow(start, end))
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	records := s.classify(ctx, emails)

	dismissed, err := s.store.ListDismissedIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load dismissed ids: %w", err)
	}
	kept := make([]domain.EmailRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := dismissed[rec.MessageID]; ok {
			continue
		}
		kept = append(kept, rec)
	}

	s.ranges.Put(key, kept)
	return kept, nil
}

// Dismiss 驳回单封邮件（乐观路径）。
//
// 本地快照无条件先移除；持久化失败原样上抛，但移除不回滚——
// 下一轮拉取会把没驳回成功的邮件带回来。标记已读在后台尽力而为。
func (s *EmailService) Dismiss(ctx context.Context, messageID string) error {
	s.mu.Lock()
	s.snapshot = removeByID(s.snapshot, messageID)
	s.mu.Unlock()

	if err := s.store.DismissEmail(messageID, time.Now()); err != nil {
		return fmt.Errorf("failed to dismiss email: %w", err)
	}

	s.markReadAsync(messageID)
	if s.notifier != nil {
		s.notifier.Publish("dismissed", map[string]interface{}{
			"message_id": messageID,
		})
	}
	return nil
}

// DismissConversation 驳回整个会话（确认路径）。
// 先持久化；失败时快照原样不动。返回驳回的封数。
func (s *EmailService) DismissConversation(ctx context.Context, conversationID string) (int, error) {
	count, err := s.store.DismissConversation(conversationID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to dismiss conversation: %w", err)
	}

	// 快照换成新切片，旧底层数组可能还被正在服务的读取持有。
	s.mu.Lock()
	var removed []string
	next := make([]domain.EmailRecord, 0, len(s.snapshot))
	for _, rec := range s.snapshot {
		if rec.ConversationID == conversationID {
			removed = append(removed, rec.MessageID)
			continue
		}
		next = append(next, rec)
	}
	s.snapshot = next
	s.mu.Unlock()

	for _, id := range removed {
		s.markReadAsync(id)
	}
	if s.notifier != nil {
		s.notifier.Publish("dismissed", map[string]interface{}{
			"conversation_id": conversationID,
			"count":           count,
		})
	}
	return count, nil
}

// Open 用系统邮件客户端打开归档的邮件原文。
// 这是唯一把失败直接亮给用户的动作：打不开就是打不开。
func (s *EmailService) Open(ctx context.Context, messageID string) error {
	if s.archive == nil || s.opener == nil {
		return ErrEmailNotFound
	}
	path, err := s.archive.EmailPath(messageID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEmailNotFound, messageID)
	}
	if err := s.opener.Open(ctx, path); err != nil {
		return fmt.Errorf("failed to open email: %w", err)
	}
	return nil
}

// Health 检查与上游邮箱的连通性。
func (s *EmailService) Health(ctx context.Context) error {
	return s.source.Health(ctx)
}

// Close 停掉后台任务池并关闭邮件来源。
func (s *EmailService) Close() error {
	s.tasks.Stop()
	return s.source.Close()
}

// markReadAsync 在后台把邮件标记为已读，失败只记日志。
func (s *EmailService) markReadAsync(messageID string) {
	s.tasks.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.source.MarkRead(ctx, messageID); err != nil {
			s.log.Warn("mark-as-read failed",
				zap.String("message_id", messageID),
				zap.Error(err))
		}
	})
}

// removeByID 返回剔除指定邮件后的新切片，不触碰入参的底层数组。
func removeByID(records []domain.EmailRecord, messageID string) []domain.EmailRecord {
	out := make([]domain.EmailRecord, 0, len(records))
	for _, rec := range records {
		if rec.MessageID != messageID {
			out = append(out, rec)
		}
	}
	return out
}
