package memory

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage"
)

// Store 使用内存保存追踪与账号数据，单机桌面模式和开发验证用。
type Store struct {
	mu       sync.RWMutex
	tracked  map[string]*domain.TrackedEmail // messageID -> tracked
	byConv   map[string][]string             // conversationID -> messageIDs
	fetchCfg *domain.FetchConfig
	settings map[string]*domain.UserSettings // userID -> settings
	users    map[string]*domain.User         // userID -> user
	byEmail  map[string]string               // email -> userID
	profiles map[string]*domain.Profile      // userID -> profile
	bySub    map[string]string               // subscriptionID -> userID
	otps     map[string]*domain.OTPCode      // otpID -> code

	// 速率限制相关
	rateLimits        map[string]*rateLimitEntry
	rateLimitsCleanup time.Time // 下次清理过期速率限制的时间
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		tracked:           make(map[string]*domain.TrackedEmail),
		byConv:            make(map[string][]string),
		settings:          make(map[string]*domain.UserSettings),
		users:             make(map[string]*domain.User),
		byEmail:           make(map[string]string),
		profiles:          make(map[string]*domain.Profile),
		bySub:             make(map[string]string),
		otps:              make(map[string]*domain.OTPCode),
		rateLimits:        make(map[string]*rateLimitEntry),
		rateLimitsCleanup: time.Now().Add(5 * time.Minute),
	}
}

// ========== Tracked Email Repository ==========

// TrackEmail 记录一封新出现的邮件。已存在的记录保持不变（免打扰状态不丢失）。
func (s *Store) TrackEmail(email *domain.TrackedEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tracked[email.MessageID]; ok {
		return nil
	}

	if email.FirstSeenAt.IsZero() {
		email.FirstSeenAt = time.Now()
	}
	cp := *email
	s.tracked[email.MessageID] = &cp
	if email.ConversationID != "" {
		s.byConv[email.ConversationID] = append(s.byConv[email.ConversationID], email.MessageID)
	}
	return nil
}

// GetTrackedEmail 按 message_id 读取追踪记录。
func (s *Store) GetTrackedEmail(messageID string) (*domain.TrackedEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracked[messageID]
	if !ok {
		return nil, storage.ErrEmailNotFound
	}
	cp := *t
	return &cp, nil
}

// ListDismissedIDs 返回所有已免打扰邮件的 message_id 集合。
func (s *Store) ListDismissedIDs() (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{})
	for id, t := range s.tracked {
		if t.IsDismissed() {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// DismissEmail 标记单封邮件免打扰。记录不存在时先隐式创建，
// 保证免打扰操作对尚未拉取入库的邮件同样生效。
func (s *Store) DismissEmail(messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracked[messageID]
	if !ok {
		t = &domain.TrackedEmail{MessageID: messageID, FirstSeenAt: at}
		s.tracked[messageID] = t
	}
	t.DismissedAt = &at
	return nil
}

// DismissConversation 标记整个会话免打扰，返回受影响的记录数。
func (s *Store) DismissConversation(conversationID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, id := range s.byConv[conversationID] {
		if t, ok := s.tracked[id]; ok && !t.IsDismissed() {
			t.DismissedAt = &at
			count++
		}
	}
	return count, nil
}

// PurgeTrackedBefore 清理首次出现时间早于 cutoff 的记录，返回删除数量。
func (s *Store) PurgeTrackedBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, t := range s.tracked {
		if t.FirstSeenAt.Before(cutoff) {
			s.removeTrackedLocked(id, t)
			count++
		}
	}
	return count, nil
}

func (s *Store) removeTrackedLocked(id string, t *domain.TrackedEmail) {
	delete(s.tracked, id)
	if t.ConversationID == "" {
		return
	}
	ids := s.byConv[t.ConversationID]
	for i, mid := range ids {
		if mid == id {
			s.byConv[t.ConversationID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byConv[t.ConversationID]) == 0 {
		delete(s.byConv, t.ConversationID)
	}
}

// ========== Fetch Config Repository ==========

// GetFetchConfig 读取拉取配置，从未保存过时返回默认值。
func (s *Store) GetFetchConfig() (*domain.FetchConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fetchCfg == nil {
		cfg := domain.DefaultFetchConfig()
		return &cfg, nil
	}
	cp := *s.fetchCfg
	return &cp, nil
}

// SaveFetchConfig 整体覆盖拉取配置。
func (s *Store) SaveFetchConfig(cfg *domain.FetchConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cfg
	s.fetchCfg = &cp
	return nil
}

// ========== Settings Repository ==========

// GetUserSettings 读取用户设置。
func (s *Store) GetUserSettings(userID string) (*domain.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[userID]
	if !ok {
		return nil, storage.ErrSettingsNotFound
	}
	cp := *settings
	return &cp, nil
}

// SaveUserSettings 保存用户设置（upsert 语义）。
func (s *Store) SaveUserSettings(settings *domain.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		if old, ok := s.settings[settings.UserID]; ok {
			settings.CreatedAt = old.CreatedAt
		} else {
			settings.CreatedAt = now
		}
	}
	settings.UpdatedAt = now

	cp := *settings
	s.settings[settings.UserID] = &cp
	return nil
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		return errors.New("user ID is required")
	}

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return storage.ErrUserExists
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	cp := *user
	s.users[user.ID] = &cp
	s.byEmail[email] = user.ID
	return nil
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByEmail 根据邮箱获取用户（不区分大小写）
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}

	newEmail := strings.ToLower(user.Email)
	oldEmail := strings.ToLower(old.Email)
	if newEmail != oldEmail {
		if _, exists := s.byEmail[newEmail]; exists {
			return storage.ErrUserExists
		}
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = user.ID
	}

	user.UpdatedAt = time.Now().UTC()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	return nil
}

// ========== Profile Repository ==========

// SaveProfile 保存账号档案（upsert 语义）
func (s *Store) SaveProfile(profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if old, ok := s.profiles[profile.UserID]; ok {
		profile.CreatedAt = old.CreatedAt
		if old.SubscriptionID != "" && old.SubscriptionID != profile.SubscriptionID {
			delete(s.bySub, old.SubscriptionID)
		}
	} else if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	cp := *profile
	s.profiles[profile.UserID] = &cp
	if profile.SubscriptionID != "" {
		s.bySub[profile.SubscriptionID] = profile.UserID
	}
	return nil
}

// GetProfile 读取账号档案
func (s *Store) GetProfile(userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	cp := *profile
	return &cp, nil
}

// GetProfileBySubscription 按 Stripe 订阅 ID 反查档案
func (s *Store) GetProfileBySubscription(subscriptionID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.bySub[subscriptionID]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	cp := *profile
	return &cp, nil
}

// ========== OTP Repository ==========

// SaveOTP 保存验证码
func (s *Store) SaveOTP(code *domain.OTPCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	cp := *code
	cp.Email = strings.ToLower(cp.Email)
	s.otps[code.ID] = &cp
	return nil
}

// GetLatestOTP 获取某邮箱最近生成的验证码
func (s *Store) GetLatestOTP(email string) (*domain.OTPCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	matched := make([]*domain.OTPCode, 0, 2)
	for _, code := range s.otps {
		if code.Email == email {
			matched = append(matched, code)
		}
	}
	if len(matched) == 0 {
		return nil, storage.ErrOTPNotFound
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	cp := *matched[0]
	return &cp, nil
}

// MarkOTPUsed 标记验证码已使用
func (s *Store) MarkOTPUsed(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.otps[id]
	if !ok {
		return storage.ErrOTPNotFound
	}
	code.UsedAt = &at
	return nil
}

// DeleteExpiredOTPs 清理过期验证码，返回删除数量
func (s *Store) DeleteExpiredOTPs(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, code := range s.otps {
		if code.ExpiresAt.Before(before) {
			delete(s.otps, id)
			count++
		}
	}
	return count, nil
}

// ========== JWT 黑名单 ==========

// AddToBlacklist 将 JWT 添加到黑名单
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	// 内存存储不支持 JWT 黑名单，返回错误
	return errors.New("JWT blacklist not supported in memory storage")
}

// IsBlacklisted 检查 JWT 是否在黑名单中
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	// 内存存储不支持 JWT 黑名单，总是返回 false
	return false, nil
}

// ========== 限流 ==========

// IncrementRateLimit 增加限流计数
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	// 清理过期的速率限制条目（每5分钟清理一次）
	if now.After(s.rateLimitsCleanup) {
		for k, v := range s.rateLimits {
			if now.After(v.ExpiresAt) {
				delete(s.rateLimits, k)
			}
		}
		s.rateLimitsCleanup = now.Add(5 * time.Minute)
	}

	entry, exists := s.rateLimits[key]
	if !exists || now.After(entry.ExpiresAt) {
		entry = &rateLimitEntry{
			Count:     1,
			ExpiresAt: now.Add(window),
		}
		s.rateLimits[key] = entry
		return 1, nil
	}

	entry.Count++
	return entry.Count, nil
}

// GetRateLimit 获取限流计数
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.rateLimits[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}

// ========== 会话管理 ==========

// ========== 工具方法 ==========

// Close 关闭存储连接
func (s *Store) Close() error {
	// 内存存储不需要关闭连接
	return nil
}

// Health 健康检查
func (s *Store) Health() error {
	// 内存存储总是健康的
	return nil
}
