// Package hybrid 组合 SQL 持久层与 Redis 缓存层：
// 持久数据落 SQL，短生命周期数据（黑名单、限流）只进 Redis，
// 热读路径（设置、档案、拉取配置）带缓存。
package hybrid

import (
	"fmt"
	"time"

	"outprio/backend/internal/domain"
	sqlstore "outprio/backend/internal/storage/sql"
	"outprio/backend/internal/storage/redis"
)

const (
	settingsCacheTTL = time.Hour
	profileCacheTTL  = 5 * time.Minute
	fetchCfgCacheTTL = time.Hour
)

// Store 混合存储实现
type Store struct {
	sql   *sqlstore.Store
	redis *redis.Cache
}

// NewStore 创建混合存储实例
func NewStore(dbType, dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration, redisAddr, redisPassword string, redisDB int) (*Store, error) {
	dbStore, err := sqlstore.NewStore(dbType, dsn, maxOpen, maxIdle, connMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisCache, err := redis.NewCache(redisAddr, redisPassword, redisDB)
	if err != nil {
		dbStore.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{
		sql:   dbStore,
		redis: redisCache,
	}, nil
}

// ========== Tracked Email Repository ==========
// 追踪记录只走 SQL：免打扰状态必须强一致，缓存没有收益。

func (s *Store) TrackEmail(email *domain.TrackedEmail) error {
	return s.sql.TrackEmail(email)
}

func (s *Store) GetTrackedEmail(messageID string) (*domain.TrackedEmail, error) {
	return s.sql.GetTrackedEmail(messageID)
}

func (s *Store) ListDismissedIDs() (map[string]struct{}, error) {
	return s.sql.ListDismissedIDs()
}

func (s *Store) DismissEmail(messageID string, at time.Time) error {
	return s.sql.DismissEmail(messageID, at)
}

func (s *Store) DismissConversation(conversationID string, at time.Time) (int, error) {
	return s.sql.DismissConversation(conversationID, at)
}

func (s *Store) PurgeTrackedBefore(cutoff time.Time) (int, error) {
	return s.sql.PurgeTrackedBefore(cutoff)
}

// ========== Fetch Config Repository ==========

// GetFetchConfig 读取拉取配置（缓存优先）
func (s *Store) GetFetchConfig() (*domain.FetchConfig, error) {
	if cfg, err := s.redis.GetCachedFetchConfig(); err == nil {
		return cfg, nil
	}

	cfg, err := s.sql.GetFetchConfig()
	if err != nil {
		return nil, err
	}

	s.redis.CacheFetchConfig(cfg, fetchCfgCacheTTL)
	return cfg, nil
}

// SaveFetchConfig 保存拉取配置并作废缓存
func (s *Store) SaveFetchConfig(cfg *domain.FetchConfig) error {
	if err := s.sql.SaveFetchConfig(cfg); err != nil {
		return err
	}
	s.redis.DeleteCachedFetchConfig()
	return nil
}

// ========== Settings Repository ==========

// GetUserSettings 读取用户设置（缓存优先）
func (s *Store) GetUserSettings(userID string) (*domain.UserSettings, error) {
	if settings, err := s.redis.GetCachedUserSettings(userID); err == nil {
		return settings, nil
	}

	settings, err := s.sql.GetUserSettings(userID)
	if err != nil {
		return nil, err
	}

	s.redis.CacheUserSettings(settings, settingsCacheTTL)
	return settings, nil
}

// SaveUserSettings 保存用户设置并作废缓存
func (s *Store) SaveUserSettings(settings *domain.UserSettings) error {
	if err := s.sql.SaveUserSettings(settings); err != nil {
		return err
	}
	s.redis.DeleteCachedUserSettings(settings.UserID)
	return nil
}

// ========== User Repository ==========
// 用户不走缓存：PasswordHash 带 json:"-" 标签，序列化会丢失。

func (s *Store) CreateUser(user *domain.User) error {
	return s.sql.CreateUser(user)
}

func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.sql.GetUserByID(id)
}

func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	return s.sql.GetUserByEmail(email)
}

func (s *Store) UpdateUser(user *domain.User) error {
	return s.sql.UpdateUser(user)
}

func (s *Store) UpdateLastLogin(userID string) error {
	return s.sql.UpdateLastLogin(userID)
}

// ========== Profile Repository ==========

// SaveProfile 保存账号档案并作废缓存
func (s *Store) SaveProfile(profile *domain.Profile) error {
	if err := s.sql.SaveProfile(profile); err != nil {
		return err
	}
	s.redis.DeleteCachedProfile(profile.UserID)
	return nil
}

// GetProfile 读取账号档案（缓存优先，授权检查每个请求都会打这里）
func (s *Store) GetProfile(userID string) (*domain.Profile, error) {
	if profile, err := s.redis.GetCachedProfile(userID); err == nil {
		return profile, nil
	}

	profile, err := s.sql.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	s.redis.CacheProfile(profile, profileCacheTTL)
	return profile, nil
}

// GetProfileBySubscription 按订阅 ID 反查（webhook 低频路径，不缓存）
func (s *Store) GetProfileBySubscription(subscriptionID string) (*domain.Profile, error) {
	return s.sql.GetProfileBySubscription(subscriptionID)
}

// ========== OTP Repository ==========
// 验证码只走 SQL：一次性凭证，缓存反而引入复用风险。

func (s *Store) SaveOTP(code *domain.OTPCode) error {
	return s.sql.SaveOTP(code)
}

func (s *Store) GetLatestOTP(email string) (*domain.OTPCode, error) {
	return s.sql.GetLatestOTP(email)
}

func (s *Store) MarkOTPUsed(id string, at time.Time) error {
	return s.sql.MarkOTPUsed(id, at)
}

func (s *Store) DeleteExpiredOTPs(before time.Time) (int, error) {
	return s.sql.DeleteExpiredOTPs(before)
}

// ========== JWT 黑名单 ==========

func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	return s.redis.AddToBlacklist(jti, ttl)
}

func (s *Store) IsBlacklisted(jti string) (bool, error) {
	return s.redis.IsBlacklisted(jti)
}

// ========== 限流 ==========

func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	return s.redis.IncrementRateLimit(key, window)
}

func (s *Store) GetRateLimit(key string) (int64, error) {
	return s.redis.GetRateLimit(key)
}

// ========== 会话管理 ==========

// ========== 工具方法 ==========

// Close 关闭存储连接
func (s *Store) Close() error {
	if err := s.sql.Close(); err != nil {
		return err
	}
	return s.redis.Close()
}

// Health 健康检查
func (s *Store) Health() error {
	if err := s.sql.Health(); err != nil {
		return fmt.Errorf("sql: %w", err)
	}
	if err := s.redis.Health(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
