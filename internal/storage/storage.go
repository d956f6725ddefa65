package storage

import (
	"errors"
	"time"

	"outprio/backend/internal/domain"
)

var (
	// ErrEmailNotFound 追踪记录未找到错误
	ErrEmailNotFound = errors.New("tracked email not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists 用户已存在错误
	ErrUserExists = errors.New("user already exists")
	// ErrProfileNotFound 账号档案未找到错误
	ErrProfileNotFound = errors.New("profile not found")
	// ErrSettingsNotFound 用户设置未找到错误
	ErrSettingsNotFound = errors.New("user settings not found")
	// ErrOTPNotFound 验证码未找到错误
	ErrOTPNotFound = errors.New("otp code not found")
)

// TrackedEmailRepository 定义邮件追踪与免打扰状态的存取操作。
type TrackedEmailRepository interface {
	TrackEmail(email *domain.TrackedEmail) error
	GetTrackedEmail(messageID string) (*domain.TrackedEmail, error)
	ListDismissedIDs() (map[string]struct{}, error)
	DismissEmail(messageID string, at time.Time) error
	DismissConversation(conversationID string, at time.Time) (int, error)
	PurgeTrackedBefore(cutoff time.Time) (int, error)
}

// FetchConfigRepository 定义拉取配置的存取操作。单行配置，整体读写。
type FetchConfigRepository interface {
	GetFetchConfig() (*domain.FetchConfig, error)
	SaveFetchConfig(cfg *domain.FetchConfig) error
}

// SettingsRepository 定义用户设置的存取操作。
type SettingsRepository interface {
	GetUserSettings(userID string) (*domain.UserSettings, error)
	SaveUserSettings(settings *domain.UserSettings) error
}

// UserRepository 定义用户账号的存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// ProfileRepository 定义账号档案（试用/订阅状态）的存取操作。
type ProfileRepository interface {
	SaveProfile(profile *domain.Profile) error
	GetProfile(userID string) (*domain.Profile, error)
	GetProfileBySubscription(subscriptionID string) (*domain.Profile, error)
}

// OTPRepository 定义邮箱验证码的存取操作。
type OTPRepository interface {
	SaveOTP(code *domain.OTPCode) error
	GetLatestOTP(email string) (*domain.OTPCode, error)
	MarkOTPUsed(id string, at time.Time) error
	DeleteExpiredOTPs(before time.Time) (int, error)
}

// JWTRepository 定义 JWT 黑名单操作。
type JWTRepository interface {
	AddToBlacklist(jti string, ttl time.Duration) error
	IsBlacklisted(jti string) (bool, error)
}

// RateLimitRepository 定义限流操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	TrackedEmailRepository
	FetchConfigRepository
	SettingsRepository
	UserRepository
	ProfileRepository
	OTPRepository
	JWTRepository
	RateLimitRepository

	// 工具方法
	Close() error
	Health() error
}
