package sql

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage"
)

// fetchConfigRow 拉取配置的单行落库形态。窗口的标签联合体拆平存储。
type fetchConfigRow struct {
	ID              int `gorm:"primaryKey"`
	IntervalMinutes int
	Mode            string
	LookbackHours   int
	Start           *time.Time
	End             *time.Time
	UpdatedAt       time.Time
}

func (fetchConfigRow) TableName() string { return "fetch_config" }

func toFetchConfigRow(cfg *domain.FetchConfig) *fetchConfigRow {
	row := &fetchConfigRow{
		ID:              1,
		IntervalMinutes: cfg.IntervalMinutes,
		Mode:            string(cfg.Window.Mode),
		LookbackHours:   cfg.Window.LookbackHours,
	}
	if cfg.Window.Mode == domain.WindowCustom {
		start, end := cfg.Window.Start, cfg.Window.End
		row.Start = &start
		row.End = &end
	}
	return row
}

func (r *fetchConfigRow) toDomain() *domain.FetchConfig {
	cfg := &domain.FetchConfig{
		IntervalMinutes: r.IntervalMinutes,
		Window: domain.FetchWindow{
			Mode:          domain.WindowMode(r.Mode),
			LookbackHours: r.LookbackHours,
		},
	}
	if r.Start != nil {
		cfg.Window.Start = *r.Start
	}
	if r.End != nil {
		cfg.Window.End = *r.End
	}
	return cfg
}

// ========== Tracked Email Repository ==========

// TrackEmail 记录一封新出现的邮件，已存在时不覆盖。
func (s *Store) TrackEmail(email *domain.TrackedEmail) error {
	if email.FirstSeenAt.IsZero() {
		email.FirstSeenAt = time.Now().UTC()
	}
	return s.gorm.Clauses(clause.OnConflict{DoNothing: true}).Create(email).Error
}

// GetTrackedEmail 按 message_id 读取追踪记录。
func (s *Store) GetTrackedEmail(messageID string) (*domain.TrackedEmail, error) {
	var tracked domain.TrackedEmail
	err := s.gorm.Where("message_id = ?", messageID).First(&tracked).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrEmailNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tracked, nil
}

// ListDismissedIDs 返回所有已免打扰邮件的 message_id 集合。
func (s *Store) ListDismissedIDs() (map[string]struct{}, error) {
	var ids []string
	err := s.gorm.Model(&domain.TrackedEmail{}).
		Where("dismissed_at IS NOT NULL").
		Pluck("message_id", &ids).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// DismissEmail 标记单封邮件免打扰，记录不存在时隐式创建。
func (s *Store) DismissEmail(messageID string, at time.Time) error {
	tracked := &domain.TrackedEmail{
		MessageID:   messageID,
		FirstSeenAt: at,
		DismissedAt: &at,
	}
	return s.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"dismissed_at": at}),
	}).Create(tracked).Error
}

// DismissConversation 标记整个会话免打扰，返回受影响的记录数。
func (s *Store) DismissConversation(conversationID string, at time.Time) (int, error) {
	result := s.gorm.Model(&domain.TrackedEmail{}).
		Where("conversation_id = ? AND dismissed_at IS NULL", conversationID).
		Update("dismissed_at", at)
	return int(result.RowsAffected), result.Error
}

// PurgeTrackedBefore 清理首次出现时间早于 cutoff 的记录，返回删除数量。
func (s *Store) PurgeTrackedBefore(cutoff time.Time) (int, error) {
	result := s.gorm.Where("first_seen_at < ?", cutoff).Delete(&domain.TrackedEmail{})
	return int(result.RowsAffected), result.Error
}

// ========== Fetch Config Repository ==========

// GetFetchConfig 读取拉取配置，从未保存过时返回默认值。
func (s *Store) GetFetchConfig() (*domain.FetchConfig, error) {
	var row fetchConfigRow
	err := s.gorm.First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg := domain.DefaultFetchConfig()
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// SaveFetchConfig 整体覆盖拉取配置。
func (s *Store) SaveFetchConfig(cfg *domain.FetchConfig) error {
	row := toFetchConfigRow(cfg)
	row.UpdatedAt = time.Now().UTC()
	return s.gorm.Save(row).Error
}

// ========== Settings Repository ==========

// GetUserSettings 读取用户设置。
func (s *Store) GetUserSettings(userID string) (*domain.UserSettings, error) {
	var settings domain.UserSettings
	err := s.gorm.Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveUserSettings 保存用户设置（upsert 语义）。
func (s *Store) SaveUserSettings(settings *domain.UserSettings) error {
	return s.gorm.Save(settings).Error
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	err := s.gorm.Create(user).Error
	if err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "duplicate key")) {
		return storage.ErrUserExists
	}
	return err
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.gorm.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := s.gorm.Where("email = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	result := s.gorm.Model(&domain.User{}).Where("id = ?", user.ID).Updates(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	now := time.Now().UTC()
	result := s.gorm.Model(&domain.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"last_login_at": now,
		"updated_at":    now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// ========== Profile Repository ==========

// SaveProfile 保存账号档案（upsert 语义）
func (s *Store) SaveProfile(profile *domain.Profile) error {
	return s.gorm.Save(profile).Error
}

// GetProfile 读取账号档案
func (s *Store) GetProfile(userID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := s.gorm.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileBySubscription 按 Stripe 订阅 ID 反查档案
func (s *Store) GetProfileBySubscription(subscriptionID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := s.gorm.Where("subscription_id = ?", subscriptionID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ========== OTP Repository ==========

// SaveOTP 保存验证码
func (s *Store) SaveOTP(code *domain.OTPCode) error {
	code.Email = strings.ToLower(code.Email)
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	return s.gorm.Create(code).Error
}

// GetLatestOTP 获取某邮箱最近生成的验证码
func (s *Store) GetLatestOTP(email string) (*domain.OTPCode, error) {
	var code domain.OTPCode
	err := s.gorm.Where("email = ?", strings.ToLower(email)).
		Order("created_at DESC").
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// MarkOTPUsed 标记验证码已使用
func (s *Store) MarkOTPUsed(id string, at time.Time) error {
	result := s.gorm.Model(&domain.OTPCode{}).Where("id = ?", id).Update("used_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrOTPNotFound
	}
	return nil
}

// DeleteExpiredOTPs 清理过期验证码，返回删除数量
func (s *Store) DeleteExpiredOTPs(before time.Time) (int, error) {
	result := s.gorm.Where("expires_at < ?", before).Delete(&domain.OTPCode{})
	return int(result.RowsAffected), result.Error
}
