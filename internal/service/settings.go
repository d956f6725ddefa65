package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage"
)

// SettingsService 管理用户设置，保存后把分类器换成新 VIP 名单。
type SettingsService struct {
	store storage.SettingsRepository
	email *EmailService
	log   *zap.Logger
}

// NewSettingsService 创建用户设置服务。email 可为 nil（纯账号服务进程）。
func NewSettingsService(store storage.SettingsRepository, email *EmailService, log *zap.Logger) *SettingsService {
	return &SettingsService{store: store, email: email, log: log}
}

// Get 返回用户设置；没保存过时返回默认值。
func (s *SettingsService) Get(userID string) (domain.UserSettings, error) {
	settings, err := s.store.GetUserSettings(userID)
	if err != nil {
		if errors.Is(err, storage.ErrSettingsNotFound) {
			return domain.DefaultUserSettings(userID), nil
		}
		return domain.UserSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return *settings, nil
}

// Save 整体覆盖用户设置并重装分类器。
func (s *SettingsService) Save(settings domain.UserSettings) error {
	if settings.EntriesPerPage == 0 {
		settings.EntriesPerPage = domain.DefaultEntriesPerPage
	}
	if err := s.store.SaveUserSettings(&settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if s.email != nil {
		s.email.ReloadSettings(&settings)
	}
	s.log.Info("user settings saved", zap.String("user_id", settings.UserID))
	return nil
}
