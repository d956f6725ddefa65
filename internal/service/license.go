package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage"
)

var ErrProfileNotFound = errors.New("profile not found")

// LicenseInfo 是许可状态的对外视图。
type LicenseInfo struct {
	Status        domain.LicenseStatus `json:"status"`
	IsPaid        bool                 `json:"is_paid"`
	TrialDaysLeft int                  `json:"trial_days_left"`
	TrialExpires  *time.Time           `json:"trial_expires,omitempty"`
}

// LicenseService 从档案派生许可状态。许可不单独存储，
// 档案里的付费标记和试用期就是唯一事实。
type LicenseService struct {
	store storage.ProfileRepository
	log   *zap.Logger
}

// NewLicenseService 创建许可服务。
func NewLicenseService(store storage.ProfileRepository, log *zap.Logger) *LicenseService {
	return &LicenseService{store: store, log: log}
}

// Status 返回用户当前的许可状态。
func (s *LicenseService) Status(userID string) (LicenseInfo, error) {
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			return LicenseInfo{}, ErrProfileNotFound
		}
		return LicenseInfo{}, fmt.Errorf("failed to load profile: %w", err)
	}
	now := time.Now()
	return LicenseInfo{
		Status:        profile.LicenseAt(now),
		IsPaid:        profile.IsPaid,
		TrialDaysLeft: profile.TrialDaysLeft(now),
		TrialExpires:  profile.TrialExpires,
	}, nil
}

// Profile 返回用户的完整档案。
func (s *LicenseService) Profile(userID string) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile, nil
}

// StartTrial 开启 3 天试用。已付费或已试用过时不做任何事。
func (s *LicenseService) StartTrial(userID string) (LicenseInfo, error) {
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			return LicenseInfo{}, ErrProfileNotFound
		}
		return LicenseInfo{}, fmt.Errorf("failed to load profile: %w", err)
	}

	if profile.StartTrial(time.Now()) {
		if err := s.store.SaveProfile(profile); err != nil {
			return LicenseInfo{}, fmt.Errorf("failed to save profile: %w", err)
		}
		s.log.Info("trial started",
			zap.String("user_id", userID),
			zap.Timep("expires", profile.TrialExpires))
	}
	return s.Status(userID)
}
