package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage"
)

var (
	ErrOTPInvalid = errors.New("invalid or expired code")
	ErrOTPTooMany = errors.New("too many codes requested")
)

// 单个邮箱在一个窗口内最多签发的验证码条数。
const (
	otpIssueLimit  = 3
	otpIssueWindow = 10 * time.Minute
)

// OTPService 签发和校验密码重置验证码。
type OTPService struct {
	store  storage.OTPRepository
	limits storage.RateLimitRepository
	expiry time.Duration
	log    *zap.Logger
}

// NewOTPService 创建验证码服务。limits 为 nil 时不限制签发频率。
func NewOTPService(store storage.OTPRepository, limits storage.RateLimitRepository, expiry time.Duration, log *zap.Logger) *OTPService {
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &OTPService{store: store, limits: limits, expiry: expiry, log: log}
}

// Issue 为邮箱签发一个 6 位数字验证码并落库。
// 投递（邮件/短信）由调用方负责，这里只管生成和保存。
func (s *OTPService) Issue(email string) (*domain.OTPCode, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if s.limits != nil {
		n, err := s.limits.IncrementRateLimit("otp:"+email, otpIssueWindow)
		if err != nil {
			// 限流器故障不拦签发，只是少一层保护
			s.log.Warn("otp rate limit check failed", zap.Error(err))
		} else if n > otpIssueLimit {
			return nil, ErrOTPTooMany
		}
	}

	code, err := randomDigits(6)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	otp := &domain.OTPCode{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.expiry),
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveOTP(otp); err != nil {
		return nil, fmt.Errorf("failed to save otp: %w", err)
	}

	s.log.Info("otp issued", zap.String("email", otp.Email))
	return otp, nil
}

// Verify 校验最新一条验证码：匹配、未过期、未使用，通过即标记已用。
func (s *OTPService) Verify(email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	otp, err := s.store.GetLatestOTP(email)
	if err != nil {
		if errors.Is(err, storage.ErrOTPNotFound) {
			return ErrOTPInvalid
		}
		return fmt.Errorf("failed to load otp: %w", err)
	}

	if !otp.IsUsable(time.Now()) || otp.Code != code {
		return ErrOTPInvalid
	}
	if err := s.store.MarkOTPUsed(otp.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark otp used: %w", err)
	}
	return nil
}

// PurgeExpired 清理过期验证码，返回删除条数。
func (s *OTPService) PurgeExpired() (int, error) {
	return s.store.DeleteExpiredOTPs(time.Now())
}

// randomDigits 生成指定长度的随机数字串。
func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
