package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outprio/backend/internal/storage/memory"
)

func TestOTPService(t *testing.T) {
	newSvc := func(expiry time.Duration) *OTPService {
		return NewOTPService(memory.NewStore(), nil, expiry, zap.NewNop())
	}

	t.Run("签发后可校验一次", func(t *testing.T) {
		svc := newSvc(10 * time.Minute)
		otp, err := svc.Issue("User@Example.com")
		require.NoError(t, err)
		assert.Len(t, otp.Code, 6)
		assert.Equal(t, "user@example.com", otp.Email)

		require.NoError(t, svc.Verify("user@example.com", otp.Code))
		// 二次使用被拒
		assert.ErrorIs(t, svc.Verify("user@example.com", otp.Code), ErrOTPInvalid)
	})

	t.Run("错误的验证码", func(t *testing.T) {
		svc := newSvc(10 * time.Minute)
		_, err := svc.Issue("user@example.com")
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Verify("user@example.com", "000000x"), ErrOTPInvalid)
	})

	t.Run("未签发过的邮箱", func(t *testing.T) {
		svc := newSvc(10 * time.Minute)
		assert.ErrorIs(t, svc.Verify("ghost@example.com", "123456"), ErrOTPInvalid)
	})

	t.Run("过期的验证码", func(t *testing.T) {
		svc := newSvc(time.Millisecond)
		otp, err := svc.Issue("user@example.com")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		assert.ErrorIs(t, svc.Verify("user@example.com", otp.Code), ErrOTPInvalid)
	})

	t.Run("签发频率受限", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewOTPService(store, store, 10*time.Minute, zap.NewNop())
		for i := 0; i < 3; i++ {
			_, err := svc.Issue("user@example.com")
			require.NoError(t, err)
		}
		_, err := svc.Issue("user@example.com")
		assert.ErrorIs(t, err, ErrOTPTooMany)

		// 其他邮箱不受影响
		_, err = svc.Issue("other@example.com")
		assert.NoError(t, err)
	})

	t.Run("新验证码覆盖旧验证码", func(t *testing.T) {
		svc := newSvc(10 * time.Minute)
		old, err := svc.Issue("user@example.com")
		require.NoError(t, err)
		latest, err := svc.Issue("user@example.com")
		require.NoError(t, err)

		if old.Code != latest.Code {
			assert.ErrorIs(t, svc.Verify("user@example.com", old.Code), ErrOTPInvalid)
		}
		require.NoError(t, svc.Verify("user@example.com", latest.Code))
	})
}
