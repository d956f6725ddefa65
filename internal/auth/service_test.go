package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outprio/backend/internal/config"
	"outprio/backend/internal/storage/memory"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:        strings.Repeat("a", 32),
		Issuer:        "test",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}
}

func newAuthService(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewAuthService(store, store, NewJWTManager(testJWTConfig()), nil), store
}

func TestAuthServiceRegister(t *testing.T) {
	t.Run("注册成功并建档案", func(t *testing.T) {
		service, store := newAuthService(t)
		resp, err := service.Register(RegisterInput{
			Email:     "Test@Example.com",
			Password:  "Password123!",
			FirstName: "Jane",
			LastName:  "Doe",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.User.ID)
		assert.Equal(t, "test@example.com", resp.User.Email)
		assert.Equal(t, "Jane Doe", resp.User.FullName())
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)

		profile, err := store.GetProfile(resp.User.ID)
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", profile.Email)
		// 注册不自动开试用
		assert.Nil(t, profile.TrialStart)
	})

	t.Run("重复邮箱被拒", func(t *testing.T) {
		service, _ := newAuthService(t)
		input := RegisterInput{Email: "dup@example.com", Password: "Password123!"}
		_, err := service.Register(input)
		require.NoError(t, err)
		_, err = service.Register(input)
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("非法邮箱", func(t *testing.T) {
		service, _ := newAuthService(t)
		_, err := service.Register(RegisterInput{Email: "not-an-email", Password: "Password123!"})
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("弱密码", func(t *testing.T) {
		service, _ := newAuthService(t)
		_, err := service.Register(RegisterInput{Email: "a@example.com", Password: "short"})
		assert.Error(t, err)
	})
}

func TestAuthServiceLogin(t *testing.T) {
	t.Run("正确凭证", func(t *testing.T) {
		service, _ := newAuthService(t)
		_, err := service.Register(RegisterInput{Email: "a@example.com", Password: "Password123!"})
		require.NoError(t, err)

		resp, err := service.Login(LoginInput{Email: "A@Example.com", Password: "Password123!"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "a@example.com", resp.User.Email)
	})

	t.Run("错误密码", func(t *testing.T) {
		service, _ := newAuthService(t)
		_, err := service.Register(RegisterInput{Email: "a@example.com", Password: "Password123!"})
		require.NoError(t, err)

		_, err = service.Login(LoginInput{Email: "a@example.com", Password: "wrong-password"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("不存在的账号", func(t *testing.T) {
		service, _ := newAuthService(t)
		_, err := service.Login(LoginInput{Email: "ghost@example.com", Password: "Password123!"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("禁用的账号", func(t *testing.T) {
		service, store := newAuthService(t)
		resp, err := service.Register(RegisterInput{Email: "a@example.com", Password: "Password123!"})
		require.NoError(t, err)

		user, err := store.GetUserByID(resp.User.ID)
		require.NoError(t, err)
		user.IsActive = false
		require.NoError(t, store.UpdateUser(user))

		_, err = service.Login(LoginInput{Email: "a@example.com", Password: "Password123!"})
		assert.ErrorIs(t, err, ErrUserInactive)
	})
}

func TestPasswordFlows(t *testing.T) {
	t.Run("修改密码", func(t *testing.T) {
		service, _ := newAuthService(t)
		resp, err := service.Register(RegisterInput{Email: "a@example.com", Password: "Password123!"})
		require.NoError(t, err)

		require.NoError(t, service.ChangePassword(resp.User.ID, "Password123!", "NewPassword456!"))

		_, err = service.Login(LoginInput{Email: "a@example.com", Password: "Password123!"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = service.Login(LoginInput{Email: "a@example.com", Password: "NewPassword456!"})
		assert.NoError(t, err)
	})

	t.Run("旧密码错误", func(t *testing.T) {
		service, _ := newAuthService(t)
		resp, err := service.Register(RegisterInput{Email: "a@example.com", Password: "Password123!"})
		require.NoError(t, err)
		assert.Error(t, service.ChangePassword(resp.User.ID, "wrong", "NewPassword456!"))
	})

	t.Run("重置密码", func(t *testing.T) {
		service, _ := newAuthService(t)
		_, err := service.Register(RegisterInput{Email: "a@example.com", Password: "Password123!"})
		require.NoError(t, err)

		require.NoError(t, service.ResetPassword("a@example.com", "ResetPassword789!"))
		_, err = service.Login(LoginInput{Email: "a@example.com", Password: "ResetPassword789!"})
		assert.NoError(t, err)
	})
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("user@example.com"))
	assert.True(t, ValidateEmail("first.last+tag@sub.example.co"))
	assert.False(t, ValidateEmail("user@"))
	assert.False(t, ValidateEmail("@example.com"))
	assert.False(t, ValidateEmail("plain"))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Password123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Password123!", hash)
	assert.True(t, CheckPassword("Password123!", hash))
	assert.False(t, CheckPassword("other", hash))
}
