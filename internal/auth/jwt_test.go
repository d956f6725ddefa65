package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outprio/backend/internal/config"
)

func TestJWTManagerGenerateTokens(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	tokens, err := manager.GenerateTokens("user-1", "a@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, int64(15*60), tokens.ExpiresIn)
	// 访问令牌和刷新令牌的 jti 各不相同
	assert.NotEqual(t, tokens.AccessToken, tokens.RefreshToken)
}

func TestJWTManagerValidateToken(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	t.Run("有效令牌", func(t *testing.T) {
		tokens, err := manager.GenerateTokens("user-1", "a@example.com")
		require.NoError(t, err)

		claims, err := manager.ValidateToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "a@example.com", claims.Email)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("篡改的令牌", func(t *testing.T) {
		tokens, err := manager.GenerateTokens("user-1", "a@example.com")
		require.NoError(t, err)

		_, err = manager.ValidateToken(tokens.AccessToken + "x")
		assert.Error(t, err)
	})

	t.Run("错误密钥签发的令牌", func(t *testing.T) {
		other := NewJWTManager(&config.JWTConfig{
			Secret:        strings.Repeat("b", 32),
			Issuer:        "test",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
		})
		tokens, err := other.GenerateTokens("user-1", "a@example.com")
		require.NoError(t, err)

		_, err = manager.ValidateToken(tokens.AccessToken)
		assert.Error(t, err)
	})
}

func TestJWTManagerRefreshToken(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	tokens, err := manager.GenerateTokens("user-1", "a@example.com")
	require.NoError(t, err)

	refreshed, err := manager.RefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	claims, err := manager.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}
