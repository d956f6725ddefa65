package auth

import (
	"errors"
	"time"

	"outprio/backend/internal/auth/jwt"
	"outprio/backend/internal/config"
	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage"
)

// JWTManager JWT管理器包装
type JWTManager struct {
	manager *jwt.Manager
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(cfg *config.JWTConfig) *JWTManager {
	manager := jwt.NewManager(cfg.Secret, cfg.Issuer, cfg.AccessExpiry, cfg.RefreshExpiry)
	return &JWTManager{manager: manager}
}

// TokenResponse 令牌响应
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// GenerateTokens 生成令牌对
func (j *JWTManager) GenerateTokens(userID, email string) (*TokenResponse, error) {
	tokenPair, err := j.manager.GenerateTokenPair(userID, email)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// ValidateToken 验证令牌
func (j *JWTManager) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return j.manager.ValidateToken(tokenString)
}

// RefreshToken 刷新令牌
func (j *JWTManager) RefreshToken(refreshToken string) (*TokenResponse, error) {
	// 先验证刷新令牌
	claims, err := j.manager.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// 生成新的令牌对
	tokenPair, err := j.manager.GenerateTokenPair(claims.UserID, claims.Email)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// AuthService 认证服务包装：账号操作 + 令牌签发 + 可选的登出拉黑。
type AuthService struct {
	service    *Service
	jwtManager *JWTManager
	blacklist  storage.JWTRepository // 可为 nil（无 Redis 的部署）
}

// NewAuthService 创建认证服务
func NewAuthService(users storage.UserRepository, profiles storage.ProfileRepository,
	jwtManager *JWTManager, blacklist storage.JWTRepository) *AuthService {
	return &AuthService{
		service:    NewService(users, profiles),
		jwtManager: jwtManager,
		blacklist:  blacklist,
	}
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// Register 用户注册
func (a *AuthService) Register(input RegisterInput) (*AuthResponse, error) {
	user, err := a.service.Register(input)
	if err != nil {
		return nil, err
	}
	return a.respond(user)
}

// Login 用户登录
func (a *AuthService) Login(input LoginInput) (*AuthResponse, error) {
	user, err := a.service.Login(input)
	if err != nil {
		return nil, err
	}
	return a.respond(user)
}

func (a *AuthService) respond(user *domain.User) (*AuthResponse, error) {
	tokens, err := a.jwtManager.GenerateTokens(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	}, nil
}

// RefreshToken 刷新令牌
func (a *AuthService) RefreshToken(refreshToken string) (*TokenResponse, error) {
	return a.jwtManager.RefreshToken(refreshToken)
}

// GetUserByID 根据ID获取用户
func (a *AuthService) GetUserByID(userID string) (*domain.User, error) {
	return a.service.GetUserByID(userID)
}

// ChangePassword 修改密码
func (a *AuthService) ChangePassword(userID, oldPassword, newPassword string) error {
	return a.service.ChangePassword(userID, oldPassword, newPassword)
}

// ResetPassword 重置密码（验证码通过后调用）。
func (a *AuthService) ResetPassword(email, newPassword string) error {
	return a.service.ResetPassword(email, newPassword)
}

// Logout 把令牌按 jti 拉黑到过期为止。没接黑名单存储时登出只在客户端生效。
func (a *AuthService) Logout(tokenString string) error {
	if a.blacklist == nil {
		return nil
	}
	claims, err := a.jwtManager.ValidateToken(tokenString)
	if err != nil {
		// 过期的令牌无需拉黑
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil
		}
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return a.blacklist.AddToBlacklist(claims.ID, ttl)
}

// IsBlacklisted 查询令牌的 jti 是否已被拉黑。
func (a *AuthService) IsBlacklisted(jti string) bool {
	if a.blacklist == nil {
		return false
	}
	blacklisted, err := a.blacklist.IsBlacklisted(jti)
	if err != nil {
		return false
	}
	return blacklisted
}
