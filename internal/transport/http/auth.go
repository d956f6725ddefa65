package httptransport

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outprio/backend/internal/auth"
	jwtpkg "outprio/backend/internal/auth/jwt"
	"outprio/backend/internal/service"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.AuthService
	otpService  *service.OTPService
	log         *zap.Logger
}

// NewAuthHandler 创建认证处理器。otpService 用于密码重置验证码，可为 nil
func NewAuthHandler(authService *auth.AuthService, otpService *service.OTPService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		otpService:  otpService,
		log:         log,
	}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type resetRequestRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetConfirmRequest struct {
	Email       string `json:"email" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// Register 处理用户注册请求
// @Summary 用户注册
// @Description 创建新用户账户并同步建立档案，返回用户信息和认证令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 201 {object} Response "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "邮箱已存在"
// @Router /v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Register(auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			BadRequest(c, "邮箱格式无效")
		case errors.Is(err, auth.ErrEmailExists):
			Conflict(c, "该邮箱已被注册")
		default:
			if strings.Contains(err.Error(), "password") {
				BadRequest(c, err.Error())
				return
			}
			h.log.Error("failed to register user", zap.Error(err))
			InternalError(c, "注册失败，请稍后重试")
		}
		return
	}

	h.log.Info("user registered",
		zap.String("user_id", resp.User.ID),
		zap.String("email", resp.User.Email),
	)

	Created(c, resp)
}

// Login 处理用户登录请求
// @Summary 用户登录
// @Description 使用邮箱和密码进行身份验证，成功后返回认证令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录凭证"
// @Success 200 {object} Response "登录成功"
// @Failure 401 {object} Response "邮箱或密码错误"
// @Failure 403 {object} Response "账户已被禁用"
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Login(auth.LoginInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			Unauthorized(c, MsgInvalidCredentials)
		case errors.Is(err, auth.ErrUserInactive):
			Forbidden(c, "账户已被禁用")
		default:
			h.log.Error("failed to login", zap.Error(err))
			InternalError(c, "登录失败，请稍后重试")
		}
		return
	}

	h.log.Info("user logged in",
		zap.String("user_id", resp.User.ID),
		zap.String("email", resp.User.Email),
	)

	Success(c, resp)
}

// Refresh 刷新访问令牌
// @Summary 刷新访问令牌
// @Description 使用刷新令牌获取新的令牌对，避免重新登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body refreshRequest true "包含刷新令牌的请求"
// @Success 200 {object} Response "新的令牌对"
// @Failure 401 {object} Response "刷新令牌无效或已过期"
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	tokens, err := h.authService.RefreshToken(req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, jwtpkg.ErrExpiredToken):
			Unauthorized(c, MsgTokenExpired)
		case errors.Is(err, jwtpkg.ErrInvalidToken):
			Unauthorized(c, "刷新令牌无效")
		default:
			h.log.Error("failed to refresh token", zap.Error(err))
			InternalError(c, "刷新令牌失败")
		}
		return
	}

	Success(c, tokens)
}

// Me 获取当前用户信息
// @Summary 获取当前用户信息
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "用户信息"
// @Failure 401 {object} Response "未认证或令牌无效"
// @Failure 404 {object} Response "用户不存在"
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			NotFound(c, MsgUserNotFound)
			return
		}
		h.log.Error("failed to get user", zap.Error(err))
		InternalError(c, MsgUserGetFailed)
		return
	}

	Success(c, user)
}

// Logout 注销当前令牌
// @Summary 用户注销
// @Description 将当前访问令牌加入黑名单
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Router /v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.authService.Logout(parts[1]); err != nil {
		h.log.Error("failed to logout", zap.Error(err))
		InternalError(c, "注销失败")
		return
	}

	SuccessWithMsg(c, "已注销", nil)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body changePasswordRequest true "新旧密码"
// @Success 200 {object} Response
// @Failure 401 {object} Response "旧密码错误"
// @Router /v1/auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			Unauthorized(c, "旧密码错误")
		case errors.Is(err, auth.ErrUserNotFound):
			NotFound(c, MsgUserNotFound)
		default:
			if strings.Contains(err.Error(), "password") {
				BadRequest(c, err.Error())
				return
			}
			h.log.Error("failed to change password", zap.Error(err))
			InternalError(c, "修改密码失败")
		}
		return
	}

	SuccessWithMsg(c, "密码已修改", nil)
}

// RequestPasswordReset 发起密码重置，为邮箱签发验证码
// @Summary 发起密码重置
// @Description 为邮箱生成一次性验证码。无论邮箱是否存在都返回成功，防止探测
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body resetRequestRequest true "目标邮箱"
// @Success 200 {object} Response
// @Router /v1/auth/password-reset/request [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req resetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if h.otpService != nil {
		if _, err := h.otpService.Issue(req.Email); err != nil {
			h.log.Error("failed to issue otp", zap.Error(err))
		}
	}

	// 不暴露邮箱是否注册
	SuccessWithMsg(c, "如果该邮箱已注册，验证码已发送", nil)
}

// ConfirmPasswordReset 用验证码完成密码重置
// @Summary 完成密码重置
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body resetConfirmRequest true "邮箱、验证码和新密码"
// @Success 200 {object} Response
// @Failure 401 {object} Response "验证码无效或已过期"
// @Router /v1/auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if h.otpService == nil {
		InternalError(c, "密码重置未启用")
		return
	}

	if err := h.otpService.Verify(req.Email, req.Code); err != nil {
		Unauthorized(c, GetErrorMessage(service.ErrOTPInvalid))
		return
	}

	if err := h.authService.ResetPassword(req.Email, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			NotFound(c, MsgUserNotFound)
		default:
			if strings.Contains(err.Error(), "password") {
				BadRequest(c, err.Error())
				return
			}
			h.log.Error("failed to reset password", zap.Error(err))
			InternalError(c, "重置密码失败")
		}
		return
	}

	SuccessWithMsg(c, "密码已重置", nil)
}
