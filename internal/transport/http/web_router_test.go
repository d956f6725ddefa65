package httptransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outprio/backend/internal/auth"
	jwtpkg "outprio/backend/internal/auth/jwt"
	"outprio/backend/internal/config"
	"outprio/backend/internal/middleware"
	"outprio/backend/internal/service"
	"outprio/backend/internal/storage/memory"
)

func newWebRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	jwtCfg := &config.JWTConfig{
		Secret:        "test-secret-key-32-characters-ok",
		Issuer:        "outprio",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}
	jwtManager := jwtpkg.NewManager(jwtCfg.Secret, jwtCfg.Issuer, jwtCfg.AccessExpiry, jwtCfg.RefreshExpiry)

	authService := auth.NewAuthService(store, store, auth.NewJWTManager(jwtCfg), nil)
	otpService := service.NewOTPService(store, store, 10*time.Minute, zap.NewNop())
	licenseService := service.NewLicenseService(store, zap.NewNop())

	return NewWebRouter(WebRouterDependencies{
		Config:         &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}},
		AuthService:    authService,
		OTPService:     otpService,
		LicenseService: licenseService,
		JWTAuth:        middleware.NewJWTAuth(jwtManager, nil, zap.NewNop()),
		Logger:         zap.NewNop(),
	})
}

func postJSON(t *testing.T, router *gin.Engine, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, router *gin.Engine, email string) (userID, accessToken string) {
	t.Helper()
	w := postJSON(t, router, "/v1/auth/register",
		`{"email":"`+email+`","password":"secret-password","firstName":"Abdul"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	user := data["user"].(map[string]interface{})
	return user["id"].(string), data["accessToken"].(string)
}

func TestAuthRoutes(t *testing.T) {
	t.Run("注册登录获取用户信息", func(t *testing.T) {
		router := newWebRouter(t)
		_, token := registerUser(t, router, "abdul@example.com")

		w := postJSON(t, router, "/v1/auth/login",
			`{"email":"abdul@example.com","password":"secret-password"}`, "")
		assert.Equal(t, http.StatusOK, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		user := resp.Data.(map[string]interface{})
		assert.Equal(t, "abdul@example.com", user["email"])
	})

	t.Run("重复注册返回409", func(t *testing.T) {
		router := newWebRouter(t)
		registerUser(t, router, "dup@example.com")

		w := postJSON(t, router, "/v1/auth/register",
			`{"email":"dup@example.com","password":"secret-password"}`, "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("错误密码返回401", func(t *testing.T) {
		router := newWebRouter(t)
		registerUser(t, router, "abdul@example.com")

		w := postJSON(t, router, "/v1/auth/login",
			`{"email":"abdul@example.com","password":"wrong-password"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("无令牌访问受保护路由返回401", func(t *testing.T) {
		router := newWebRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLicenseRoutes(t *testing.T) {
	t.Run("新账号未开始试用时许可过期", func(t *testing.T) {
		router := newWebRouter(t)
		_, token := registerUser(t, router, "abdul@example.com")

		req := httptest.NewRequest(http.MethodGet, "/v1/license", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		info := resp.Data.(map[string]interface{})
		assert.Equal(t, "expired", info["status"])
	})

	t.Run("开始试用后许可有效", func(t *testing.T) {
		router := newWebRouter(t)
		_, token := registerUser(t, router, "abdul@example.com")

		w := postJSON(t, router, "/v1/license/trial", "", token)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		info := resp.Data.(map[string]interface{})
		assert.Equal(t, "active", info["status"])
		assert.Greater(t, info["trial_days_left"].(float64), float64(0))
	})
}

func TestPasswordReset(t *testing.T) {
	router := newWebRouter(t)
	registerUser(t, router, "abdul@example.com")

	w := postJSON(t, router, "/v1/auth/password-reset/request",
		`{"email":"abdul@example.com"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("错误验证码被拒绝", func(t *testing.T) {
		w := postJSON(t, router, "/v1/auth/password-reset/confirm",
			`{"email":"abdul@example.com","code":"000000","newPassword":"another-password"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
