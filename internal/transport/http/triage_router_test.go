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

	"outprio/backend/internal/config"
	"outprio/backend/internal/domain"
	"outprio/backend/internal/mailsource"
	"outprio/backend/internal/scheduler"
	"outprio/backend/internal/service"
	"outprio/backend/internal/storage/filesystem"
	"outprio/backend/internal/storage/memory"
)

const testUserID = "local-user"

func testSettings() *domain.UserSettings {
	s := domain.DefaultUserSettings(testUserID)
	s.FullName = "Abdul Nafay"
	s.OutlookEmail = "abdul@example.com"
	s.VIPEmails = "CEO Chen <ceo@example.com>"
	return &s
}

func newTriageRouter(t *testing.T) (*gin.Engine, *mailsource.FakeSource) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	source := mailsource.NewFakeSource()
	store := memory.NewStore()
	archive, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)

	emails := service.NewEmailService(source, store, archive,
		mailsource.NewOpener("true"), nil, testSettings(), zap.NewNop())
	t.Cleanup(func() { _ = emails.Close() })

	sched := scheduler.New(emails.FetchAndTrack, zap.NewNop(), nil)
	t.Cleanup(sched.Stop)
	configs := service.NewFetchConfigService(store, sched, zap.NewNop())
	settings := service.NewSettingsService(store, emails, zap.NewNop())

	router := NewTriageRouter(TriageRouterDependencies{
		Config:        &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}},
		EmailService:  emails,
		ConfigService: configs,
		Settings:      settings,
		UserID:        testUserID,
		Logger:        zap.NewNop(),
	})
	return router, source
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestEmailRoutes(t *testing.T) {
	t.Run("空快照返回空视图", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, resp := doJSON(t, router, http.MethodGet, "/emails", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, http.StatusOK, resp.Code)

		view := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 0, view["total"])
	})

	t.Run("手动抓取后列表返回邮件", func(t *testing.T) {
		router, source := newTriageRouter(t)
		source.Add(mailsource.FetchedEmail{
			MessageID:      "<m1@example.com>",
			ConversationID: "<m1@example.com>",
			Sender:         "CEO Chen",
			SenderSMTP:     "ceo@example.com",
			To:             []string{"abdul@example.com"},
			Recipients:     []string{"abdul@example.com"},
			Subject:        "quarterly numbers",
			Body:           "please review",
			Received:       domain.FormatLocalTime(time.Now().Add(-time.Hour)),
			Raw:            []byte("From: ceo@example.com\r\n\r\nplease review"),
		})

		w, _ := doJSON(t, router, http.MethodPost, "/fetch-now", "")
		assert.Equal(t, http.StatusOK, w.Code)

		w, resp := doJSON(t, router, http.MethodGet, "/emails", "")
		assert.Equal(t, http.StatusOK, w.Code)
		view := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 1, view["total"])
	})

	t.Run("只带一端的范围参数返回400", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodGet, "/emails?start=2026-01-01T00:00:00", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("非法时间格式返回400", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodGet, "/emails?start=garbage&end=2026-01-02T00:00:00", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("倒置的范围返回400", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodGet,
			"/emails?start=2026-01-02T00:00:00&end=2026-01-01T00:00:00", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("打开未归档的邮件返回404", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodPost, "/open/unknown", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestConfigRoutes(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, resp := doJSON(t, router, http.MethodGet, "/config", "")
		assert.Equal(t, http.StatusOK, w.Code)

		cfg := resp.Data.(map[string]interface{})
		assert.EqualValues(t, domain.DefaultFetchIntervalMinutes, cfg["fetch_interval_minutes"])
		assert.EqualValues(t, domain.DefaultLookbackHours, cfg["lookback_hours"])
	})

	t.Run("保存合法配置", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodPost, "/config",
			`{"fetch_interval_minutes":15,"lookback_hours":24}`)
		assert.Equal(t, http.StatusOK, w.Code)

		_, resp := doJSON(t, router, http.MethodGet, "/config", "")
		cfg := resp.Data.(map[string]interface{})
		assert.EqualValues(t, 15, cfg["fetch_interval_minutes"])
		assert.EqualValues(t, 24, cfg["lookback_hours"])
	})

	t.Run("非法间隔被拒绝", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodPost, "/config",
			`{"fetch_interval_minutes":7,"lookback_hours":3}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("保存大窗口立即生效", func(t *testing.T) {
		// 界面在保存前已确认过，确认挂起只发生在带着旧配置启动时
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodPost, "/config",
			`{"fetch_interval_minutes":5,"lookback_hours":168}`)
		assert.Equal(t, http.StatusOK, w.Code)

		_, resp := doJSON(t, router, http.MethodGet, "/config/status", "")
		status := resp.Data.(map[string]interface{})
		assert.False(t, status["awaiting_confirmation"].(bool))

		// 没有挂起配置时确认是无操作
		w, _ = doJSON(t, router, http.MethodPost, "/config/confirm", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("重置恢复默认值", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		doJSON(t, router, http.MethodPost, "/config", `{"fetch_interval_minutes":30,"lookback_hours":24}`)
		w, resp := doJSON(t, router, http.MethodPost, "/config/reset", "")
		assert.Equal(t, http.StatusOK, w.Code)

		cfg := resp.Data.(map[string]interface{})
		assert.EqualValues(t, domain.DefaultFetchIntervalMinutes, cfg["fetch_interval_minutes"])
	})
}

func TestSettingsRoutes(t *testing.T) {
	t.Run("未保存时返回默认设置", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, resp := doJSON(t, router, http.MethodGet, "/user-config", "")
		assert.Equal(t, http.StatusOK, w.Code)

		settings := resp.Data.(map[string]interface{})
		assert.Equal(t, testUserID, settings["user_id"])
	})

	t.Run("保存后读取一致", func(t *testing.T) {
		router, _ := newTriageRouter(t)

		w, _ := doJSON(t, router, http.MethodPost, "/user-config",
			`{"full_name":"Abdul Nafay","outlook_email":"abdul@example.com","vip_emails":"CEO Chen <ceo@example.com>"}`)
		assert.Equal(t, http.StatusOK, w.Code)

		_, resp := doJSON(t, router, http.MethodGet, "/user-config", "")
		settings := resp.Data.(map[string]interface{})
		assert.Equal(t, "Abdul Nafay", settings["full_name"])
	})
}
