package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outprio/backend/internal/domain"
	"outprio/backend/internal/storage"
)

func TestTrackedEmails(t *testing.T) {
	t.Run("追踪后可按ID读取", func(t *testing.T) {
		s := NewStore()
		err := s.TrackEmail(&domain.TrackedEmail{MessageID: "m1", ConversationID: "c1"})
		assert.NoError(t, err)

		got, err := s.GetTrackedEmail("m1")
		assert.NoError(t, err)
		assert.Equal(t, "m1", got.MessageID)
		assert.False(t, got.FirstSeenAt.IsZero())
		assert.False(t, got.IsDismissed())
	})

	t.Run("重复追踪不覆盖免打扰状态", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "m1", ConversationID: "c1"}))
		assert.NoError(t, s.DismissEmail("m1", time.Now()))
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "m1", ConversationID: "c1"}))

		got, err := s.GetTrackedEmail("m1")
		assert.NoError(t, err)
		assert.True(t, got.IsDismissed())
	})

	t.Run("免打扰未知邮件隐式建档", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.DismissEmail("never-seen", time.Now()))

		ids, err := s.ListDismissedIDs()
		assert.NoError(t, err)
		assert.Contains(t, ids, "never-seen")
	})

	t.Run("会话级免打扰覆盖全部成员", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "m1", ConversationID: "c1"}))
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "m2", ConversationID: "c1"}))
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "m3", ConversationID: "c2"}))

		n, err := s.DismissConversation("c1", time.Now())
		assert.NoError(t, err)
		assert.Equal(t, 2, n)

		ids, err := s.ListDismissedIDs()
		assert.NoError(t, err)
		assert.Len(t, ids, 2)
		assert.NotContains(t, ids, "m3")
	})

	t.Run("会话级免打扰跳过已免打扰成员", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "m1", ConversationID: "c1"}))
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "m2", ConversationID: "c1"}))
		assert.NoError(t, s.DismissEmail("m1", time.Now()))

		n, err := s.DismissConversation("c1", time.Now())
		assert.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("按时间清理旧记录", func(t *testing.T) {
		s := NewStore()
		old := time.Now().Add(-48 * time.Hour)
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "old", ConversationID: "c1", FirstSeenAt: old}))
		assert.NoError(t, s.TrackEmail(&domain.TrackedEmail{MessageID: "new", ConversationID: "c1"}))

		n, err := s.PurgeTrackedBefore(time.Now().Add(-24 * time.Hour))
		assert.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = s.GetTrackedEmail("old")
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
		_, err = s.GetTrackedEmail("new")
		assert.NoError(t, err)
	})
}

func TestFetchConfig(t *testing.T) {
	t.Run("未保存时返回默认配置", func(t *testing.T) {
		s := NewStore()
		cfg, err := s.GetFetchConfig()
		assert.NoError(t, err)
		assert.Equal(t, domain.DefaultFetchIntervalMinutes, cfg.IntervalMinutes)
		assert.Equal(t, domain.DefaultLookbackHours, cfg.Window.LookbackHours)
	})

	t.Run("保存后读回", func(t *testing.T) {
		s := NewStore()
		cfg := domain.FetchConfig{IntervalMinutes: 15, Window: domain.PresetWindow(24)}
		assert.NoError(t, s.SaveFetchConfig(&cfg))

		got, err := s.GetFetchConfig()
		assert.NoError(t, err)
		assert.Equal(t, 15, got.IntervalMinutes)
		assert.Equal(t, 24, got.Window.LookbackHours)
	})

	t.Run("读取返回副本", func(t *testing.T) {
		s := NewStore()
		cfg := domain.FetchConfig{IntervalMinutes: 15, Window: domain.PresetWindow(24)}
		assert.NoError(t, s.SaveFetchConfig(&cfg))

		got, _ := s.GetFetchConfig()
		got.IntervalMinutes = 999

		again, _ := s.GetFetchConfig()
		assert.Equal(t, 15, again.IntervalMinutes)
	})
}

func TestUserSettings(t *testing.T) {
	t.Run("未设置返回未找到", func(t *testing.T) {
		s := NewStore()
		_, err := s.GetUserSettings("u1")
		assert.ErrorIs(t, err, storage.ErrSettingsNotFound)
	})

	t.Run("保存后读回并带时间戳", func(t *testing.T) {
		s := NewStore()
		settings := domain.DefaultUserSettings("u1")
		settings.FullName = "Jane Roe"
		settings.OutlookEmail = "jane@example.com"
		assert.NoError(t, s.SaveUserSettings(&settings))

		got, err := s.GetUserSettings("u1")
		assert.NoError(t, err)
		assert.Equal(t, "Jane Roe", got.FullName)
		assert.False(t, got.CreatedAt.IsZero())
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("更新保留创建时间", func(t *testing.T) {
		s := NewStore()
		settings := domain.DefaultUserSettings("u1")
		assert.NoError(t, s.SaveUserSettings(&settings))
		first, _ := s.GetUserSettings("u1")

		update := domain.DefaultUserSettings("u1")
		update.AppTitle = "New Title"
		assert.NoError(t, s.SaveUserSettings(&update))

		got, _ := s.GetUserSettings("u1")
		assert.Equal(t, "New Title", got.AppTitle)
		assert.Equal(t, first.CreatedAt, got.CreatedAt)
	})
}

func TestUsers(t *testing.T) {
	newUser := func(id, email string) *domain.User {
		return &domain.User{ID: id, Email: email, PasswordHash: "x", IsActive: true}
	}

	t.Run("创建并按邮箱查询", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.CreateUser(newUser("u1", "Jane@Example.com")))

		got, err := s.GetUserByEmail("jane@example.com")
		assert.NoError(t, err)
		assert.Equal(t, "u1", got.ID)
	})

	t.Run("重复邮箱拒绝", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.CreateUser(newUser("u1", "jane@example.com")))
		err := s.CreateUser(newUser("u2", "JANE@example.com"))
		assert.ErrorIs(t, err, storage.ErrUserExists)
	})

	t.Run("缺少ID拒绝", func(t *testing.T) {
		s := NewStore()
		assert.Error(t, s.CreateUser(newUser("", "jane@example.com")))
	})

	t.Run("更新最后登录时间", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.CreateUser(newUser("u1", "jane@example.com")))
		assert.NoError(t, s.UpdateLastLogin("u1"))

		got, _ := s.GetUserByID("u1")
		assert.NotNil(t, got.LastLoginAt)
	})

	t.Run("更新换邮箱重建索引", func(t *testing.T) {
		s := NewStore()
		u := newUser("u1", "jane@example.com")
		assert.NoError(t, s.CreateUser(u))

		u.Email = "jane.roe@example.com"
		assert.NoError(t, s.UpdateUser(u))

		_, err := s.GetUserByEmail("jane@example.com")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
		got, err := s.GetUserByEmail("jane.roe@example.com")
		assert.NoError(t, err)
		assert.Equal(t, "u1", got.ID)
	})
}

func TestProfiles(t *testing.T) {
	t.Run("保存并按订阅ID反查", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.SaveProfile(&domain.Profile{UserID: "u1", Email: "jane@example.com", SubscriptionID: "sub_123"}))

		got, err := s.GetProfileBySubscription("sub_123")
		assert.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("换订阅ID后旧索引失效", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.SaveProfile(&domain.Profile{UserID: "u1", SubscriptionID: "sub_old"}))
		assert.NoError(t, s.SaveProfile(&domain.Profile{UserID: "u1", SubscriptionID: "sub_new"}))

		_, err := s.GetProfileBySubscription("sub_old")
		assert.ErrorIs(t, err, storage.ErrProfileNotFound)
		got, err := s.GetProfileBySubscription("sub_new")
		assert.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("未保存返回未找到", func(t *testing.T) {
		s := NewStore()
		_, err := s.GetProfile("nobody")
		assert.ErrorIs(t, err, storage.ErrProfileNotFound)
	})
}

func TestOTPCodes(t *testing.T) {
	t.Run("取最近一条验证码", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.SaveOTP(&domain.OTPCode{ID: "1", Email: "jane@example.com", Code: "111111", ExpiresAt: time.Now().Add(10 * time.Minute), CreatedAt: time.Now().Add(-time.Minute)}))
		assert.NoError(t, s.SaveOTP(&domain.OTPCode{ID: "2", Email: "Jane@Example.com", Code: "222222", ExpiresAt: time.Now().Add(10 * time.Minute), CreatedAt: time.Now()}))

		got, err := s.GetLatestOTP("jane@example.com")
		assert.NoError(t, err)
		assert.Equal(t, "2", got.ID)
	})

	t.Run("标记使用后不可复用", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.SaveOTP(&domain.OTPCode{ID: "1", Email: "jane@example.com", Code: "111111", ExpiresAt: time.Now().Add(10 * time.Minute)}))
		assert.NoError(t, s.MarkOTPUsed("1", time.Now()))

		got, _ := s.GetLatestOTP("jane@example.com")
		assert.False(t, got.IsUsable(time.Now()))
	})

	t.Run("清理过期验证码", func(t *testing.T) {
		s := NewStore()
		assert.NoError(t, s.SaveOTP(&domain.OTPCode{ID: "1", Email: "a@example.com", ExpiresAt: time.Now().Add(-time.Minute)}))
		assert.NoError(t, s.SaveOTP(&domain.OTPCode{ID: "2", Email: "b@example.com", ExpiresAt: time.Now().Add(time.Minute)}))

		n, err := s.DeleteExpiredOTPs(time.Now())
		assert.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("窗口内计数累加", func(t *testing.T) {
		s := NewStore()
		for i := int64(1); i <= 3; i++ {
			n, err := s.IncrementRateLimit("login:1.2.3.4", time.Minute)
			assert.NoError(t, err)
			assert.Equal(t, i, n)
		}

		n, err := s.GetRateLimit("login:1.2.3.4")
		assert.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("未知键计数为零", func(t *testing.T) {
		s := NewStore()
		n, err := s.GetRateLimit("unknown")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}
