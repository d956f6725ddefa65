package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSettings() UserSettings {
	s := DefaultUserSettings("user-1")
	s.FullName = "Jane Roe"
	s.OutlookEmail = "jane.roe@outlook.com"
	return s
}

func TestUserSettingsValidate(t *testing.T) {
	t.Run("完整配置通过校验", func(t *testing.T) {
		s := validSettings()
		assert.NoError(t, s.Validate())
	})

	t.Run("缺少姓名被拒绝", func(t *testing.T) {
		s := validSettings()
		s.FullName = "   "
		assert.ErrorIs(t, s.Validate(), ErrFullNameRequired)
	})

	t.Run("邮箱格式非法被拒绝", func(t *testing.T) {
		s := validSettings()
		s.OutlookEmail = "not-an-email"
		assert.ErrorIs(t, s.Validate(), ErrInvalidEmail)
	})

	t.Run("标签缺失被拒绝", func(t *testing.T) {
		s := validSettings()
		s.Label3 = ""
		assert.ErrorIs(t, s.Validate(), ErrLabelRequired)
	})

	t.Run("每页条数非法被拒绝", func(t *testing.T) {
		s := validSettings()
		s.EntriesPerPage = 75
		assert.ErrorIs(t, s.Validate(), ErrInvalidPageSize)
	})

	t.Run("VIP列表里非法地址被拒绝", func(t *testing.T) {
		s := validSettings()
		s.VIPEmails = "Jon Doe <jon.doe@outlook.com>\ngarbage<<"
		assert.ErrorIs(t, s.Validate(), ErrInvalidVIPContact)
	})
}

func TestParseContactLines(t *testing.T) {
	t.Run("解析带名字和裸邮箱两种写法", func(t *testing.T) {
		contacts := ParseContactLines("Jon Doe <Jon.Doe@Outlook.com>\n\n jane.roe@outlook.com \n")

		assert.Len(t, contacts, 2)
		assert.Equal(t, "Jon Doe", contacts[0].Name)
		assert.Equal(t, "jon.doe@outlook.com", contacts[0].Email)
		assert.Equal(t, "", contacts[1].Name)
		assert.Equal(t, "jane.roe@outlook.com", contacts[1].Email)
	})
}

func TestProfileLicense(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("付费用户始终有效", func(t *testing.T) {
		p := Profile{IsPaid: true}
		assert.Equal(t, LicenseActive, p.LicenseAt(now))
	})

	t.Run("试用期内有效过期失效", func(t *testing.T) {
		expires := now.Add(24 * time.Hour)
		p := Profile{TrialExpires: &expires}
		assert.Equal(t, LicenseActive, p.LicenseAt(now))
		assert.Equal(t, LicenseExpired, p.LicenseAt(now.Add(25*time.Hour)))
	})

	t.Run("未付费无试用视为过期", func(t *testing.T) {
		p := Profile{}
		assert.Equal(t, LicenseExpired, p.LicenseAt(now))
	})

	t.Run("开启试用设置三天窗口", func(t *testing.T) {
		p := Profile{}
		assert.True(t, p.StartTrial(now))
		assert.Equal(t, now, *p.TrialStart)
		assert.Equal(t, now.Add(TrialDays*24*time.Hour), *p.TrialExpires)
		assert.Equal(t, 3, p.TrialDaysLeft(now))

		// 幂等：重复开启无效
		assert.False(t, p.StartTrial(now))
	})
}
