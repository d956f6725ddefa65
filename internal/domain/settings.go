package domain

import (
	"strings"
	"time"
)

// SortColumn 列表默认排序列
type SortColumn string

const (
	SortByImportance SortColumn = "importance"
	SortByReceived   SortColumn = "received"
	SortBySender     SortColumn = "sender"
	SortBySubject    SortColumn = "subject"
	SortByPreview    SortColumn = "preview"
	SortByReason     SortColumn = "reason"
)

// EntriesPerPageOptions 每页条数的可选项
var EntriesPerPageOptions = []int{50, 100, 200}

// DefaultEntriesPerPage 默认每页条数
const DefaultEntriesPerPage = 50

// VIPContact VIP 组里的一个联系人（"Jane Roe <jane.roe@outlook.com>" 的解析结果）
type VIPContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserSettings 用户配置：向导创建，设置页编辑，整体持久化并同步给分类器。
//
// 对应托管库的 user_settings 表，一个用户一行。
type UserSettings struct {
	UserID       string `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	AppTitle     string `json:"app_title" gorm:"type:varchar(100)"`
	FullName     string `json:"full_name" gorm:"type:varchar(200)"`
	OutlookEmail string `json:"outlook_email" gorm:"type:varchar(255)"`
	// 别名列表和 VIP 邮件列表存为换行分隔的文本，解析在读取侧完成
	Aliases      string `json:"aliases" gorm:"type:text"`
	VIPGroupName string `json:"vip_group_name" gorm:"type:varchar(100)"`
	VIPEmails    string `json:"vip_emails" gorm:"type:text"`

	// 四个重要度等级的展示标签
	Label5 string `json:"label_5" gorm:"type:varchar(50)"`
	Label4 string `json:"label_4" gorm:"type:varchar(50)"`
	Label3 string `json:"label_3" gorm:"type:varchar(50)"`
	Label2 string `json:"label_2" gorm:"type:varchar(50)"`

	FetchIntervalMinutes int        `json:"fetch_interval_minutes"`
	LookbackHours        int        `json:"lookback_hours"`
	EntriesPerPage       int        `json:"entries_per_page"`
	DefaultSort          SortColumn `json:"default_sort" gorm:"type:varchar(20)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TierLabel 返回指定重要度等级的展示标签。
func (s *UserSettings) TierLabel(tier ImportanceTier) string {
	switch tier {
	case TierCritical:
		return s.Label5
	case TierMajor:
		return s.Label4
	case TierHigh:
		return s.Label3
	case TierMedium:
		return s.Label2
	}
	return ""
}

// VIPContacts 解析换行分隔的 VIP 列表。
// 支持 "Name <email>" 和裸邮箱两种写法，邮箱统一转小写。
func (s *UserSettings) VIPContacts() []VIPContact {
	return ParseContactLines(s.VIPEmails)
}

// AliasList 解析换行分隔的别名列表。
func (s *UserSettings) AliasList() []string {
	lines := strings.Split(s.Aliases, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseContactLines 解析换行分隔的联系人文本。
func ParseContactLines(text string) []VIPContact {
	lines := strings.Split(text, "\n")
	out := make([]VIPContact, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if open := strings.IndexByte(line, '<'); open >= 0 {
			if close := strings.IndexByte(line[open:], '>'); close > 0 {
				out = append(out, VIPContact{
					Name:  strings.TrimSpace(line[:open]),
					Email: strings.ToLower(strings.TrimSpace(line[open+1 : open+close])),
				})
				continue
			}
		}
		out = append(out, VIPContact{Email: strings.ToLower(line)})
	}
	return out
}

// DefaultUserSettings 返回向导的初始值。
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{
		UserID:               userID,
		AppTitle:             "Priority Mail",
		VIPGroupName:         "VIP",
		Label5:               "Critical",
		Label4:               "Major",
		Label3:               "High",
		Label2:               "Medium",
		FetchIntervalMinutes: DefaultFetchIntervalMinutes,
		LookbackHours:        DefaultLookbackHours,
		EntriesPerPage:       DefaultEntriesPerPage,
		DefaultSort:          SortByImportance,
	}
}
