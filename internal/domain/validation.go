package domain

import (
	"errors"
	"net/mail"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrEmailTooLong       = errors.New("email address too long")
	ErrFullNameRequired   = errors.New("full name is required")
	ErrMailboxRequired    = errors.New("mailbox address is required")
	ErrLabelRequired      = errors.New("all four tier labels are required")
	ErrInvalidPageSize    = errors.New("entries per page not in allowed list")
	ErrInvalidSortColumn  = errors.New("unknown default sort column")
	ErrInvalidVIPContact  = errors.New("vip list contains an invalid address")
	ErrPasswordTooShort   = errors.New("password too short (min 8 chars)")
	ErrPasswordTooLong    = errors.New("password too long (max 72 chars)")
)

// RFC 5322 邮箱地址最大长度
const MaxEmailLength = 254

// ValidateEmailAddress 验证邮箱地址格式。
func ValidateEmailAddress(email string) error {
	email = strings.TrimSpace(email)
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword 验证密码长度（bcrypt 上限 72 字节）。
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}

// Validate 在构造边界（向导完成、设置保存）整体校验用户配置。
// 通过校验后，下游直接信任该结构。
func (s *UserSettings) Validate() error {
	if strings.TrimSpace(s.FullName) == "" {
		return ErrFullNameRequired
	}
	if strings.TrimSpace(s.OutlookEmail) == "" {
		return ErrMailboxRequired
	}
	if err := ValidateEmailAddress(strings.TrimSpace(s.OutlookEmail)); err != nil {
		return err
	}
	for _, label := range []string{s.Label5, s.Label4, s.Label3, s.Label2} {
		if strings.TrimSpace(label) == "" {
			return ErrLabelRequired
		}
	}

	validSize := false
	for _, n := range EntriesPerPageOptions {
		if s.EntriesPerPage == n {
			validSize = true
			break
		}
	}
	if !validSize {
		return ErrInvalidPageSize
	}

	switch s.DefaultSort {
	case SortByImportance, SortByReceived, SortBySender, SortBySubject, SortByPreview, SortByReason:
	default:
		return ErrInvalidSortColumn
	}

	// VIP 列表允许为空，但写了就必须能解析出合法地址
	for _, contact := range s.VIPContacts() {
		if err := ValidateEmailAddress(contact.Email); err != nil {
			return ErrInvalidVIPContact
		}
	}

	// 抓取相关字段沿用 FetchConfig 的约束
	cfg := FetchConfig{
		IntervalMinutes: s.FetchIntervalMinutes,
		Window:          PresetWindow(s.LookbackHours),
	}
	return cfg.Validate()
}
