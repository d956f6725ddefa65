package domain

import "time"

// LicenseStatus 许可状态（派生只读值，主视图据此放行或跳转购买页）
type LicenseStatus string

const (
	LicenseActive  LicenseStatus = "active"
	LicenseExpired LicenseStatus = "expired"
)

// TrialDays 新试用期时长（天）
const TrialDays = 3

// Profile 用户档案，承载试用/订阅状态。
//
// 对应托管库的 profiles 表。订阅字段由计费回调写入。
type Profile struct {
	UserID    string `json:"userId" gorm:"primaryKey;type:varchar(36)"`
	Email     string `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	FirstName string `json:"firstName" gorm:"type:varchar(100)"`
	LastName  string `json:"lastName" gorm:"type:varchar(100)"`

	TrialStart   *time.Time `json:"trialStart,omitempty"`
	TrialExpires *time.Time `json:"trialExpires,omitempty"`
	IsPaid       bool       `json:"isPaid" gorm:"default:false"`

	SubscriptionID    string     `json:"subscriptionId,omitempty" gorm:"type:varchar(255)"`
	SubscriptionType  string     `json:"subscriptionType,omitempty" gorm:"type:varchar(20)"` // month / year
	SubscriptionStart *time.Time `json:"subscriptionStart,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscriptionEnd,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LicenseAt 计算指定时刻的许可状态：已付费直接有效，
// 否则看试用期是否覆盖当前时间。
func (p *Profile) LicenseAt(now time.Time) LicenseStatus {
	if p.IsPaid {
		return LicenseActive
	}
	if p.TrialExpires != nil && now.Before(*p.TrialExpires) {
		return LicenseActive
	}
	return LicenseExpired
}

// TrialDaysLeft 试用剩余天数（向上取整，未开始或已付费返回 0）。
func (p *Profile) TrialDaysLeft(now time.Time) int {
	if p.IsPaid || p.TrialExpires == nil {
		return 0
	}
	left := p.TrialExpires.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// StartTrial 开启试用期。已有试用或已付费时不做任何事。
func (p *Profile) StartTrial(now time.Time) bool {
	if p.IsPaid || p.TrialStart != nil {
		return false
	}
	expires := now.Add(TrialDays * 24 * time.Hour)
	p.TrialStart = &now
	p.TrialExpires = &expires
	return true
}
