package domain

import "time"

// OTPCode 密码重置一次性验证码。
//
// 对应托管库的 otp_codes 表：按邮箱查询，过期后不可用，使用后立即标记。
type OTPCode struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string     `json:"email" gorm:"type:varchar(255);index;not null"`
	Code      string     `json:"-" gorm:"type:varchar(10);not null"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IsUsable 判断验证码在指定时刻是否仍可使用。
func (o *OTPCode) IsUsable(now time.Time) bool {
	return o.UsedAt == nil && now.Before(o.ExpiresAt)
}
