package httptransport

import (
	"outprio/backend/internal/domain"
	"outprio/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 抓取配置错误
	domain.ErrIntervalNotAllowed: "抓取间隔不在可选列表中",
	domain.ErrLookbackOutOfRange: "回看窗口超出允许范围",
	domain.ErrRangeIncomplete:    "自定义范围必须同时提供起止时间",
	domain.ErrRangeInverted:      "结束时间必须晚于开始时间",
	domain.ErrRangeTooLong:       "自定义范围不能超过31天",

	// 邮件错误
	service.ErrEmailNotFound:   "邮件不存在或归档文件缺失",
	service.ErrRangeIncomplete: "必须同时提供 start 和 end",
	service.ErrRangeInverted:   "end 必须晚于 start",
	service.ErrRangeTooLong:    "查询范围不能超过31天",

	// 许可与验证码错误
	service.ErrProfileNotFound: "用户档案不存在",
	service.ErrOTPInvalid:      "验证码无效或已过期",

	// 计费错误
	service.ErrUnknownPlan:        "未知的订阅计划",
	service.ErrSubscriptionNotSet: "当前没有关联的订阅",

	// 用户设置错误
	domain.ErrInvalidSortColumn: "未知的默认排序列",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidTimeRange = "时间格式无效，应为 2006-01-02T15:04:05"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "邮箱或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"

	// 邮件相关
	MsgEmailListFailed = "获取邮件列表失败"
	MsgDismissFailed   = "清除邮件失败"
	MsgOpenFailed      = "打开邮件失败"
	MsgFetchFailed     = "抓取邮件失败"

	// 配置相关
	MsgConfigGetFailed    = "获取抓取配置失败"
	MsgConfigSaveFailed   = "保存抓取配置失败"
	MsgSettingsGetFailed  = "获取用户设置失败"
	MsgSettingsSaveFailed = "保存用户设置失败"

	// 用户相关
	MsgUserNotFound  = "用户不存在"
	MsgUserGetFailed = "获取用户信息失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
