package service

import "errors"

// 通用错误
var (
	ErrNotFound           = errors.New("资源不存在")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidToken       = errors.New("无效的 token")
)

// 推广账户与网络错误
var (
	ErrAffiliateNotFound      = errors.New("推广账户不存在")
	ErrAffiliateExists        = errors.New("推广账户已存在")
	ErrAffiliateStatusInvalid = errors.New("推广账户状态无效")
	ErrAffiliateInputInvalid  = errors.New("推广账户参数无效")
	ErrSlugGenerateFailed     = errors.New("推广码生成失败")
	ErrSponsorInvalid         = errors.New("上级推广账户无效")
	ErrSponsorCycle           = errors.New("上级关系形成环路")
	ErrMLMDepthExceeded       = errors.New("推广网络层级超出上限")
)

// 配置错误
var (
	ErrAffiliateConfigInvalid = errors.New("推广配置无效")
	ErrFraudRulesInvalid      = errors.New("风控规则无效")
)

// 佣金规则与等级错误
var (
	ErrRuleInvalid     = errors.New("佣金规则无效")
	ErrTierInvalid     = errors.New("推广等级无效")
	ErrTierNameExists  = errors.New("推广等级名称已存在")
	ErrTierInUse       = errors.New("推广等级仍被账户使用")
	ErrCommissionInput = errors.New("佣金计算参数无效")
)

// 账本错误
var (
	ErrLedgerAmountInvalid       = errors.New("流水金额无效")
	ErrLedgerTypeInvalid         = errors.New("流水类型无效")
	ErrLedgerInsufficientBalance = errors.New("推广账户余额不足")
	ErrPayoutBelowMinimum        = errors.New("结算金额低于最低结算额")
	ErrNothingToPayout           = errors.New("没有可结算的佣金")
)

// 订单与回调错误
var (
	ErrRefundItemsInvalid      = errors.New("退款订单项无效")
	ErrWebhookUnauthorized     = errors.New("回调鉴权失败")
	ErrWebhookSignatureInvalid = errors.New("回调签名无效")
	ErrWebhookPayloadInvalid   = errors.New("回调内容无效")
	ErrWebhookNotConfigured    = errors.New("回调密钥未配置")
	ErrCheckInProgress         = errors.New("定时巡检正在执行")
)
