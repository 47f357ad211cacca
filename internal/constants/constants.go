package constants

// 推广账户状态常量
const (
	AffiliateStatusActive  = "ACTIVE"
	AffiliateStatusPending = "PENDING"
	AffiliateStatusBanned  = "BANNED"
)

// 佣金计算方式常量
const (
	CommissionTypePercentage = "PERCENTAGE"
	CommissionTypeFixed      = "FIXED"
)

// 客户类型常量
const (
	CustomerTypeNew       = "NEW"
	CustomerTypeReturning = "RETURNING"
)

// 佣金来源常量
const (
	CommissionSourceNone         = "NONE"
	CommissionSourceRulePrefix   = "RULE: "
	CommissionSourceTierPrefix   = "TIER: "
	CommissionSourcePersonalRate = "PERSONAL_RATE"
	CommissionSourceUplinePrefix = "MLM: L"
)

// 账本流水类型常量
const (
	LedgerTypeCommission      = "COMMISSION"
	LedgerTypeBonus           = "BONUS"
	LedgerTypePayout          = "PAYOUT"
	LedgerTypeRefundDeduction = "REFUND_DEDUCTION"
	LedgerTypeAdjustment      = "ADJUSTMENT"
)

// 推荐订单状态常量
const (
	ReferralStatusPending  = "PENDING"
	ReferralStatusApproved = "APPROVED"
	ReferralStatusPaid     = "PAID"
	ReferralStatusRejected = "REJECTED"
)

// 订单状态常量
const (
	OrderStatusPending           = "PENDING"
	OrderStatusPaid              = "PAID"
	OrderStatusPartiallyRefunded = "PARTIALLY_REFUNDED"
	OrderStatusRefunded          = "REFUNDED"
	OrderStatusCanceled          = "CANCELED"
)

// 系统日志级别常量
const (
	SystemLogLevelCritical = "CRITICAL"
	SystemLogLevelError    = "ERROR"
	SystemLogLevelWarn     = "WARN"
	SystemLogLevelInfo     = "INFO"
)

// 幂等作用域常量
const (
	IdempotencyScopeOrder  = "affiliate_order"
	IdempotencyScopeRefund = "affiliate_refund"
	IdempotencyScopeStripe = "stripe_event"
)

// 设置键常量
const (
	SettingKeyAffiliateConfig = "affiliate_config"
	SettingKeyFraudRules      = "fraud_rules"
)

// 缓存标签常量
const (
	CacheTagSettings = "settings"
)

// 异步任务类型常量
const (
	TaskAffiliateProcessOrder  = "affiliate:process_order"
	TaskAffiliateProcessRefund = "affiliate:process_refund"
	TaskAffiliateRescore       = "affiliate:rescore"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 推广 Cookie 名称
const AffiliateReferralCookie = "aff_ref"

// MLM 结构常量
const (
	MLMRootPath        = "root"
	MLMTreeMaxDepth    = 3
	MLMDefaultMaxDepth = 10
)
