package repository

import "time"

// AffiliateListFilter 查询推广账户列表的过滤条件
type AffiliateListFilter struct {
	Page         int
	PageSize     int
	Status       string
	TierID       uint
	ParentID     uint
	MinRiskScore int
	Keyword      string
}

// LedgerListFilter 查询推广流水列表的过滤条件
type LedgerListFilter struct {
	Page        int
	PageSize    int
	AffiliateID uint
	Type        string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ReferralListFilter 查询推荐订单列表的过滤条件
type ReferralListFilter struct {
	Page        int
	PageSize    int
	AffiliateID uint
	OrderID     uint
	Status      string
	Level       *int
}

// SystemLogListFilter 查询系统日志列表的过滤条件
type SystemLogListFilter struct {
	Page        int
	PageSize    int
	Level       string
	Source      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CommissionRuleListFilter 查询佣金规则列表的过滤条件
type CommissionRuleListFilter struct {
	Page       int
	PageSize   int
	ActiveOnly bool
	Keyword    string
}

// ClickStats 点击窗口统计
type ClickStats struct {
	TotalClicks   int64
	UniqueIPs     int64
	TopIPClicks   int64
	WindowStarted time.Time
}
