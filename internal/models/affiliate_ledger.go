package models

import "time"

// AffiliateLedger 推广账户流水（只追加）
type AffiliateLedger struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                         // 主键
	AffiliateID   uint      `gorm:"not null;index:idx_affiliate_ledger_account" json:"affiliate_id"` // 推广账户ID
	Type          string    `gorm:"type:varchar(32);not null;index" json:"type"`                  // 流水类型
	Amount        Money     `gorm:"type:decimal(20,2);not null" json:"amount"`                    // 变动金额（带符号）
	BalanceBefore Money     `gorm:"type:decimal(20,2);not null" json:"balance_before"`            // 变动前余额
	BalanceAfter  Money     `gorm:"type:decimal(20,2);not null" json:"balance_after"`             // 变动后余额
	Description   string    `gorm:"type:varchar(512);not null;default:''" json:"description"`     // 说明
	ReferenceID   *string   `gorm:"type:varchar(191);uniqueIndex" json:"reference_id"`            // 幂等参考号
	CreatedAt     time.Time `gorm:"index:idx_affiliate_ledger_account" json:"created_at"`         // 创建时间
}

// TableName 指定表名
func (AffiliateLedger) TableName() string {
	return "affiliate_ledgers"
}
