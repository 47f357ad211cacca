package models

import "time"

// Referral 推荐订单（一笔订单对一个推广账户一行）
type Referral struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                                 // 主键
	AffiliateID      uint       `gorm:"not null;uniqueIndex:idx_referral_order_affiliate;index" json:"affiliate_id"` // 推广账户ID
	OrderID          uint       `gorm:"not null;uniqueIndex:idx_referral_order_affiliate" json:"order_id"`    // 订单ID
	Level            int        `gorm:"not null;default:0;index" json:"level"`                                // 0 直推，n 为上级层数
	TotalOrderAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_order_amount"`      // 订单金额
	CommissionAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`       // 佣金金额
	CommissionRate   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commission_rate"`         // 命中比例或固定金额
	CommissionType   string     `gorm:"type:varchar(20);not null" json:"commission_type"`                     // 计算方式
	Source           string     `gorm:"type:varchar(191);not null;default:''" json:"source"`                  // 佣金来源
	RefundedAmount   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"`         // 已退款订单金额
	DeductedAmount   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"deducted_amount"`         // 已扣回佣金
	Status           string     `gorm:"type:varchar(20);not null;index" json:"status"`                        // 状态
	ApprovedAt       *time.Time `json:"approved_at"`                                                          // 审核通过时间
	PaidAt           *time.Time `json:"paid_at"`                                                              // 结算时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                              // 更新时间
}

// TableName 指定表名
func (Referral) TableName() string {
	return "affiliate_referrals"
}

// RemainingCommission 剩余未扣回佣金
func (r Referral) RemainingCommission() Money {
	remaining := r.CommissionAmount.Sub(r.DeductedAmount)
	if remaining.IsNegative() {
		return ZeroMoney()
	}
	return remaining
}
