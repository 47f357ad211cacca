package models

import "time"

// AffiliateTier 推广等级
type AffiliateTier struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                  // 主键
	Name           string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"name"`                     // 等级名称
	MinSalesAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"min_sales_amount"`         // 最低累计收益
	MinSalesCount  int64     `gorm:"not null;default:0" json:"min_sales_count"`                             // 最低已结算推荐数
	CommissionRate Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commission_rate"`          // 佣金比例或固定金额
	CommissionType string    `gorm:"type:varchar(20);not null;default:'PERCENTAGE'" json:"commission_type"` // 佣金计算方式
	SortOrder      int       `gorm:"not null;default:0;index" json:"sort_order"`                            // 排序
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt      time.Time `gorm:"index" json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (AffiliateTier) TableName() string {
	return "affiliate_tiers"
}

// ThresholdAbove 判断当前等级门槛是否高于另一个等级
func (t AffiliateTier) ThresholdAbove(other AffiliateTier) bool {
	if cmp := t.MinSalesAmount.Cmp(other.MinSalesAmount); cmp != 0 {
		return cmp > 0
	}
	return t.MinSalesCount > other.MinSalesCount
}
