package models

import (
	"time"

	"gorm.io/gorm"
)

// AffiliateAccount 推广账户（MLM 节点）
type AffiliateAccount struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                                   // 主键
	UserID         uint           `gorm:"not null;uniqueIndex" json:"user_id"`                                    // 用户ID
	Name           string         `gorm:"type:varchar(120);not null;default:''" json:"name"`                      // 展示名称
	Slug           string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"slug"`                      // 推广码
	Balance        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`                   // 可用余额
	TotalEarnings  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"`            // 累计收益
	CommissionRate Money          `gorm:"type:decimal(20,2);not null;default:0" json:"commission_rate"`           // 个人佣金比例或固定金额
	CommissionType string         `gorm:"type:varchar(20);not null;default:'PERCENTAGE'" json:"commission_type"`  // 佣金计算方式
	TierID         *uint          `gorm:"index" json:"tier_id"`                                                   // 当前等级
	ParentID       *uint          `gorm:"index" json:"parent_id"`                                                 // 上级推广账户
	MLMPath        string         `gorm:"column:mlm_path;type:varchar(1024);not null;index" json:"mlm_path"`      // 物化路径
	MLMLevel       int            `gorm:"column:mlm_level;not null;default:0" json:"mlm_level"`                   // 层级深度
	Status         string         `gorm:"type:varchar(20);not null;index;default:'PENDING'" json:"status"`        // 状态
	RiskScore      int            `gorm:"not null;default:0;index" json:"risk_score"`                             // 风险评分
	RiskFlags      StringList     `gorm:"type:json" json:"risk_flags"`                                            // 风险标记
	RiskCheckedAt  *time.Time     `json:"risk_checked_at"`                                                        // 最近评分时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                                // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                                // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                                         // 软删除时间

	Tier     *AffiliateTier     `gorm:"foreignKey:TierID" json:"tier,omitempty"`       // 等级
	Children []AffiliateAccount `gorm:"foreignKey:ParentID" json:"children,omitempty"` // 直属下级
}

// TableName 指定表名
func (AffiliateAccount) TableName() string {
	return "affiliate_accounts"
}
