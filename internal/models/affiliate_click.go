package models

import "time"

// AffiliateClick 推广点击记录
type AffiliateClick struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                  // 主键
	AffiliateID uint      `gorm:"not null;index:idx_affiliate_click_ip" json:"affiliate_id"`             // 推广账户ID
	IPAddress   string    `gorm:"type:varchar(64);not null;index:idx_affiliate_click_ip" json:"ip_address"` // 客户端IP
	UserAgent   string    `gorm:"type:varchar(1024)" json:"user_agent"`                                  // 客户端UA
	Referrer    string    `gorm:"type:varchar(1024)" json:"referrer"`                                    // 来源地址
	Path        string    `gorm:"type:varchar(512)" json:"path"`                                         // 落地路径
	CreatedAt   time.Time `gorm:"index;not null" json:"created_at"`                                      // 点击时间
}

// TableName 指定表名
func (AffiliateClick) TableName() string {
	return "affiliate_clicks"
}
