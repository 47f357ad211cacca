package models

import "time"

// WebhookEvent 外部事件幂等记录
type WebhookEvent struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                           // 主键
	IdempotencyKey string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"idempotency_key"`  // 幂等键
	Scope          string     `gorm:"type:varchar(64);not null;index" json:"scope"`                  // 作用域
	ExternalID     string     `gorm:"type:varchar(191);not null" json:"external_id"`                 // 外部事件ID
	Processed      bool       `gorm:"not null;default:false" json:"processed"`                       // 是否已处理
	ProcessedAt    *time.Time `json:"processed_at"`                                                  // 处理时间
	Result         JSON       `gorm:"type:json" json:"result"`                                       // 处理结果快照
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
}

// TableName 指定表名
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
