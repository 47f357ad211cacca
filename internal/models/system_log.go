package models

import "time"

// SystemLog 系统日志
type SystemLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`                         // 主键
	Level     string    `gorm:"type:varchar(16);not null;index" json:"level"` // 级别
	Source    string    `gorm:"type:varchar(64);not null;index" json:"source"` // 来源
	Message   string    `gorm:"type:varchar(1024);not null" json:"message"`   // 内容
	Context   JSON      `gorm:"type:json" json:"context"`                     // 上下文
	CreatedAt time.Time `gorm:"index" json:"created_at"`                      // 创建时间
}

// TableName 指定表名
func (SystemLog) TableName() string {
	return "system_logs"
}
