package models

import (
	"time"

	"gorm.io/gorm"
)

// Category 商品分类
type Category struct {
	ID        uint      `gorm:"primarykey" json:"id"`                  // 主键
	Name      string    `gorm:"type:varchar(120);not null" json:"name"` // 名称
	CreatedAt time.Time `gorm:"index" json:"created_at"`               // 创建时间
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}

// Product 商品（佣金规则按商品/分类匹配，支付回调扣减库存）
type Product struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                 // 主键
	CategoryID uint           `gorm:"not null;index" json:"category_id"`                    // 分类ID
	Name       string         `gorm:"type:varchar(191);not null" json:"name"`               // 名称
	Price      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`   // 价格
	Stock      int            `gorm:"not null;default:0" json:"stock"`                      // 库存（-1 表示不限）
	IsActive   bool           `gorm:"not null;default:true" json:"is_active"`               // 是否上架
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                              // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                       // 软删除时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
