package models

import "time"

// Order 订单（佣金引擎只读取金额、客户与归因快照）
type Order struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                        // 主键
	OrderNo       string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_no"`       // 订单号
	UserID        uint       `gorm:"not null;index" json:"user_id"`                               // 下单用户
	Status        string     `gorm:"type:varchar(32);not null;index" json:"status"`               // 状态
	Currency      string     `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`      // 币种
	TotalAmount   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`   // 实付金额
	AffiliateSlug string     `gorm:"type:varchar(32);index" json:"affiliate_slug"`                // 归因推广码快照
	PaymentRef    string     `gorm:"type:varchar(191);index" json:"payment_ref"`                  // 支付渠道流水号
	PaidAt        *time.Time `gorm:"index" json:"paid_at"`                                        // 支付时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt     time.Time  `gorm:"index" json:"updated_at"`                                     // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单项
type OrderItem struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                      // 主键
	OrderID    uint      `gorm:"not null;index" json:"order_id"`                            // 订单ID
	ProductID  uint      `gorm:"not null;index" json:"product_id"`                          // 商品ID
	CategoryID uint      `gorm:"not null;default:0;index" json:"category_id"`               // 分类ID快照
	Quantity   int       `gorm:"not null" json:"quantity"`                                  // 数量
	UnitPrice  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`   // 单价
	TotalPrice Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`  // 小计
	Refunded   bool      `gorm:"not null;default:false" json:"refunded"`                    // 是否已退款
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
