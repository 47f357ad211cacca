package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) OrderRepository
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByIDForUpdate(id uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	CountPaidByUserBefore(userID uint, excludeOrderID uint, before time.Time) (int64, error)
	MarkPaid(id uint, paymentRef string, paidAt time.Time) (bool, error)
	UpdateStatus(id uint, status string, updatedAt time.Time) error
	MarkItemsRefunded(orderID uint, itemIDs []uint) error
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Transaction 执行事务
func (r *GormOrderRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// GetByID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDForUpdate 加行锁获取订单（含订单项）
func (r *GormOrderRepository) GetByIDForUpdate(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 按订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items").Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// CountPaidByUserBefore 统计用户在指定时间前的已支付订单数（用于判断新老客户）
func (r *GormOrderRepository) CountPaidByUserBefore(userID uint, excludeOrderID uint, before time.Time) (int64, error) {
	if userID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Order{}).
		Where("user_id = ? AND id <> ? AND paid_at IS NOT NULL AND paid_at < ?", userID, excludeOrderID, before).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkPaid 将待支付订单标记为已支付，返回是否发生状态变更
func (r *GormOrderRepository) MarkPaid(id uint, paymentRef string, paidAt time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, constants.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":      constants.OrderStatusPaid,
			"payment_ref": strings.TrimSpace(paymentRef),
			"paid_at":     paidAt,
			"updated_at":  paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatus 更新订单状态
func (r *GormOrderRepository) UpdateStatus(id uint, status string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": updatedAt,
	}).Error
}

// MarkItemsRefunded 标记订单项已退款
func (r *GormOrderRepository) MarkItemsRefunded(orderID uint, itemIDs []uint) error {
	if orderID == 0 || len(itemIDs) == 0 {
		return nil
	}
	return r.db.Model(&models.OrderItem{}).
		Where("order_id = ? AND id IN ?", orderID, itemIDs).
		Update("refunded", true).Error
}
