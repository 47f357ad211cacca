package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEventRepository 外部事件幂等记录数据访问接口
type WebhookEventRepository interface {
	WithTx(tx *gorm.DB) WebhookEventRepository
	GetByKey(key string) (*models.WebhookEvent, error)
	CreateIfAbsent(event *models.WebhookEvent) (bool, error)
	MarkProcessed(key string, result models.JSON, processedAt time.Time) error
}

// GormWebhookEventRepository GORM 实现
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository 创建幂等记录仓库
func NewWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWebhookEventRepository) WithTx(tx *gorm.DB) WebhookEventRepository {
	if tx == nil {
		return r
	}
	return &GormWebhookEventRepository{db: tx}
}

// GetByKey 按幂等键获取记录
func (r *GormWebhookEventRepository) GetByKey(key string) (*models.WebhookEvent, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var event models.WebhookEvent
	if err := r.db.Where("idempotency_key = ?", key).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// CreateIfAbsent 幂等键不存在时写入，返回是否新建
func (r *GormWebhookEventRepository) CreateIfAbsent(event *models.WebhookEvent) (bool, error) {
	if event == nil {
		return false, nil
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkProcessed 标记事件处理完成并保存结果快照
func (r *GormWebhookEventRepository) MarkProcessed(key string, result models.JSON, processedAt time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return r.db.Model(&models.WebhookEvent{}).Where("idempotency_key = ?", key).Updates(map[string]interface{}{
		"processed":    true,
		"processed_at": processedAt,
		"result":       result,
	}).Error
}
