package repository

import (
	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
)

// SystemLogRepository 系统日志数据访问接口
type SystemLogRepository interface {
	Create(log *models.SystemLog) error
	List(filter SystemLogListFilter) ([]models.SystemLog, int64, error)
}

// GormSystemLogRepository GORM 实现
type GormSystemLogRepository struct {
	db *gorm.DB
}

// NewSystemLogRepository 创建系统日志仓库
func NewSystemLogRepository(db *gorm.DB) *GormSystemLogRepository {
	return &GormSystemLogRepository{db: db}
}

// Create 写入系统日志
func (r *GormSystemLogRepository) Create(log *models.SystemLog) error {
	return r.db.Create(log).Error
}

// List 分页查询系统日志
func (r *GormSystemLogRepository) List(filter SystemLogListFilter) ([]models.SystemLog, int64, error) {
	query := r.db.Model(&models.SystemLog{})
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = pageNewestFirst(query, filter.Page, filter.PageSize)
	var logs []models.SystemLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
