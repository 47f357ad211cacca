package repository

import (
	"time"

	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
)

// ClickRepository 推广点击数据访问接口
type ClickRepository interface {
	Create(click *models.AffiliateClick) error
	HasRecentClick(affiliateID uint, ip string, since time.Time) (bool, error)
	WindowStats(affiliateID uint, since time.Time) (ClickStats, error)
	CountSince(affiliateID uint, since time.Time) (int64, error)
}

// GormClickRepository GORM 实现
type GormClickRepository struct {
	db *gorm.DB
}

// NewClickRepository 创建推广点击仓库
func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// Create 记录点击
func (r *GormClickRepository) Create(click *models.AffiliateClick) error {
	return r.db.Create(click).Error
}

// HasRecentClick 判断同一账户同一 IP 自 since（含）起是否已有点击
func (r *GormClickRepository) HasRecentClick(affiliateID uint, ip string, since time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.AffiliateClick{}).
		Where("affiliate_id = ? AND ip_address = ? AND created_at >= ?", affiliateID, ip, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountSince 统计账户自 since 起的点击数
func (r *GormClickRepository) CountSince(affiliateID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.AffiliateClick{}).
		Where("affiliate_id = ? AND created_at >= ?", affiliateID, since).
		Count(&count).Error
	return count, err
}

// WindowStats 统计窗口内点击总数、独立 IP 数与单 IP 最大点击数
func (r *GormClickRepository) WindowStats(affiliateID uint, since time.Time) (ClickStats, error) {
	stats := ClickStats{WindowStarted: since}
	base := r.db.Model(&models.AffiliateClick{}).Where("affiliate_id = ? AND created_at >= ?", affiliateID, since)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalClicks).Error; err != nil {
		return stats, err
	}
	if stats.TotalClicks == 0 {
		return stats, nil
	}
	if err := base.Session(&gorm.Session{}).Distinct("ip_address").Count(&stats.UniqueIPs).Error; err != nil {
		return stats, err
	}
	var top struct {
		Clicks int64
	}
	if err := base.Session(&gorm.Session{}).
		Select("COUNT(*) as clicks").
		Group("ip_address").
		Order("clicks desc").
		Limit(1).
		Scan(&top).Error; err != nil {
		return stats, err
	}
	stats.TopIPClicks = top.Clicks
	return stats, nil
}
