package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
)

// TierRepository 推广等级数据访问接口
type TierRepository interface {
	GetByID(id uint) (*models.AffiliateTier, error)
	GetByName(name string) (*models.AffiliateTier, error)
	ListAll() ([]models.AffiliateTier, error)
	Create(tier *models.AffiliateTier) error
	Update(tier *models.AffiliateTier) error
	Delete(id uint) error
	CountAccounts(tierID uint) (int64, error)
}

// GormTierRepository GORM 实现
type GormTierRepository struct {
	db *gorm.DB
}

// NewTierRepository 创建推广等级仓库
func NewTierRepository(db *gorm.DB) *GormTierRepository {
	return &GormTierRepository{db: db}
}

// GetByID 按ID获取等级
func (r *GormTierRepository) GetByID(id uint) (*models.AffiliateTier, error) {
	if id == 0 {
		return nil, nil
	}
	var tier models.AffiliateTier
	if err := r.db.First(&tier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tier, nil
}

// GetByName 按名称获取等级
func (r *GormTierRepository) GetByName(name string) (*models.AffiliateTier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var tier models.AffiliateTier
	if err := r.db.Where("name = ?", name).First(&tier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tier, nil
}

// ListAll 按门槛升序获取全部等级
func (r *GormTierRepository) ListAll() ([]models.AffiliateTier, error) {
	var tiers []models.AffiliateTier
	if err := r.db.
		Order("min_sales_amount asc, min_sales_count asc, sort_order asc, id asc").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// Create 创建等级
func (r *GormTierRepository) Create(tier *models.AffiliateTier) error {
	return r.db.Create(tier).Error
}

// Update 更新等级
func (r *GormTierRepository) Update(tier *models.AffiliateTier) error {
	return r.db.Save(tier).Error
}

// Delete 删除等级
func (r *GormTierRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.AffiliateTier{}, id).Error
}

// CountAccounts 统计处于该等级的推广账户数
func (r *GormTierRepository) CountAccounts(tierID uint) (int64, error) {
	if tierID == 0 {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.AffiliateAccount{}).Where("tier_id = ?", tierID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
