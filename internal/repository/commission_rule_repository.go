package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
)

// CommissionRuleRepository 佣金规则数据访问接口
type CommissionRuleRepository interface {
	GetByID(id uint) (*models.AffiliateCommissionRule, error)
	ListActiveAt(now time.Time) ([]models.AffiliateCommissionRule, error)
	List(filter CommissionRuleListFilter) ([]models.AffiliateCommissionRule, int64, error)
	Create(rule *models.AffiliateCommissionRule) error
	Update(rule *models.AffiliateCommissionRule) error
	Delete(id uint) error
}

// GormCommissionRuleRepository GORM 实现
type GormCommissionRuleRepository struct {
	db *gorm.DB
}

// NewCommissionRuleRepository 创建佣金规则仓库
func NewCommissionRuleRepository(db *gorm.DB) *GormCommissionRuleRepository {
	return &GormCommissionRuleRepository{db: db}
}

// GetByID 按ID获取规则
func (r *GormCommissionRuleRepository) GetByID(id uint) (*models.AffiliateCommissionRule, error) {
	if id == 0 {
		return nil, nil
	}
	var rule models.AffiliateCommissionRule
	if err := r.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// ListActiveAt 获取指定时间生效的规则，优先级降序，同优先级按ID升序
func (r *GormCommissionRuleRepository) ListActiveAt(now time.Time) ([]models.AffiliateCommissionRule, error) {
	var rules []models.AffiliateCommissionRule
	err := r.db.
		Where("is_active = ?", true).
		Where("start_date IS NULL OR start_date <= ?", now).
		Where("end_date IS NULL OR end_date >= ?", now).
		Order("priority desc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// List 分页查询规则
func (r *GormCommissionRuleRepository) List(filter CommissionRuleListFilter) ([]models.AffiliateCommissionRule, int64, error) {
	query := r.db.Model(&models.AffiliateCommissionRule{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		query = query.Where("name "+likeOperatorByDialect(dbDialectName(r.db))+" ?", "%"+keyword+"%")
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)
	var rules []models.AffiliateCommissionRule
	if err := query.Order("priority desc, id asc").Find(&rules).Error; err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// Create 创建规则
func (r *GormCommissionRuleRepository) Create(rule *models.AffiliateCommissionRule) error {
	return r.db.Create(rule).Error
}

// Update 更新规则
func (r *GormCommissionRuleRepository) Update(rule *models.AffiliateCommissionRule) error {
	return r.db.Save(rule).Error
}

// Delete 删除规则
func (r *GormCommissionRuleRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.AffiliateCommissionRule{}, id).Error
}
