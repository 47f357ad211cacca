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

// AffiliateRepository 推广账户数据访问接口
type AffiliateRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AffiliateRepository

	GetByID(id uint) (*models.AffiliateAccount, error)
	GetByIDForUpdate(id uint) (*models.AffiliateAccount, error)
	GetByUserID(userID uint) (*models.AffiliateAccount, error)
	GetBySlug(slug string) (*models.AffiliateAccount, error)
	GetByIDs(ids []uint) ([]models.AffiliateAccount, error)
	Create(account *models.AffiliateAccount) error
	UpdateStatus(id uint, status string, updatedAt time.Time) error
	UpdateTier(id uint, tierID uint, updatedAt time.Time) error
	UpdateRisk(id uint, score int, flags []string, checkedAt time.Time) error
	UpdatePlacement(id uint, parentID *uint, path string, level int, updatedAt time.Time) error
	IncrementBalance(id uint, delta models.Money, earnings models.Money, updatedAt time.Time) error
	ListChildren(parentIDs []uint) ([]models.AffiliateAccount, error)
	ListDescendants(path string) ([]models.AffiliateAccount, error)
	CountDescendants(path string) (int64, error)
	SumDescendantEarnings(path string) (models.Money, error)
	ListActiveIDs(afterID uint, limit int) ([]uint, error)
	List(filter AffiliateListFilter) ([]models.AffiliateAccount, int64, error)
}

// GormAffiliateRepository GORM 实现
type GormAffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广账户仓库
func NewAffiliateRepository(db *gorm.DB) *GormAffiliateRepository {
	return &GormAffiliateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAffiliateRepository) WithTx(tx *gorm.DB) AffiliateRepository {
	if tx == nil {
		return r
	}
	return &GormAffiliateRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAffiliateRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取推广账户
func (r *GormAffiliateRepository) GetByID(id uint) (*models.AffiliateAccount, error) {
	if id == 0 {
		return nil, nil
	}
	var account models.AffiliateAccount
	if err := r.db.Preload("Tier").First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate 加行锁获取推广账户
func (r *GormAffiliateRepository) GetByIDForUpdate(id uint) (*models.AffiliateAccount, error) {
	if id == 0 {
		return nil, nil
	}
	var account models.AffiliateAccount
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByUserID 按用户ID获取推广账户
func (r *GormAffiliateRepository) GetByUserID(userID uint) (*models.AffiliateAccount, error) {
	if userID == 0 {
		return nil, nil
	}
	var account models.AffiliateAccount
	if err := r.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetBySlug 按推广码获取推广账户
func (r *GormAffiliateRepository) GetBySlug(slug string) (*models.AffiliateAccount, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	var account models.AffiliateAccount
	if err := r.db.Where("slug = ?", slug).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDs 批量获取推广账户
func (r *GormAffiliateRepository) GetByIDs(ids []uint) ([]models.AffiliateAccount, error) {
	if len(ids) == 0 {
		return []models.AffiliateAccount{}, nil
	}
	var accounts []models.AffiliateAccount
	if err := r.db.Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// Create 创建推广账户
func (r *GormAffiliateRepository) Create(account *models.AffiliateAccount) error {
	return r.db.Create(account).Error
}

// UpdateStatus 更新推广账户状态
func (r *GormAffiliateRepository) UpdateStatus(id uint, status string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.AffiliateAccount{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": updatedAt,
	}).Error
}

// UpdateTier 更新推广账户等级
func (r *GormAffiliateRepository) UpdateTier(id uint, tierID uint, updatedAt time.Time) error {
	if id == 0 || tierID == 0 {
		return nil
	}
	return r.db.Model(&models.AffiliateAccount{}).Where("id = ?", id).Updates(map[string]interface{}{
		"tier_id":    tierID,
		"updated_at": updatedAt,
	}).Error
}

// UpdateRisk 更新风险评分与标记
func (r *GormAffiliateRepository) UpdateRisk(id uint, score int, flags []string, checkedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.AffiliateAccount{}).Where("id = ?", id).Updates(map[string]interface{}{
		"risk_score":      score,
		"risk_flags":      models.StringList(flags),
		"risk_checked_at": checkedAt,
		"updated_at":      checkedAt,
	}).Error
}

// UpdatePlacement 更新上级、物化路径与层级
func (r *GormAffiliateRepository) UpdatePlacement(id uint, parentID *uint, path string, level int, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.AffiliateAccount{}).Where("id = ?", id).Updates(map[string]interface{}{
		"parent_id":  parentID,
		"mlm_path":   path,
		"mlm_level":  level,
		"updated_at": updatedAt,
	}).Error
}

// IncrementBalance 原子增加余额与累计收益
func (r *GormAffiliateRepository) IncrementBalance(id uint, delta models.Money, earnings models.Money, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": updatedAt,
	}
	if !earnings.IsZero() {
		updates["total_earnings"] = gorm.Expr("total_earnings + ?", earnings)
	}
	result := r.db.Model(&models.AffiliateAccount{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListChildren 获取指定上级的直属下级
func (r *GormAffiliateRepository) ListChildren(parentIDs []uint) ([]models.AffiliateAccount, error) {
	if len(parentIDs) == 0 {
		return []models.AffiliateAccount{}, nil
	}
	var accounts []models.AffiliateAccount
	if err := r.db.Where("parent_id IN ?", parentIDs).Order("id asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListDescendants 按物化路径前缀获取全部下级
func (r *GormAffiliateRepository) ListDescendants(path string) ([]models.AffiliateAccount, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return []models.AffiliateAccount{}, nil
	}
	var accounts []models.AffiliateAccount
	if err := r.db.Where("mlm_path LIKE ? ESCAPE '\\'", pathPrefixPattern(path)).
		Order("mlm_level asc, id asc").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// CountDescendants 统计全部下级数量
func (r *GormAffiliateRepository) CountDescendants(path string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	var count int64
	if err := r.db.Model(&models.AffiliateAccount{}).
		Where("mlm_path LIKE ? ESCAPE '\\'", pathPrefixPattern(path)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumDescendantEarnings 汇总全部下级累计收益
func (r *GormAffiliateRepository) SumDescendantEarnings(path string) (models.Money, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return models.ZeroMoney(), nil
	}
	var row struct {
		Total models.Money
	}
	if err := r.db.Model(&models.AffiliateAccount{}).
		Select("COALESCE(SUM(total_earnings), 0) as total").
		Where("mlm_path LIKE ? ESCAPE '\\'", pathPrefixPattern(path)).
		Scan(&row).Error; err != nil {
		return models.ZeroMoney(), err
	}
	return row.Total, nil
}

// ListActiveIDs 游标方式分批获取 ACTIVE 账户ID
func (r *GormAffiliateRepository) ListActiveIDs(afterID uint, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 200
	}
	var ids []uint
	if err := r.db.Model(&models.AffiliateAccount{}).
		Where("status = ? AND id > ?", constants.AffiliateStatusActive, afterID).
		Order("id asc").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// List 分页查询推广账户
func (r *GormAffiliateRepository) List(filter AffiliateListFilter) ([]models.AffiliateAccount, int64, error) {
	query := r.db.Model(&models.AffiliateAccount{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TierID != 0 {
		query = query.Where("tier_id = ?", filter.TierID)
	}
	if filter.ParentID != 0 {
		query = query.Where("parent_id = ?", filter.ParentID)
	}
	if filter.MinRiskScore > 0 {
		query = query.Where("risk_score >= ?", filter.MinRiskScore)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		op := likeOperatorByDialect(dbDialectName(r.db))
		query = query.Where("name "+op+" ? OR slug "+op+" ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var accounts []models.AffiliateAccount
	if err := query.Preload("Tier").Order("id desc").Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}
