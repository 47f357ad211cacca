package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
)

// LedgerRepository 推广流水数据访问接口（只追加，不提供更新与删除）
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Create(entry *models.AffiliateLedger) error
	GetByReferenceID(referenceID string) (*models.AffiliateLedger, error)
	List(filter LedgerListFilter) ([]models.AffiliateLedger, int64, error)
	ListChronological(affiliateID uint) ([]models.AffiliateLedger, error)
}

// GormLedgerRepository GORM 实现
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建推广流水仓库
func NewLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &GormLedgerRepository{db: tx}
}

// Create 追加流水
func (r *GormLedgerRepository) Create(entry *models.AffiliateLedger) error {
	return r.db.Create(entry).Error
}

// GetByReferenceID 按幂等参考号获取流水
func (r *GormLedgerRepository) GetByReferenceID(referenceID string) (*models.AffiliateLedger, error) {
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return nil, nil
	}
	var entry models.AffiliateLedger
	if err := r.db.Where("reference_id = ?", referenceID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// List 分页查询流水，按创建时间倒序
func (r *GormLedgerRepository) List(filter LedgerListFilter) ([]models.AffiliateLedger, int64, error) {
	query := r.db.Model(&models.AffiliateLedger{})
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
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

	var entries []models.AffiliateLedger
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListChronological 按写入顺序获取账户全部流水（用于对账回放）
func (r *GormLedgerRepository) ListChronological(affiliateID uint) ([]models.AffiliateLedger, error) {
	if affiliateID == 0 {
		return []models.AffiliateLedger{}, nil
	}
	var entries []models.AffiliateLedger
	if err := r.db.Where("affiliate_id = ?", affiliateID).
		Order("created_at asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
