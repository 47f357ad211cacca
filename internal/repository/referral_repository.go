package repository

import (
	"errors"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralRepository 推荐订单数据访问接口
type ReferralRepository interface {
	WithTx(tx *gorm.DB) ReferralRepository
	Create(referral *models.Referral) error
	GetByOrderAndAffiliate(orderID, affiliateID uint) (*models.Referral, error)
	ListByOrder(orderID uint) ([]models.Referral, error)
	ListByOrderForUpdate(orderID uint) ([]models.Referral, error)
	UpdateDeduction(id uint, refunded, deducted models.Money, status string, updatedAt time.Time) error
	CountPaidDirect(affiliateID uint) (int64, error)
	CountSince(affiliateID uint, since time.Time) (int64, error)
	ApproveDue(createdBefore time.Time, approvedAt time.Time) (int64, error)
	ListApprovedForUpdate(affiliateID uint) ([]models.Referral, error)
	ListAffiliateIDsWithApproved() ([]uint, error)
	MarkPaid(ids []uint, paidAt time.Time) error
	List(filter ReferralListFilter) ([]models.Referral, int64, error)
}

// GormReferralRepository GORM 实现
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推荐订单仓库
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferralRepository) WithTx(tx *gorm.DB) ReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// Create 创建推荐订单
func (r *GormReferralRepository) Create(referral *models.Referral) error {
	return r.db.Create(referral).Error
}

// GetByOrderAndAffiliate 按订单与推广账户获取推荐记录
func (r *GormReferralRepository) GetByOrderAndAffiliate(orderID, affiliateID uint) (*models.Referral, error) {
	if orderID == 0 || affiliateID == 0 {
		return nil, nil
	}
	var referral models.Referral
	if err := r.db.Where("order_id = ? AND affiliate_id = ?", orderID, affiliateID).First(&referral).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// ListByOrder 获取订单的全部推荐记录（直推在前）
func (r *GormReferralRepository) ListByOrder(orderID uint) ([]models.Referral, error) {
	if orderID == 0 {
		return []models.Referral{}, nil
	}
	var referrals []models.Referral
	if err := r.db.Where("order_id = ?", orderID).Order("level asc, id asc").Find(&referrals).Error; err != nil {
		return nil, err
	}
	return referrals, nil
}

// ListByOrderForUpdate 加行锁获取订单的全部推荐记录
func (r *GormReferralRepository) ListByOrderForUpdate(orderID uint) ([]models.Referral, error) {
	if orderID == 0 {
		return []models.Referral{}, nil
	}
	var referrals []models.Referral
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		Order("level asc, id asc").
		Find(&referrals).Error; err != nil {
		return nil, err
	}
	return referrals, nil
}

// UpdateDeduction 更新退款扣回信息
func (r *GormReferralRepository) UpdateDeduction(id uint, refunded, deducted models.Money, status string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Referral{}).Where("id = ?", id).Updates(map[string]interface{}{
		"refunded_amount": refunded,
		"deducted_amount": deducted,
		"status":          status,
		"updated_at":      updatedAt,
	}).Error
}

// CountPaidDirect 统计已结算的直推订单数
func (r *GormReferralRepository) CountPaidDirect(affiliateID uint) (int64, error) {
	if affiliateID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Referral{}).
		Where("affiliate_id = ? AND level = 0 AND status = ?", affiliateID, constants.ReferralStatusPaid).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountSince 统计窗口内产生的直推订单数（转化数）
func (r *GormReferralRepository) CountSince(affiliateID uint, since time.Time) (int64, error) {
	if affiliateID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Referral{}).
		Where("affiliate_id = ? AND level = 0 AND created_at >= ?", affiliateID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ApproveDue 将超过冻结期的待审核推荐转为已审核
func (r *GormReferralRepository) ApproveDue(createdBefore time.Time, approvedAt time.Time) (int64, error) {
	result := r.db.Model(&models.Referral{}).
		Where("status = ? AND created_at <= ?", constants.ReferralStatusPending, createdBefore).
		Updates(map[string]interface{}{
			"status":      constants.ReferralStatusApproved,
			"approved_at": approvedAt,
			"updated_at":  approvedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListApprovedForUpdate 加行锁获取账户全部已审核推荐
func (r *GormReferralRepository) ListApprovedForUpdate(affiliateID uint) ([]models.Referral, error) {
	if affiliateID == 0 {
		return []models.Referral{}, nil
	}
	var referrals []models.Referral
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("affiliate_id = ? AND status = ?", affiliateID, constants.ReferralStatusApproved).
		Order("id asc").
		Find(&referrals).Error; err != nil {
		return nil, err
	}
	return referrals, nil
}

// ListAffiliateIDsWithApproved 获取存在已审核推荐的账户ID
func (r *GormReferralRepository) ListAffiliateIDsWithApproved() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.Referral{}).
		Where("status = ?", constants.ReferralStatusApproved).
		Distinct("affiliate_id").
		Order("affiliate_id asc").
		Pluck("affiliate_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkPaid 批量标记为已结算
func (r *GormReferralRepository) MarkPaid(ids []uint, paidAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.Referral{}).
		Where("id IN ? AND status = ?", ids, constants.ReferralStatusApproved).
		Updates(map[string]interface{}{
			"status":     constants.ReferralStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		}).Error
}

// List 分页查询推荐订单
func (r *GormReferralRepository) List(filter ReferralListFilter) ([]models.Referral, int64, error) {
	query := r.db.Model(&models.Referral{})
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Level != nil {
		query = query.Where("level = ?", *filter.Level)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = pageNewestFirst(query, filter.Page, filter.PageSize)
	var referrals []models.Referral
	if err := query.Find(&referrals).Error; err != nil {
		return nil, 0, err
	}
	return referrals, total, nil
}
