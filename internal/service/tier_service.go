package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/metrics"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"
)

const tierUpgradeBatchSize = 200

// TierInput 等级写入参数
type TierInput struct {
	Name           string       `json:"name" binding:"required,max=64"`
	MinSalesAmount models.Money `json:"min_sales_amount"`
	MinSalesCount  int64        `json:"min_sales_count" binding:"gte=0"`
	CommissionRate models.Money `json:"commission_rate"`
	CommissionType string       `json:"commission_type" binding:"required,oneof=PERCENTAGE FIXED"`
	SortOrder      int          `json:"sort_order"`
}

// TierUpgradeSummary 等级升级汇总
type TierUpgradeSummary struct {
	Checked  int `json:"checked"`
	Upgraded int `json:"upgraded"`
}

// TierService 推广等级服务
type TierService struct {
	tierRepo      repository.TierRepository
	affiliateRepo repository.AffiliateRepository
	referralRepo  repository.ReferralRepository
	metrics       *metrics.AffiliateMetrics
}

// NewTierService 创建推广等级服务
func NewTierService(
	tierRepo repository.TierRepository,
	affiliateRepo repository.AffiliateRepository,
	referralRepo repository.ReferralRepository,
	m *metrics.AffiliateMetrics,
) *TierService {
	return &TierService{
		tierRepo:      tierRepo,
		affiliateRepo: affiliateRepo,
		referralRepo:  referralRepo,
		metrics:       m,
	}
}

// ResolveTier 返回满足门槛的最高等级（tiers 需按门槛升序）
func ResolveTier(tiers []models.AffiliateTier, earnings models.Money, paidCount int64) *models.AffiliateTier {
	var best *models.AffiliateTier
	for i := range tiers {
		tier := tiers[i]
		if earnings.Cmp(tier.MinSalesAmount) < 0 || paidCount < tier.MinSalesCount {
			continue
		}
		if best == nil || tier.ThresholdAbove(*best) {
			best = &tiers[i]
		}
	}
	return best
}

// AutoUpgradeTiers 为全部 ACTIVE 账户计算可达等级，只升不降
func (s *TierService) AutoUpgradeTiers(ctx context.Context, now time.Time) (TierUpgradeSummary, error) {
	summary := TierUpgradeSummary{}
	tiers, err := s.tierRepo.ListAll()
	if err != nil {
		return summary, err
	}
	if len(tiers) == 0 {
		return summary, nil
	}
	tierByID := make(map[uint]models.AffiliateTier, len(tiers))
	for _, tier := range tiers {
		tierByID[tier.ID] = tier
	}

	var cursor uint
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		ids, err := s.affiliateRepo.ListActiveIDs(cursor, tierUpgradeBatchSize)
		if err != nil {
			return summary, err
		}
		if len(ids) == 0 {
			break
		}
		cursor = ids[len(ids)-1]
		accounts, err := s.affiliateRepo.GetByIDs(ids)
		if err != nil {
			return summary, err
		}
		for _, account := range accounts {
			summary.Checked++
			upgraded, err := s.upgradeAccount(account, tiers, tierByID, now)
			if err != nil {
				return summary, err
			}
			if upgraded {
				summary.Upgraded++
			}
		}
	}
	s.metrics.AddTierUpgrades(summary.Upgraded)
	return summary, nil
}

func (s *TierService) upgradeAccount(account models.AffiliateAccount, tiers []models.AffiliateTier, tierByID map[uint]models.AffiliateTier, now time.Time) (bool, error) {
	paidCount, err := s.referralRepo.CountPaidDirect(account.ID)
	if err != nil {
		return false, err
	}
	target := ResolveTier(tiers, account.TotalEarnings, paidCount)
	if target == nil {
		return false, nil
	}
	if account.TierID != nil {
		if *account.TierID == target.ID {
			return false, nil
		}
		if current, ok := tierByID[*account.TierID]; ok && !target.ThresholdAbove(current) {
			return false, nil
		}
	}
	if err := s.affiliateRepo.UpdateTier(account.ID, target.ID, now); err != nil {
		return false, err
	}
	logger.Infow("affiliate_tier_upgraded",
		"affiliate_id", account.ID,
		"tier_id", target.ID,
		"tier_name", target.Name,
		"total_earnings", account.TotalEarnings.String(),
		"paid_referrals", paidCount,
	)
	return true, nil
}

// ListTiers 获取全部等级
func (s *TierService) ListTiers() ([]models.AffiliateTier, error) {
	return s.tierRepo.ListAll()
}

// CreateTier 创建等级
func (s *TierService) CreateTier(input TierInput) (*models.AffiliateTier, error) {
	tier, err := s.buildTier(input, 0)
	if err != nil {
		return nil, err
	}
	if err := s.tierRepo.Create(tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// UpdateTier 更新等级
func (s *TierService) UpdateTier(id uint, input TierInput) (*models.AffiliateTier, error) {
	existing, err := s.tierRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	tier, err := s.buildTier(input, id)
	if err != nil {
		return nil, err
	}
	tier.ID = existing.ID
	tier.CreatedAt = existing.CreatedAt
	if err := s.tierRepo.Update(tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// DeleteTier 删除等级（仍有账户使用时拒绝）
func (s *TierService) DeleteTier(id uint) error {
	existing, err := s.tierRepo.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	count, err := s.tierRepo.CountAccounts(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrTierInUse
	}
	return s.tierRepo.Delete(id)
}

func (s *TierService) buildTier(input TierInput, selfID uint) (*models.AffiliateTier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: 名称不能为空", ErrTierInvalid)
	}
	commissionType := strings.ToUpper(strings.TrimSpace(input.CommissionType))
	if commissionType != constants.CommissionTypePercentage && commissionType != constants.CommissionTypeFixed {
		return nil, fmt.Errorf("%w: 佣金方式必须为 PERCENTAGE 或 FIXED", ErrTierInvalid)
	}
	if input.MinSalesAmount.IsNegative() || input.MinSalesCount < 0 {
		return nil, fmt.Errorf("%w: 门槛不能小于 0", ErrTierInvalid)
	}
	if input.CommissionRate.IsNegative() {
		return nil, fmt.Errorf("%w: 佣金不能小于 0", ErrTierInvalid)
	}
	if commissionType == constants.CommissionTypePercentage &&
		input.CommissionRate.Cmp(models.NewMoneyFromInt(affiliateCommissionRateMax)) > 0 {
		return nil, fmt.Errorf("%w: 百分比佣金不能超过 100", ErrTierInvalid)
	}
	existing, err := s.tierRepo.GetByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != selfID {
		return nil, ErrTierNameExists
	}
	return &models.AffiliateTier{
		Name:           name,
		MinSalesAmount: input.MinSalesAmount,
		MinSalesCount:  input.MinSalesCount,
		CommissionRate: input.CommissionRate,
		CommissionType: commissionType,
		SortOrder:      input.SortOrder,
	}, nil
}
