package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/metrics"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"
)

// OrderContext 佣金计算所需的订单快照
type OrderContext struct {
	OrderTotal    models.Money `json:"order_total"`
	ItemCount     int          `json:"item_count"`
	IsNewCustomer bool         `json:"is_new_customer"`
	ProductIDs    []uint       `json:"product_ids"`
	CategoryIDs   []uint       `json:"category_ids"`
}

// CommissionResult 佣金计算结果
type CommissionResult struct {
	Amount models.Money `json:"amount"`
	Rate   models.Money `json:"rate"`
	Type   string       `json:"type"`
	Source string       `json:"source"`
}

func noCommission() *CommissionResult {
	return &CommissionResult{
		Amount: models.ZeroMoney(),
		Rate:   models.ZeroMoney(),
		Type:   constants.CommissionTypePercentage,
		Source: constants.CommissionSourceNone,
	}
}

// CommissionService 佣金计算服务
type CommissionService struct {
	affiliateRepo repository.AffiliateRepository
	ruleRepo      repository.CommissionRuleRepository
	metrics       *metrics.AffiliateMetrics
	now           func() time.Time
}

// NewCommissionService 创建佣金计算服务
func NewCommissionService(
	affiliateRepo repository.AffiliateRepository,
	ruleRepo repository.CommissionRuleRepository,
	m *metrics.AffiliateMetrics,
) *CommissionService {
	return &CommissionService{
		affiliateRepo: affiliateRepo,
		ruleRepo:      ruleRepo,
		metrics:       m,
		now:           time.Now,
	}
}

// CalculateCommission 计算推广账户在该订单上的直推佣金
// 优先级：命中的佣金规则 > 账户等级 > 个人比例
func (s *CommissionService) CalculateCommission(ctx context.Context, affiliateID uint, order OrderContext) (*CommissionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, err := s.affiliateRepo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	return s.calculateForAccount(account, order)
}

func (s *CommissionService) calculateForAccount(account *models.AffiliateAccount, order OrderContext) (*CommissionResult, error) {
	if order.OrderTotal.IsNegative() {
		return nil, fmt.Errorf("%w: 订单金额不能小于 0", ErrCommissionInput)
	}
	if account == nil || account.Status != constants.AffiliateStatusActive {
		return noCommission(), nil
	}

	rules, err := s.ruleRepo.ListActiveAt(s.now())
	if err != nil {
		return nil, err
	}
	var result *CommissionResult
	for _, rule := range rules {
		if !ruleMatches(rule, order) {
			continue
		}
		result = &CommissionResult{
			Amount: CalcAmount(rule.Action.Type, rule.Action.Amount, order.OrderTotal),
			Rate:   rule.Action.Amount,
			Type:   rule.Action.Type,
			Source: constants.CommissionSourceRulePrefix + rule.Name,
		}
		break
	}

	if result == nil && account.Tier != nil {
		tier := account.Tier
		result = &CommissionResult{
			Amount: CalcAmount(tier.CommissionType, tier.CommissionRate, order.OrderTotal),
			Rate:   tier.CommissionRate,
			Type:   tier.CommissionType,
			Source: constants.CommissionSourceTierPrefix + tier.Name,
		}
	}

	if result == nil {
		result = &CommissionResult{
			Amount: CalcAmount(account.CommissionType, account.CommissionRate, order.OrderTotal),
			Rate:   account.CommissionRate,
			Type:   account.CommissionType,
			Source: constants.CommissionSourcePersonalRate,
		}
	}
	s.metrics.ObserveCommission(result.Source)
	return result, nil
}

// BuildOrderContext 从订单构造计算快照（已退款订单项不计入）
func BuildOrderContext(order *models.Order, isNewCustomer bool) OrderContext {
	if order == nil {
		return OrderContext{OrderTotal: models.ZeroMoney()}
	}
	productIDs := make([]uint, 0, len(order.Items))
	categoryIDs := make([]uint, 0, len(order.Items))
	seenProducts := make(map[uint]struct{}, len(order.Items))
	seenCategories := make(map[uint]struct{}, len(order.Items))
	itemCount := 0
	refunded := models.ZeroMoney()
	for _, item := range order.Items {
		if item.Refunded {
			refunded = refunded.Add(item.TotalPrice)
			continue
		}
		itemCount += item.Quantity
		if _, ok := seenProducts[item.ProductID]; !ok && item.ProductID != 0 {
			seenProducts[item.ProductID] = struct{}{}
			productIDs = append(productIDs, item.ProductID)
		}
		if _, ok := seenCategories[item.CategoryID]; !ok && item.CategoryID != 0 {
			seenCategories[item.CategoryID] = struct{}{}
			categoryIDs = append(categoryIDs, item.CategoryID)
		}
	}
	total := order.TotalAmount.Sub(refunded)
	if total.IsNegative() {
		total = models.ZeroMoney()
	}
	return OrderContext{
		OrderTotal:    total,
		ItemCount:     itemCount,
		IsNewCustomer: isNewCustomer,
		ProductIDs:    productIDs,
		CategoryIDs:   categoryIDs,
	}
}
