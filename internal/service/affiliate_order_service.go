package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/metrics"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"

	"gorm.io/gorm"
)

// 订单处理跳过原因
const (
	SkipReasonAlreadyProcessed = "already_processed"
	SkipReasonOrderNotFound    = "order_not_found"
	SkipReasonOrderNotPaid     = "order_not_paid"
	SkipReasonNoAffiliate      = "no_affiliate"
	SkipReasonAffiliateBlocked = "affiliate_inactive"
	SkipReasonSelfPurchase     = "self_purchase"
	SkipReasonProgramDisabled  = "program_disabled"
	SkipReasonZeroCommission   = "zero_commission"
	SkipReasonNoReferrals      = "no_referrals"
	SkipReasonNothingRefunded  = "nothing_to_refund"
)

var errEventAlreadyProcessed = errors.New("event already processed")

// UplineBonus 上级分润明细
type UplineBonus struct {
	AffiliateID uint         `json:"affiliate_id"`
	Level       int          `json:"level"`
	Rate        models.Money `json:"rate"`
	Amount      models.Money `json:"amount"`
}

// OrderProcessResult 订单佣金处理结果
type OrderProcessResult struct {
	Success     bool          `json:"success"`
	Processed   bool          `json:"processed"`
	Reason      string        `json:"reason,omitempty"`
	OrderID     uint          `json:"order_id"`
	AffiliateID uint          `json:"affiliate_id,omitempty"`
	Commission  *models.Money `json:"commission,omitempty"`
	Source      string        `json:"source,omitempty"`
	Bonuses     []UplineBonus `json:"bonuses,omitempty"`
}

// RefundProcessResult 退款扣回处理结果
type RefundProcessResult struct {
	Success        bool          `json:"success"`
	Processed      bool          `json:"processed"`
	Reason         string        `json:"reason,omitempty"`
	OrderID        uint          `json:"order_id"`
	RefundedAmount *models.Money `json:"refunded_amount,omitempty"`
	Deduction      *models.Money `json:"deduction,omitempty"`
	OrderStatus    string        `json:"order_status,omitempty"`
}

// AffiliateOrderService 订单佣金入账与退款扣回
type AffiliateOrderService struct {
	orderRepo     repository.OrderRepository
	affiliateRepo repository.AffiliateRepository
	referralRepo  repository.ReferralRepository
	webhookRepo   repository.WebhookEventRepository
	commission    *CommissionService
	ledger        *LedgerService
	configSource  AffiliateConfigSource
	systemLogs    *SystemLogService
	metrics       *metrics.AffiliateMetrics
}

// NewAffiliateOrderService 创建订单佣金服务
func NewAffiliateOrderService(
	orderRepo repository.OrderRepository,
	affiliateRepo repository.AffiliateRepository,
	referralRepo repository.ReferralRepository,
	webhookRepo repository.WebhookEventRepository,
	commission *CommissionService,
	ledger *LedgerService,
	configSource AffiliateConfigSource,
	systemLogs *SystemLogService,
	m *metrics.AffiliateMetrics,
) *AffiliateOrderService {
	return &AffiliateOrderService{
		orderRepo:     orderRepo,
		affiliateRepo: affiliateRepo,
		referralRepo:  referralRepo,
		webhookRepo:   webhookRepo,
		commission:    commission,
		ledger:        ledger,
		configSource:  configSource,
		systemLogs:    systemLogs,
		metrics:       m,
	}
}

func (s *AffiliateOrderService) skipOrder(orderID uint, reason string) *OrderProcessResult {
	s.metrics.IncOrderOutcome(reason)
	logger.Debugw("affiliate_order_skipped", "order_id", orderID, "reason", reason)
	return &OrderProcessResult{Success: true, OrderID: orderID, Reason: reason}
}

// ProcessOrder 为已支付订单入账直推佣金与上级分润；重复调用不改变状态
func (s *AffiliateOrderService) ProcessOrder(ctx context.Context, orderID uint) (*OrderProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := IdempotencyKey(constants.IdempotencyScopeOrder, strconv.FormatUint(uint64(orderID), 10))
	event, err := s.webhookRepo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if event != nil && event.Processed {
		return s.skipOrder(orderID, SkipReasonAlreadyProcessed), nil
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return s.skipOrder(orderID, SkipReasonOrderNotFound), nil
	}
	if !commissionableOrderStatus(order.Status) {
		return s.skipOrder(orderID, SkipReasonOrderNotPaid), nil
	}
	cfg, err := s.configSource.GetAffiliateConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return s.skipOrder(orderID, SkipReasonProgramDisabled), nil
	}

	account, err := s.affiliateRepo.GetBySlug(strings.ToUpper(strings.TrimSpace(order.AffiliateSlug)))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return s.skipOrder(orderID, SkipReasonNoAffiliate), nil
	}
	if account.Status != constants.AffiliateStatusActive {
		return s.skipOrder(orderID, SkipReasonAffiliateBlocked), nil
	}
	if account.UserID == order.UserID {
		logger.Warnw("affiliate_self_purchase_skipped", "order_id", orderID, "affiliate_id", account.ID)
		return s.skipOrder(orderID, SkipReasonSelfPurchase), nil
	}

	paidAt := time.Now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	previousPaid, err := s.orderRepo.CountPaidByUserBefore(order.UserID, order.ID, paidAt)
	if err != nil {
		return nil, err
	}
	orderCtx := BuildOrderContext(order, previousPaid == 0)
	commission, err := s.commission.CalculateCommission(ctx, account.ID, orderCtx)
	if err != nil {
		return nil, err
	}
	if !commission.Amount.IsPositive() {
		return s.skipOrder(orderID, SkipReasonZeroCommission), nil
	}

	result := &OrderProcessResult{
		Success:     true,
		Processed:   true,
		OrderID:     order.ID,
		AffiliateID: account.ID,
		Source:      commission.Source,
		Bonuses:     []UplineBonus{},
	}
	err = s.affiliateRepo.Transaction(func(tx *gorm.DB) error {
		webhookRepo := s.webhookRepo.WithTx(tx)
		created, err := webhookRepo.CreateIfAbsent(&models.WebhookEvent{
			IdempotencyKey: key,
			Scope:          constants.IdempotencyScopeOrder,
			ExternalID:     strconv.FormatUint(uint64(order.ID), 10),
		})
		if err != nil {
			return err
		}
		if !created {
			return errEventAlreadyProcessed
		}

		now := time.Now()
		if err := s.recordReferralTx(tx, order, orderCtx.OrderTotal, account.ID, 0, commission.Amount, commission.Rate, commission.Type, commission.Source, cfg, now); err != nil {
			return err
		}
		if _, err := s.ledger.PostTx(tx, LedgerPostInput{
			AffiliateID: account.ID,
			Type:        constants.LedgerTypeCommission,
			Amount:      commission.Amount,
			Description: fmt.Sprintf("订单 %s 推广佣金", order.OrderNo),
			ReferenceID: orderLedgerReference(order.ID, account.ID),
		}); err != nil {
			return err
		}

		if cfg.MLMEnabled && len(cfg.MLMLevelRates) > 0 {
			bonuses, err := s.propagateUplineTx(tx, order, orderCtx.OrderTotal, account, commission.Amount, cfg, now)
			if err != nil {
				return err
			}
			result.Bonuses = bonuses
		}

		amount := commission.Amount
		result.Commission = &amount
		return webhookRepo.MarkProcessed(key, models.JSON{
			"affiliate_id": account.ID,
			"commission":   commission.Amount.String(),
			"source":       commission.Source,
			"bonuses":      len(result.Bonuses),
		}, now)
	})
	if errors.Is(err, errEventAlreadyProcessed) {
		return s.skipOrder(orderID, SkipReasonAlreadyProcessed), nil
	}
	if err != nil {
		s.metrics.IncOrderOutcome("error")
		s.systemLogs.Record(ctx, constants.SystemLogLevelError, "affiliate_order", "订单佣金入账失败", models.JSON{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.metrics.IncOrderOutcome("processed")
	s.metrics.AddCommissionAmount("0", commission.Amount.ToNumber())
	for _, bonus := range result.Bonuses {
		s.metrics.AddCommissionAmount(strconv.Itoa(bonus.Level), bonus.Amount.ToNumber())
	}
	logger.Infow("affiliate_order_processed",
		"order_id", order.ID,
		"affiliate_id", account.ID,
		"commission", commission.Amount.String(),
		"source", commission.Source,
		"bonuses", len(result.Bonuses),
	)
	return result, nil
}

func (s *AffiliateOrderService) recordReferralTx(
	tx *gorm.DB,
	order *models.Order,
	base models.Money,
	affiliateID uint,
	level int,
	amount, rate models.Money,
	commissionType, source string,
	cfg AffiliateConfig,
	now time.Time,
) error {
	referral := &models.Referral{
		AffiliateID:      affiliateID,
		OrderID:          order.ID,
		Level:            level,
		TotalOrderAmount: base,
		CommissionAmount: amount,
		CommissionRate:   rate,
		CommissionType:   commissionType,
		Source:           source,
		RefundedAmount:   models.ZeroMoney(),
		DeductedAmount:   models.ZeroMoney(),
		Status:           constants.ReferralStatusPending,
	}
	if cfg.HoldingDays == 0 {
		referral.Status = constants.ReferralStatusApproved
		referral.ApprovedAt = &now
	}
	return s.referralRepo.WithTx(tx).Create(referral)
}

// propagateUplineTx 按 mlm_level_rates 将直推佣金的一定比例分给上级
func (s *AffiliateOrderService) propagateUplineTx(
	tx *gorm.DB,
	order *models.Order,
	base models.Money,
	account *models.AffiliateAccount,
	directCommission models.Money,
	cfg AffiliateConfig,
	now time.Time,
) ([]UplineBonus, error) {
	upline, err := listUpline(s.affiliateRepo.WithTx(tx), account.ID, len(cfg.MLMLevelRates))
	if err != nil {
		return nil, err
	}
	bonuses := make([]UplineBonus, 0, len(upline))
	for i, sponsor := range upline {
		level := i + 1
		rate := cfg.MLMLevelRates[i]
		if sponsor.Status != constants.AffiliateStatusActive || sponsor.UserID == order.UserID {
			continue
		}
		amount := models.Percent(directCommission, rate)
		if !amount.IsPositive() {
			continue
		}
		source := constants.CommissionSourceUplinePrefix + strconv.Itoa(level)
		if err := s.recordReferralTx(tx, order, base, sponsor.ID, level, amount, rate, constants.CommissionTypePercentage, source, cfg, now); err != nil {
			return nil, err
		}
		if _, err := s.ledger.PostTx(tx, LedgerPostInput{
			AffiliateID: sponsor.ID,
			Type:        constants.LedgerTypeBonus,
			Amount:      amount,
			Description: fmt.Sprintf("订单 %s 第 %d 级分润", order.OrderNo, level),
			ReferenceID: orderLedgerReference(order.ID, sponsor.ID),
		}); err != nil {
			return nil, err
		}
		bonuses = append(bonuses, UplineBonus{AffiliateID: sponsor.ID, Level: level, Rate: rate, Amount: amount})
	}
	return bonuses, nil
}

func orderLedgerReference(orderID, affiliateID uint) string {
	return fmt.Sprintf("order:%d:aff:%d", orderID, affiliateID)
}

func (s *AffiliateOrderService) skipRefund(orderID uint, reason string) *RefundProcessResult {
	s.metrics.IncRefundOutcome(reason)
	logger.Debugw("affiliate_refund_skipped", "order_id", orderID, "reason", reason)
	return &RefundProcessResult{Success: true, OrderID: orderID, Reason: reason}
}

// ProcessRefund 按退款金额占订单金额的比例扣回佣金（itemIDs 为空表示整单）
func (s *AffiliateOrderService) ProcessRefund(ctx context.Context, orderID uint, itemIDs []uint) (*RefundProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return s.skipRefund(orderID, SkipReasonOrderNotFound), nil
	}
	if !refundableOrderStatus(order.Status) {
		return s.skipRefund(orderID, SkipReasonOrderNotPaid), nil
	}

	selected, err := selectRefundItems(order, itemIDs)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return s.skipRefund(orderID, SkipReasonNothingRefunded), nil
	}
	ids := make([]uint, 0, len(selected))
	refunded := models.ZeroMoney()
	for _, item := range selected {
		ids = append(ids, item.ID)
		refunded = refunded.Add(item.TotalPrice)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	externalID := refundExternalID(order.ID, ids)
	key := IdempotencyKey(constants.IdempotencyScopeRefund, externalID)

	event, err := s.webhookRepo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if event != nil && event.Processed {
		return s.skipRefund(orderID, SkipReasonAlreadyProcessed), nil
	}

	result := &RefundProcessResult{Success: true, Processed: true, OrderID: order.ID}
	totalDeduction := models.ZeroMoney()
	err = s.affiliateRepo.Transaction(func(tx *gorm.DB) error {
		webhookRepo := s.webhookRepo.WithTx(tx)
		created, err := webhookRepo.CreateIfAbsent(&models.WebhookEvent{
			IdempotencyKey: key,
			Scope:          constants.IdempotencyScopeRefund,
			ExternalID:     externalID,
		})
		if err != nil {
			return err
		}
		if !created {
			return errEventAlreadyProcessed
		}

		now := time.Now()
		referralRepo := s.referralRepo.WithTx(tx)
		referrals, err := referralRepo.ListByOrderForUpdate(order.ID)
		if err != nil {
			return err
		}
		for _, referral := range referrals {
			if referral.Status == constants.ReferralStatusRejected {
				continue
			}
			base := referral.TotalOrderAmount
			if !base.IsPositive() {
				base = order.TotalAmount
			}
			remaining := referral.RemainingCommission()
			deduction := models.MinMoney(referral.CommissionAmount.Scale(models.Ratio(refunded, base)), remaining)
			newRefunded := referral.RefundedAmount.Add(refunded)
			newDeducted := referral.DeductedAmount
			if deduction.IsPositive() {
				if _, err := s.ledger.PostTx(tx, LedgerPostInput{
					AffiliateID:   referral.AffiliateID,
					Type:          constants.LedgerTypeRefundDeduction,
					Amount:        deduction.Neg(),
					Description:   fmt.Sprintf("订单 %s 退款扣回佣金", order.OrderNo),
					ReferenceID:   fmt.Sprintf("refund:%s:aff:%d", key[:16], referral.AffiliateID),
					AllowNegative: true,
				}); err != nil {
					return err
				}
				newDeducted = newDeducted.Add(deduction)
				totalDeduction = totalDeduction.Add(deduction)
			}
			status := referral.Status
			if referral.CommissionAmount.Sub(newDeducted).Cmp(models.ZeroMoney()) <= 0 {
				status = constants.ReferralStatusRejected
			}
			if err := referralRepo.UpdateDeduction(referral.ID, newRefunded, newDeducted, status, now); err != nil {
				return err
			}
		}

		orderRepo := s.orderRepo.WithTx(tx)
		if err := orderRepo.MarkItemsRefunded(order.ID, ids); err != nil {
			return err
		}
		nextStatus := constants.OrderStatusPartiallyRefunded
		if allItemsRefunded(order, ids) {
			nextStatus = constants.OrderStatusRefunded
		}
		if err := orderRepo.UpdateStatus(order.ID, nextStatus, now); err != nil {
			return err
		}
		result.OrderStatus = nextStatus
		return webhookRepo.MarkProcessed(key, models.JSON{
			"refunded":  refunded.String(),
			"deduction": totalDeduction.String(),
			"referrals": len(referrals),
		}, now)
	})
	if errors.Is(err, errEventAlreadyProcessed) {
		return s.skipRefund(orderID, SkipReasonAlreadyProcessed), nil
	}
	if err != nil {
		s.metrics.IncRefundOutcome("error")
		s.systemLogs.Record(ctx, constants.SystemLogLevelError, "affiliate_refund", "退款佣金扣回失败", models.JSON{
			"order_id": orderID,
			"error":    err.Error(),
		})
		return nil, err
	}

	result.RefundedAmount = &refunded
	result.Deduction = &totalDeduction
	s.metrics.IncRefundOutcome("processed")
	logger.Infow("affiliate_refund_processed",
		"order_id", order.ID,
		"items", ids,
		"refunded", refunded.String(),
		"deduction", totalDeduction.String(),
		"order_status", result.OrderStatus,
	)
	return result, nil
}

// selectRefundItems 过滤已退款订单项；指定了不属于该订单的项时报错
// commissionableOrderStatus 部分退款的订单仍按剩余订单项计佣
func commissionableOrderStatus(status string) bool {
	return status == constants.OrderStatusPaid || status == constants.OrderStatusPartiallyRefunded
}

func refundableOrderStatus(status string) bool {
	switch status {
	case constants.OrderStatusPaid, constants.OrderStatusPartiallyRefunded, constants.OrderStatusRefunded:
		return true
	}
	return false
}

func selectRefundItems(order *models.Order, itemIDs []uint) ([]models.OrderItem, error) {
	if len(itemIDs) == 0 {
		selected := make([]models.OrderItem, 0, len(order.Items))
		for _, item := range order.Items {
			if !item.Refunded {
				selected = append(selected, item)
			}
		}
		return selected, nil
	}
	byID := make(map[uint]models.OrderItem, len(order.Items))
	for _, item := range order.Items {
		byID[item.ID] = item
	}
	selected := make([]models.OrderItem, 0, len(itemIDs))
	seen := make(map[uint]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		item, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: 订单项 %d 不属于订单 %d", ErrRefundItemsInvalid, id, order.ID)
		}
		if _, dup := seen[id]; dup || item.Refunded {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, item)
	}
	return selected, nil
}

func allItemsRefunded(order *models.Order, justRefunded []uint) bool {
	refunded := make(map[uint]struct{}, len(justRefunded))
	for _, id := range justRefunded {
		refunded[id] = struct{}{}
	}
	for _, item := range order.Items {
		if item.Refunded {
			continue
		}
		if _, ok := refunded[item.ID]; !ok {
			return false
		}
	}
	return true
}

func refundExternalID(orderID uint, sortedItemIDs []uint) string {
	parts := make([]string, 0, len(sortedItemIDs))
	for _, id := range sortedItemIDs {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return fmt.Sprintf("%d:%s", orderID, strings.Join(parts, ","))
}
