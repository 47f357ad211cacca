package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

// LedgerPostInput 账本记账参数（在调用方事务内执行）
type LedgerPostInput struct {
	AffiliateID   uint
	Type          string
	Amount        models.Money
	Description   string
	ReferenceID   string
	AllowNegative bool
}

// LedgerAdjustmentInput 管理员调账参数
type LedgerAdjustmentInput struct {
	AffiliateID uint         `json:"-"`
	Amount      models.Money `json:"amount"`
	Note        string       `json:"note"`
	Type        string       `json:"type"`
}

// ReconcileReport 余额对账结果
type ReconcileReport struct {
	AffiliateID uint         `json:"affiliate_id"`
	Entries     int          `json:"entries"`
	Replayed    models.Money `json:"replayed"`
	Stored      models.Money `json:"stored"`
	Consistent  bool         `json:"consistent"`
	BrokenAt    *uint        `json:"broken_at,omitempty"`
}

// PayoutResult 结算结果
type PayoutResult struct {
	AffiliateID   uint                    `json:"affiliate_id"`
	Amount        models.Money            `json:"amount"`
	ReferralCount int                     `json:"referral_count"`
	Entry         *models.AffiliateLedger `json:"entry"`
}

// PayoutSummary 自动结算汇总
type PayoutSummary struct {
	Attempted int          `json:"attempted"`
	Paid      int          `json:"paid"`
	Skipped   int          `json:"skipped"`
	Total     models.Money `json:"total"`
}

// LedgerService 推广账本服务
type LedgerService struct {
	affiliateRepo repository.AffiliateRepository
	ledgerRepo    repository.LedgerRepository
	referralRepo  repository.ReferralRepository
	configSource  AffiliateConfigSource
	metrics       *metrics.AffiliateMetrics
}

// NewLedgerService 创建推广账本服务
func NewLedgerService(
	affiliateRepo repository.AffiliateRepository,
	ledgerRepo repository.LedgerRepository,
	referralRepo repository.ReferralRepository,
	configSource AffiliateConfigSource,
	m *metrics.AffiliateMetrics,
) *LedgerService {
	return &LedgerService{
		affiliateRepo: affiliateRepo,
		ledgerRepo:    ledgerRepo,
		referralRepo:  referralRepo,
		configSource:  configSource,
		metrics:       m,
	}
}

func isLedgerType(value string) bool {
	switch value {
	case constants.LedgerTypeCommission,
		constants.LedgerTypeBonus,
		constants.LedgerTypePayout,
		constants.LedgerTypeRefundDeduction,
		constants.LedgerTypeAdjustment:
		return true
	}
	return false
}

// countsTowardEarnings 佣金、奖励与退款扣回计入累计收益
func countsTowardEarnings(entryType string) bool {
	switch entryType {
	case constants.LedgerTypeCommission, constants.LedgerTypeBonus, constants.LedgerTypeRefundDeduction:
		return true
	}
	return false
}

// PostTx 锁定账户行、原子增减余额并追加一条流水
func (s *LedgerService) PostTx(tx *gorm.DB, input LedgerPostInput) (*models.AffiliateLedger, error) {
	if !isLedgerType(input.Type) {
		return nil, ErrLedgerTypeInvalid
	}
	if input.Amount.IsZero() {
		return nil, ErrLedgerAmountInvalid
	}
	ledgerRepo := s.ledgerRepo.WithTx(tx)
	affiliateRepo := s.affiliateRepo.WithTx(tx)

	reference := strings.TrimSpace(input.ReferenceID)
	if reference != "" {
		existing, err := ledgerRepo.GetByReferenceID(reference)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	account, err := affiliateRepo.GetByIDForUpdate(input.AffiliateID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}

	before := account.Balance
	after := before.Add(input.Amount)
	if after.IsNegative() && !input.AllowNegative {
		return nil, ErrLedgerInsufficientBalance
	}
	earnings := models.ZeroMoney()
	if countsTowardEarnings(input.Type) {
		earnings = input.Amount
	}

	now := time.Now()
	if err := affiliateRepo.IncrementBalance(account.ID, input.Amount, earnings, now); err != nil {
		return nil, err
	}
	entry := &models.AffiliateLedger{
		AffiliateID:   account.ID,
		Type:          input.Type,
		Amount:        input.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   strings.TrimSpace(input.Description),
		CreatedAt:     now,
	}
	if reference != "" {
		entry.ReferenceID = &reference
	}
	if err := ledgerRepo.Create(entry); err != nil {
		return nil, err
	}
	s.metrics.IncLedgerEntry(input.Type)
	return entry, nil
}

// CreateAdjustment 管理员调账（ADJUSTMENT 或 BONUS），不允许余额为负
func (s *LedgerService) CreateAdjustment(ctx context.Context, input LedgerAdjustmentInput) (*models.AffiliateLedger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entryType := strings.ToUpper(strings.TrimSpace(input.Type))
	if entryType == "" {
		entryType = constants.LedgerTypeAdjustment
	}
	if entryType != constants.LedgerTypeAdjustment && entryType != constants.LedgerTypeBonus {
		return nil, fmt.Errorf("%w: 仅支持 ADJUSTMENT 或 BONUS", ErrLedgerTypeInvalid)
	}
	if input.Amount.IsZero() {
		return nil, ErrLedgerAmountInvalid
	}
	if entryType == constants.LedgerTypeBonus && input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: 奖励金额必须大于 0", ErrLedgerAmountInvalid)
	}
	note := strings.TrimSpace(input.Note)
	if note == "" {
		note = "管理员调账"
	}

	var entry *models.AffiliateLedger
	err := s.affiliateRepo.Transaction(func(tx *gorm.DB) error {
		posted, err := s.PostTx(tx, LedgerPostInput{
			AffiliateID: input.AffiliateID,
			Type:        entryType,
			Amount:      input.Amount,
			Description: note,
		})
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("affiliate_ledger_adjusted",
		"affiliate_id", input.AffiliateID,
		"type", entryType,
		"amount", input.Amount.String(),
		"balance_after", entry.BalanceAfter.String(),
	)
	return entry, nil
}

// ListLedger 分页查询流水
func (s *LedgerService) ListLedger(filter repository.LedgerListFilter) ([]models.AffiliateLedger, int64, error) {
	return s.ledgerRepo.List(filter)
}

// ReconcileBalance 从 0 开始按时间重放流水，校验链路与账户余额
func (s *LedgerService) ReconcileBalance(ctx context.Context, affiliateID uint) (*ReconcileReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, err := s.affiliateRepo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}
	entries, err := s.ledgerRepo.ListChronological(affiliateID)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		AffiliateID: affiliateID,
		Entries:     len(entries),
		Stored:      account.Balance,
	}
	running := models.ZeroMoney()
	for _, entry := range entries {
		if report.BrokenAt == nil &&
			(entry.BalanceBefore.Cmp(running) != 0 || entry.BalanceAfter.Cmp(running.Add(entry.Amount)) != 0) {
			id := entry.ID
			report.BrokenAt = &id
		}
		running = running.Add(entry.Amount)
	}
	report.Replayed = running
	report.Consistent = report.BrokenAt == nil && running.Cmp(account.Balance) == 0
	if !report.Consistent {
		logger.Warnw("affiliate_ledger_inconsistent",
			"affiliate_id", affiliateID,
			"replayed", running.String(),
			"stored", account.Balance.String(),
			"broken_at", report.BrokenAt,
		)
	}
	return report, nil
}

// PayoutApproved 结算账户全部已审核推荐，记一笔 PAYOUT 流水
func (s *LedgerService) PayoutApproved(ctx context.Context, affiliateID uint, note string) (*PayoutResult, error) {
	cfg, err := s.configSource.GetAffiliateConfig(ctx)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = "佣金结算"
	}

	result := &PayoutResult{AffiliateID: affiliateID}
	err = s.affiliateRepo.Transaction(func(tx *gorm.DB) error {
		referralRepo := s.referralRepo.WithTx(tx)
		referrals, err := referralRepo.ListApprovedForUpdate(affiliateID)
		if err != nil {
			return err
		}
		total := models.ZeroMoney()
		ids := make([]uint, 0, len(referrals))
		for _, referral := range referrals {
			total = total.Add(referral.RemainingCommission())
			ids = append(ids, referral.ID)
		}
		if len(ids) == 0 || !total.IsPositive() {
			return ErrNothingToPayout
		}
		if total.Cmp(cfg.MinPayoutAmount) < 0 {
			return fmt.Errorf("%w: 可结算 %s，最低 %s", ErrPayoutBelowMinimum, total.String(), cfg.MinPayoutAmount.String())
		}

		entry, err := s.PostTx(tx, LedgerPostInput{
			AffiliateID: affiliateID,
			Type:        constants.LedgerTypePayout,
			Amount:      total.Neg(),
			Description: note,
			ReferenceID: payoutReference(affiliateID, ids),
		})
		if err != nil {
			return err
		}
		if err := referralRepo.MarkPaid(ids, time.Now()); err != nil {
			return err
		}
		result.Amount = total
		result.ReferralCount = len(ids)
		result.Entry = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("affiliate_payout_posted",
		"affiliate_id", affiliateID,
		"amount", result.Amount.String(),
		"referrals", result.ReferralCount,
	)
	return result, nil
}

// payoutReference 以排序后推荐 ID 集合的摘要作为结算流水参考号
func payoutReference(affiliateID uint, referralIDs []uint) string {
	sorted := append([]uint(nil), referralIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return fmt.Sprintf("payout:%d:%s", affiliateID, hex.EncodeToString(sum[:]))
}

// AutoPayout 开启自动结算时，为全部有已审核推荐的账户执行结算
func (s *LedgerService) AutoPayout(ctx context.Context) (PayoutSummary, error) {
	summary := PayoutSummary{Total: models.ZeroMoney()}
	cfg, err := s.configSource.GetAffiliateConfig(ctx)
	if err != nil {
		return summary, err
	}
	if !cfg.AutoApprovePayout {
		return summary, nil
	}
	ids, err := s.referralRepo.ListAffiliateIDsWithApproved()
	if err != nil {
		return summary, err
	}
	var errs []error
	for _, affiliateID := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary.Attempted++
		result, err := s.PayoutApproved(ctx, affiliateID, "自动结算")
		switch {
		case err == nil:
			summary.Paid++
			summary.Total = summary.Total.Add(result.Amount)
		case errors.Is(err, ErrPayoutBelowMinimum), errors.Is(err, ErrNothingToPayout), errors.Is(err, ErrLedgerInsufficientBalance):
			summary.Skipped++
		default:
			logger.Errorw("affiliate_auto_payout_failed", "affiliate_id", affiliateID, "error", err)
			errs = append(errs, fmt.Errorf("affiliate %d: %w", affiliateID, err))
		}
	}
	return summary, errors.Join(errs...)
}
