package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dujiao-next/affiliate/internal/cache"
	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"
)

// AffiliateCheckReport 定时巡检结果
type AffiliateCheckReport struct {
	StartedAt         time.Time          `json:"started_at"`
	FinishedAt        time.Time          `json:"finished_at"`
	ApprovedReferrals int64              `json:"approved_referrals"`
	Tiers             TierUpgradeSummary `json:"tiers"`
	Risk              RescoreSummary     `json:"risk"`
	Payout            PayoutSummary      `json:"payout"`
	Errors            []string           `json:"errors,omitempty"`
}

// AffiliateCheckService 推广定时巡检：审核到期推荐、等级升级、风控重评、自动结算
type AffiliateCheckService struct {
	referralRepo repository.ReferralRepository
	tiers        *TierService
	risk         *RiskService
	ledger       *LedgerService
	configSource AffiliateConfigSource
	systemLogs   *SystemLogService
	now          func() time.Time
}

// NewAffiliateCheckService 创建定时巡检服务
func NewAffiliateCheckService(
	referralRepo repository.ReferralRepository,
	tiers *TierService,
	risk *RiskService,
	ledger *LedgerService,
	configSource AffiliateConfigSource,
	systemLogs *SystemLogService,
) *AffiliateCheckService {
	return &AffiliateCheckService{
		referralRepo: referralRepo,
		tiers:        tiers,
		risk:         risk,
		ledger:       ledger,
		configSource: configSource,
		systemLogs:   systemLogs,
		now:          time.Now,
	}
}

const affiliateCheckLockName = "affiliate_check"

// RunLocked 持有分布式锁时执行巡检，多实例同时触发只有一个生效
func (s *AffiliateCheckService) RunLocked(ctx context.Context, ttl time.Duration) (*AffiliateCheckReport, error) {
	lock, err := cache.AcquireLock(ctx, affiliateCheckLockName, ttl)
	if errors.Is(err, cache.ErrLockNotAcquired) {
		logger.Infow("affiliate_check_lock_busy")
		return nil, ErrCheckInProgress
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warnw("affiliate_check_lock_release_failed", "error", err)
		}
	}()
	return s.Run(ctx)
}

// Run 依次执行各阶段，单阶段失败不中断后续阶段
func (s *AffiliateCheckService) Run(ctx context.Context) (*AffiliateCheckReport, error) {
	report := &AffiliateCheckReport{StartedAt: s.now()}
	var errs []error
	record := func(stage string, err error) {
		if err == nil {
			return
		}
		wrapped := fmt.Errorf("%s: %w", stage, err)
		errs = append(errs, wrapped)
		report.Errors = append(report.Errors, wrapped.Error())
		logger.Errorw("affiliate_check_stage_failed", "stage", stage, "error", err)
	}

	cfg, err := s.configSource.GetAffiliateConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		report.FinishedAt = s.now()
		logger.Infow("affiliate_check_skipped", "reason", SkipReasonProgramDisabled)
		return report, nil
	}

	now := report.StartedAt
	cutoff := now.AddDate(0, 0, -cfg.HoldingDays)
	approved, err := s.referralRepo.ApproveDue(cutoff, now)
	record("approve_referrals", err)
	report.ApprovedReferrals = approved

	tiers, err := s.tiers.AutoUpgradeTiers(ctx, now)
	record("tier_upgrade", err)
	report.Tiers = tiers

	risk, err := s.risk.RescoreAll(ctx, now)
	record("risk_rescore", err)
	report.Risk = risk

	payout, err := s.ledger.AutoPayout(ctx)
	record("auto_payout", err)
	report.Payout = payout

	report.FinishedAt = s.now()
	joined := errors.Join(errs...)
	if joined != nil {
		s.systemLogs.Record(ctx, constants.SystemLogLevelError, "affiliate_check", "推广定时巡检部分阶段失败", models.JSON{
			"errors": report.Errors,
		})
	}
	logger.Infow("affiliate_check_finished",
		"approved_referrals", report.ApprovedReferrals,
		"tiers_checked", report.Tiers.Checked,
		"tiers_upgraded", report.Tiers.Upgraded,
		"risk_checked", report.Risk.Checked,
		"risk_banned", report.Risk.Banned,
		"payouts", report.Payout.Paid,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, joined
}
