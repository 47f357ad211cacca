package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/metrics"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/queue"
	"github.com/dujiao-next/affiliate/internal/repository"
)

const (
	clickDedupeWindow       = 60 * time.Second
	duplicateIPMinSample    = 10
	riskRescoreDefaultBatch = 200
	clickFieldMaxLen        = 1024
	velocityRescoreDelay    = 30 * time.Second
)

// 风险标记
const (
	RiskFlagClickVelocity = "click_velocity"
	RiskFlagDuplicateIP   = "duplicate_ip"
	RiskFlagNoConversions = "no_conversions"
	RiskFlagIPBurst       = "ip_burst"
)

// ClickInput 点击上报参数
type ClickInput struct {
	Slug      string `json:"slug"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ClickResult 点击处理结果
type ClickResult struct {
	Tracked     bool   `json:"tracked"`
	Duplicate   bool   `json:"duplicate"`
	AffiliateID uint   `json:"affiliate_id"`
	Slug        string `json:"slug"`
	CookieDays  int    `json:"cookie_days"`
}

// RiskAssessment 单个账户的评分结果
type RiskAssessment struct {
	AffiliateID uint                  `json:"affiliate_id"`
	Score       int                   `json:"score"`
	Flags       []string              `json:"flags"`
	Banned      bool                  `json:"banned"`
	Skipped     bool                  `json:"skipped"`
	Stats       repository.ClickStats `json:"stats"`
	Conversions int64                 `json:"conversions"`
}

// RescoreSummary 批量评分汇总
type RescoreSummary struct {
	Checked int `json:"checked"`
	Flagged int `json:"flagged"`
	Banned  int `json:"banned"`
}

// RiskService 点击追踪与风控评分服务
type RiskService struct {
	affiliateRepo repository.AffiliateRepository
	clickRepo     repository.ClickRepository
	referralRepo  repository.ReferralRepository
	configSource  AffiliateConfigSource
	systemLogs    *SystemLogService
	metrics       *metrics.AffiliateMetrics
	batchSize     int
	scheduler     RescoreScheduler
	now           func() time.Time
}

// RescoreScheduler 点击速率越过阈值时安排单账户重评
type RescoreScheduler interface {
	ScheduleRescore(ctx context.Context, affiliateID uint)
}

// QueueRescoreScheduler 队列可用时延迟投递重评任务，否则后台直接重评
type QueueRescoreScheduler struct {
	client *queue.Client
	risk   *RiskService
	delay  time.Duration
}

// NewQueueRescoreScheduler 创建重评调度器
func NewQueueRescoreScheduler(client *queue.Client, risk *RiskService) *QueueRescoreScheduler {
	return &QueueRescoreScheduler{client: client, risk: risk, delay: velocityRescoreDelay}
}

// ScheduleRescore 投递重评，失败只记录日志
func (q *QueueRescoreScheduler) ScheduleRescore(ctx context.Context, affiliateID uint) {
	if q == nil || affiliateID == 0 {
		return
	}
	if q.client.Enabled() {
		err := q.client.EnqueueRescore(queue.RescorePayload{AffiliateID: affiliateID}, q.delay)
		if err == nil {
			return
		}
		logger.Errorw("affiliate_rescore_enqueue_failed", "affiliate_id", affiliateID, "error", err)
	}
	if q.risk == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchFallbackTimeout)
		defer cancel()
		if _, err := q.risk.RescoreAffiliate(ctx, affiliateID, time.Now()); err != nil {
			logger.Errorw("affiliate_rescore_inline_failed", "affiliate_id", affiliateID, "error", err)
		}
	}()
}

// NewRiskService 创建风控服务
func NewRiskService(
	affiliateRepo repository.AffiliateRepository,
	clickRepo repository.ClickRepository,
	referralRepo repository.ReferralRepository,
	configSource AffiliateConfigSource,
	systemLogs *SystemLogService,
	m *metrics.AffiliateMetrics,
	batchSize int,
) *RiskService {
	if batchSize <= 0 {
		batchSize = riskRescoreDefaultBatch
	}
	return &RiskService{
		affiliateRepo: affiliateRepo,
		clickRepo:     clickRepo,
		referralRepo:  referralRepo,
		configSource:  configSource,
		systemLogs:    systemLogs,
		metrics:       m,
		batchSize:     batchSize,
		now:           time.Now,
	}
}

// SetRescoreScheduler 设置点击速率触发的重评调度器
func (s *RiskService) SetRescoreScheduler(scheduler RescoreScheduler) {
	s.scheduler = scheduler
}

// TrackClick 记录推广点击；同账户同 IP 60 秒内（含 60 秒）重复点击直接丢弃
func (s *RiskService) TrackClick(ctx context.Context, input ClickInput) (*ClickResult, error) {
	cfg, err := s.configSource.GetAffiliateConfig(ctx)
	if err != nil {
		return nil, err
	}
	result := &ClickResult{CookieDays: cfg.CookieDurationDays}
	if !cfg.Enabled {
		s.metrics.IncClick("disabled")
		return result, nil
	}
	slug := strings.ToUpper(strings.TrimSpace(input.Slug))
	account, err := s.affiliateRepo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Status != constants.AffiliateStatusActive {
		s.metrics.IncClick("ignored")
		return result, nil
	}
	result.AffiliateID = account.ID
	result.Slug = account.Slug

	ip := strings.TrimSpace(input.IP)
	now := s.now()
	recent, err := s.clickRepo.HasRecentClick(account.ID, ip, now.Add(-clickDedupeWindow))
	if err != nil {
		return nil, err
	}
	if recent {
		result.Duplicate = true
		s.metrics.IncClick("duplicate")
		return result, nil
	}

	click := &models.AffiliateClick{
		AffiliateID: account.ID,
		IPAddress:   ip,
		UserAgent:   truncateText(input.UserAgent, clickFieldMaxLen),
		Referrer:    truncateText(input.Referrer, clickFieldMaxLen),
		Path:        truncateText(input.Path, 512),
		CreatedAt:   now,
	}
	if err := s.clickRepo.Create(click); err != nil {
		return nil, err
	}
	result.Tracked = true
	s.metrics.IncClick("tracked")
	s.checkClickVelocity(ctx, account.ID, now)
	return result, nil
}

// checkClickVelocity 最近一小时点击数刚越过 MaxClicksPerHour 时安排一次重评
func (s *RiskService) checkClickVelocity(ctx context.Context, affiliateID uint, now time.Time) {
	if s.scheduler == nil {
		return
	}
	rules, err := s.configSource.GetFraudRules(ctx)
	if err != nil {
		logger.Warnw("affiliate_click_velocity_rules_failed", "affiliate_id", affiliateID, "error", err)
		return
	}
	if !rules.Enabled || rules.MaxClicksPerHour <= 0 {
		return
	}
	count, err := s.clickRepo.CountSince(affiliateID, now.Add(-time.Hour))
	if err != nil {
		logger.Warnw("affiliate_click_velocity_count_failed", "affiliate_id", affiliateID, "error", err)
		return
	}
	if count != int64(rules.MaxClicksPerHour)+1 {
		return
	}
	logger.Infow("affiliate_click_velocity_exceeded", "affiliate_id", affiliateID, "clicks", count)
	s.scheduler.ScheduleRescore(ctx, affiliateID)
}

// computeRiskScore 按滚动窗口统计累加加权分，结果限制在 0-100
func computeRiskScore(stats repository.ClickStats, conversions int64, rules FraudRules) (int, []string) {
	score := 0
	flags := make([]string, 0, 4)
	if stats.TotalClicks == 0 {
		return 0, flags
	}

	hours := rules.WindowHours
	if hours <= 0 {
		hours = 1
	}
	perHour := float64(stats.TotalClicks) / float64(hours)
	if perHour > float64(rules.MaxClicksPerHour) {
		score += rules.VelocityWeight
		flags = append(flags, RiskFlagClickVelocity)
	}

	if stats.TotalClicks >= duplicateIPMinSample {
		duplicateRatio := 1 - float64(stats.UniqueIPs)/float64(stats.TotalClicks)
		if duplicateRatio > rules.MaxDuplicateIPRatio {
			score += rules.DuplicateIPWeight
			flags = append(flags, RiskFlagDuplicateIP)
		}
	}

	if stats.TotalClicks >= int64(rules.MinClicksForConversionCheck) && conversions == 0 {
		score += rules.NoConversionWeight
		flags = append(flags, RiskFlagNoConversions)
	}

	if stats.TopIPClicks > int64(rules.MaxSingleIPClicks) {
		score += rules.IPBurstWeight
		flags = append(flags, RiskFlagIPBurst)
	}
	return clampInt(score, 0, 100), flags
}

// RescoreAffiliate 重新计算单个账户风险分，达到阈值且开启自动封禁时封禁账户
func (s *RiskService) RescoreAffiliate(ctx context.Context, affiliateID uint, now time.Time) (*RiskAssessment, error) {
	rules, err := s.configSource.GetFraudRules(ctx)
	if err != nil {
		return nil, err
	}
	account, err := s.affiliateRepo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}
	return s.rescore(ctx, account, rules, now)
}

func (s *RiskService) rescore(ctx context.Context, account *models.AffiliateAccount, rules FraudRules, now time.Time) (*RiskAssessment, error) {
	assessment := &RiskAssessment{
		AffiliateID: account.ID,
		Score:       account.RiskScore,
		Flags:       []string(account.RiskFlags),
	}
	if !rules.Enabled {
		assessment.Skipped = true
		return assessment, nil
	}

	since := now.Add(-time.Duration(rules.WindowHours) * time.Hour)
	stats, err := s.clickRepo.WindowStats(account.ID, since)
	if err != nil {
		return nil, err
	}
	conversions, err := s.referralRepo.CountSince(account.ID, since)
	if err != nil {
		return nil, err
	}
	score, flags := computeRiskScore(stats, conversions, rules)
	assessment.Score = score
	assessment.Flags = flags
	assessment.Stats = stats
	assessment.Conversions = conversions

	if err := s.affiliateRepo.UpdateRisk(account.ID, score, flags, now); err != nil {
		return nil, err
	}
	if len(flags) > 0 {
		logger.Infow("affiliate_risk_flagged",
			"affiliate_id", account.ID,
			"score", score,
			"flags", flags,
			"clicks", stats.TotalClicks,
			"conversions", conversions,
		)
	}

	if rules.AutoBan && score >= rules.BlockThreshold && account.Status != constants.AffiliateStatusBanned {
		if err := s.affiliateRepo.UpdateStatus(account.ID, constants.AffiliateStatusBanned, now); err != nil {
			return nil, err
		}
		assessment.Banned = true
		s.metrics.IncRiskBan()
		s.systemLogs.Record(ctx, constants.SystemLogLevelWarn, "risk_scorer",
			fmt.Sprintf("推广账户 %d 风险分 %d 达到阈值 %d，已自动封禁", account.ID, score, rules.BlockThreshold),
			models.JSON{
				"affiliate_id": account.ID,
				"score":        score,
				"flags":        flags,
				"threshold":    rules.BlockThreshold,
			})
	}
	return assessment, nil
}

// RescoreAll 分批重新评分全部 ACTIVE 账户
func (s *RiskService) RescoreAll(ctx context.Context, now time.Time) (RescoreSummary, error) {
	summary := RescoreSummary{}
	rules, err := s.configSource.GetFraudRules(ctx)
	if err != nil {
		return summary, err
	}
	if !rules.Enabled {
		return summary, nil
	}
	var errs []error
	var cursor uint
	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ids, err := s.affiliateRepo.ListActiveIDs(cursor, s.batchSize)
		if err != nil {
			errs = append(errs, err)
			break
		}
		if len(ids) == 0 {
			break
		}
		cursor = ids[len(ids)-1]
		accounts, err := s.affiliateRepo.GetByIDs(ids)
		if err != nil {
			errs = append(errs, err)
			break
		}
		for i := range accounts {
			assessment, err := s.rescore(ctx, &accounts[i], rules, now)
			if err != nil {
				logger.Errorw("affiliate_rescore_failed", "affiliate_id", accounts[i].ID, "error", err)
				errs = append(errs, fmt.Errorf("affiliate %d: %w", accounts[i].ID, err))
				continue
			}
			summary.Checked++
			if len(assessment.Flags) > 0 {
				summary.Flagged++
			}
			if assessment.Banned {
				summary.Banned++
			}
		}
	}
	return summary, errors.Join(errs...)
}

func truncateText(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max]
}
