package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/config"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/metrics"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/robfig/cron/v3"
)

const (
	affiliateCheckJob         = "affiliate_check"
	defaultAffiliateCheckSpec = "0 */6 * * *"
	defaultCheckLockTTL       = 10 * time.Minute
)

// AffiliateChecker 定时巡检执行者
type AffiliateChecker interface {
	RunLocked(ctx context.Context, ttl time.Duration) (*service.AffiliateCheckReport, error)
}

// Scheduler 定时任务服务
type Scheduler struct {
	name    string
	spec    string
	lockTTL time.Duration
	checker AffiliateChecker
	metrics *metrics.AffiliateMetrics
	cron    *cron.Cron
}

// NewScheduler 创建定时任务服务
func NewScheduler(cfg config.CronConfig, checker AffiliateChecker, m *metrics.AffiliateMetrics) (*Scheduler, error) {
	if !cfg.Enabled {
		return nil, errors.New("cron disabled")
	}
	if checker == nil {
		return nil, errors.New("affiliate checker is nil")
	}
	spec := strings.TrimSpace(cfg.AffiliateCheck)
	if spec == "" {
		spec = defaultAffiliateCheckSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultCheckLockTTL
	}
	return &Scheduler{
		name:    "scheduler",
		spec:    spec,
		lockTTL: ttl,
		checker: checker,
		metrics: m,
	}, nil
}

// Name 服务名称
func (s *Scheduler) Name() string {
	if s == nil || s.name == "" {
		return "scheduler"
	}
	return s.name
}

// Start 启动定时任务并阻塞到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.checker == nil {
		return errors.New("scheduler not initialized")
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(s.spec, func() { s.runAffiliateCheck(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	logger.Infow("scheduler_started", "job", affiliateCheckJob, "spec", s.spec)
	<-ctx.Done()
	return nil
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runAffiliateCheck(ctx context.Context) {
	started := time.Now()
	report, err := s.checker.RunLocked(ctx, s.lockTTL)
	if errors.Is(err, service.ErrCheckInProgress) {
		return
	}
	s.metrics.ObserveJob(affiliateCheckJob, time.Since(started), err)
	if err != nil {
		logger.Warnw("scheduler_affiliate_check_failed", "error", err)
		return
	}
	logger.Debugw("scheduler_affiliate_check_done",
		"approved_referrals", report.ApprovedReferrals,
		"duration_ms", time.Since(started).Milliseconds(),
	)
}
