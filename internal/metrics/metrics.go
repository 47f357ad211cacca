package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "affiliate"

// AffiliateMetrics 推广引擎业务指标
type AffiliateMetrics struct {
	commissions   *prometheus.CounterVec
	commissionSum *prometheus.CounterVec
	ledgerEntries *prometheus.CounterVec
	orders        *prometheus.CounterVec
	refunds       *prometheus.CounterVec
	clicks        *prometheus.CounterVec
	riskBans      prometheus.Counter
	tierUpgrades  prometheus.Counter
	jobDuration   *prometheus.HistogramVec
	jobRuns       *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
}

// NewAffiliateMetrics 在指定注册器上注册指标，reg 为空时返回空操作实例
func NewAffiliateMetrics(reg prometheus.Registerer) *AffiliateMetrics {
	if reg == nil {
		return &AffiliateMetrics{}
	}
	m := &AffiliateMetrics{
		commissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_calculations_total",
			Help:      "Commission calculations grouped by winning source.",
		}, []string{"source"}),
		commissionSum: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_amount_total",
			Help:      "Sum of posted commission amounts.",
		}, []string{"level"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_entries_total",
			Help:      "Ledger entries appended by type.",
		}, []string{"type"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_processing_total",
			Help:      "Order commission processing outcomes.",
		}, []string{"outcome"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_processing_total",
			Help:      "Refund deduction processing outcomes.",
		}, []string{"outcome"}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Tracking clicks grouped by result.",
		}, []string{"result"}),
		riskBans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_bans_total",
			Help:      "Affiliates banned by the risk scorer.",
		}),
		tierUpgrades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_upgrades_total",
			Help:      "Automatic tier upgrades.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled affiliate jobs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled affiliate job runs by outcome.",
		}, []string{"job", "outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound payment webhook events by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
	reg.MustRegister(
		m.commissions,
		m.commissionSum,
		m.ledgerEntries,
		m.orders,
		m.refunds,
		m.clicks,
		m.riskBans,
		m.tierUpgrades,
		m.jobDuration,
		m.jobRuns,
		m.webhooks,
	)
	return m
}

// ObserveCommission 记录一次佣金计算的命中来源
func (m *AffiliateMetrics) ObserveCommission(source string) {
	if m == nil || m.commissions == nil {
		return
	}
	m.commissions.WithLabelValues(sourceKind(source)).Inc()
}

// AddCommissionAmount 累加已入账佣金
func (m *AffiliateMetrics) AddCommissionAmount(level string, amount float64) {
	if m == nil || m.commissionSum == nil || amount <= 0 {
		return
	}
	m.commissionSum.WithLabelValues(normalizeLabel(level)).Add(amount)
}

// IncLedgerEntry 记录一条流水写入
func (m *AffiliateMetrics) IncLedgerEntry(entryType string) {
	if m == nil || m.ledgerEntries == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(normalizeLabel(entryType)).Inc()
}

// IncOrderOutcome 记录订单处理结果
func (m *AffiliateMetrics) IncOrderOutcome(outcome string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRefundOutcome 记录退款处理结果
func (m *AffiliateMetrics) IncRefundOutcome(outcome string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncClick 记录点击处理结果
func (m *AffiliateMetrics) IncClick(result string) {
	if m == nil || m.clicks == nil {
		return
	}
	m.clicks.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRiskBan 记录风控封禁
func (m *AffiliateMetrics) IncRiskBan() {
	if m == nil || m.riskBans == nil {
		return
	}
	m.riskBans.Inc()
}

// AddTierUpgrades 记录等级升级数
func (m *AffiliateMetrics) AddTierUpgrades(count int) {
	if m == nil || m.tierUpgrades == nil || count <= 0 {
		return
	}
	m.tierUpgrades.Add(float64(count))
}

// ObserveJob 记录定时任务耗时与结果
func (m *AffiliateMetrics) ObserveJob(job string, duration time.Duration, err error) {
	if m == nil || m.jobDuration == nil || m.jobRuns == nil {
		return
	}
	job = normalizeLabel(job)
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}

// IncWebhook 记录支付回调处理结果
func (m *AffiliateMetrics) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func sourceKind(source string) string {
	switch {
	case strings.HasPrefix(source, "RULE:"):
		return "rule"
	case strings.HasPrefix(source, "TIER:"):
		return "tier"
	case source == "PERSONAL_RATE":
		return "personal"
	case source == "":
		return "unknown"
	default:
		return strings.ToLower(source)
	}
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return strings.ToLower(value)
}
