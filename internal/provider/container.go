package provider

import (
	"time"

	"github.com/dujiao-next/affiliate/internal/authz"
	"github.com/dujiao-next/affiliate/internal/cache"
	"github.com/dujiao-next/affiliate/internal/config"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/metrics"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/queue"
	"github.com/dujiao-next/affiliate/internal/repository"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Container 依赖注入容器
type Container struct {
	Config          *config.Config
	QueueClient     *queue.Client
	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.AffiliateMetrics

	// Repositories
	AdminRepo          repository.AdminRepository
	UserRepo           repository.UserRepository
	AffiliateRepo      repository.AffiliateRepository
	ReferralRepo       repository.ReferralRepository
	ClickRepo          repository.ClickRepository
	CommissionRuleRepo repository.CommissionRuleRepository
	TierRepo           repository.TierRepository
	LedgerRepo         repository.LedgerRepository
	OrderRepo          repository.OrderRepository
	ProductRepo        repository.ProductRepository
	SettingRepo        repository.SettingRepository
	SystemLogRepo      repository.SystemLogRepository
	WebhookEventRepo   repository.WebhookEventRepository

	// Services
	AuthzService          *authz.Service
	AuthService           *service.AuthService
	SettingService        *service.SettingService
	SystemLogService      *service.SystemLogService
	CommissionRuleService *service.CommissionRuleService
	CommissionService     *service.CommissionService
	TierService           *service.TierService
	LedgerService         *service.LedgerService
	NetworkService        *service.NetworkService
	AffiliateService      *service.AffiliateService
	RiskService           *service.RiskService
	AffiliateOrderService *service.AffiliateOrderService
	AffiliateCheckService *service.AffiliateCheckService
	PaymentWebhookService *service.PaymentWebhookService
	WebhookGate           *service.WebhookGate
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient = nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Container{
		Config:          cfg,
		QueueClient:     queueClient,
		MetricsRegistry: registry,
		Metrics:         metrics.NewAffiliateMetrics(registry),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.AffiliateRepo = repository.NewAffiliateRepository(db)
	c.ReferralRepo = repository.NewReferralRepository(db)
	c.ClickRepo = repository.NewClickRepository(db)
	c.CommissionRuleRepo = repository.NewCommissionRuleRepository(db)
	c.TierRepo = repository.NewTierRepository(db)
	c.LedgerRepo = repository.NewLedgerRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
	c.SystemLogRepo = repository.NewSystemLogRepository(db)
	c.WebhookEventRepo = repository.NewWebhookEventRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(c.Config.JWT, c.AdminRepo)
	c.SettingService = service.NewSettingService(c.SettingRepo)
	c.SystemLogService = service.NewSystemLogService(c.SystemLogRepo)
	c.WebhookGate = service.NewWebhookGate(c.Config.Affiliate.APIKey, c.Config.Affiliate.HMACSecret)

	c.CommissionRuleService = service.NewCommissionRuleService(c.CommissionRuleRepo)
	c.CommissionService = service.NewCommissionService(c.AffiliateRepo, c.CommissionRuleRepo, c.Metrics)
	c.TierService = service.NewTierService(c.TierRepo, c.AffiliateRepo, c.ReferralRepo, c.Metrics)
	c.LedgerService = service.NewLedgerService(c.AffiliateRepo, c.LedgerRepo, c.ReferralRepo, c.SettingService, c.Metrics)
	c.NetworkService = service.NewNetworkService(c.AffiliateRepo, c.SettingService, c.Config.Affiliate.MLMMaxDepth)
	c.AffiliateService = service.NewAffiliateService(c.AffiliateRepo, c.ReferralRepo, c.UserRepo, c.NetworkService, c.SystemLogService)
	c.RiskService = service.NewRiskService(c.AffiliateRepo, c.ClickRepo, c.ReferralRepo, c.SettingService, c.SystemLogService, c.Metrics, c.Config.Cron.RescoreBatchLen)
	c.RiskService.SetRescoreScheduler(service.NewQueueRescoreScheduler(c.QueueClient, c.RiskService))
	c.AffiliateOrderService = service.NewAffiliateOrderService(
		c.OrderRepo,
		c.AffiliateRepo,
		c.ReferralRepo,
		c.WebhookEventRepo,
		c.CommissionService,
		c.LedgerService,
		c.SettingService,
		c.SystemLogService,
		c.Metrics,
	)
	c.AffiliateCheckService = service.NewAffiliateCheckService(c.ReferralRepo, c.TierService, c.RiskService, c.LedgerService, c.SettingService, c.SystemLogService)

	dispatcher := service.NewQueueOrderDispatcher(c.QueueClient, c.AffiliateOrderService)
	c.PaymentWebhookService = service.NewPaymentWebhookService(
		c.Config.Stripe.WebhookSecret,
		time.Duration(c.Config.Stripe.ToleranceSeconds)*time.Second,
		c.OrderRepo,
		c.ProductRepo,
		c.WebhookEventRepo,
		dispatcher,
		c.Metrics,
	)
}
