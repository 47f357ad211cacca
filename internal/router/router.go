package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/dujiao-next/affiliate/internal/authz"
	"github.com/dujiao-next/affiliate/internal/config"
	adminhandlers "github.com/dujiao-next/affiliate/internal/http/handlers/admin"
	publichandlers "github.com/dujiao-next/affiliate/internal/http/handlers/public"
	"github.com/dujiao-next/affiliate/internal/http/response"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultClickWindowSeconds = 60
	defaultClickMaxRequests   = 30
	defaultMetricsPath        = "/metrics"
	adminLoginWindowSeconds   = 300
	adminLoginMaxAttempts     = 10
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按内部/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "aff"
	}
	clickRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:click", redisPrefix),
		WindowSeconds: positiveOr(cfg.RateLimit.ClickWindowSeconds, defaultClickWindowSeconds),
		MaxRequests:   positiveOr(cfg.RateLimit.ClickMaxRequests, defaultClickMaxRequests),
		Message:       "点击过于频繁，请稍后再试",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:admin_login", redisPrefix),
		WindowSeconds: adminLoginWindowSeconds,
		MaxRequests:   adminLoginMaxAttempts,
		Message:       "登录尝试过多，请稍后再试",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	api := r.Group("/api")
	{
		// 内部接口（x-api-key 或 HMAC 签名）
		internal := api.Group("/affiliate")
		internal.Use(InternalAuthMiddleware(c.WebhookGate))
		{
			internal.POST("/process-order", publicHandler.ProcessOrder)
			internal.POST("/process-refund", publicHandler.ProcessRefund)
			internal.POST("/register", publicHandler.RegisterAffiliate)
		}

		api.POST("/tracking/click", RateLimitMiddleware(clickRule, KeyByIP), publicHandler.TrackClick)
		api.POST("/webhooks/stripe", publicHandler.StripeWebhook)
		api.GET("/cron/affiliate-check", publicHandler.AffiliateCheck)

		// 管理员接口
		admin := api.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(c.AuthService), AdminRBACMiddleware(c.AuthzService))
			{
				// 权限
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
				authorized.GET("/authz/permission-catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})

				// 佣金规则
				authorized.GET("/commission-rules", adminHandler.ListCommissionRules)
				authorized.POST("/commission-rules", adminHandler.CreateCommissionRule)
				authorized.GET("/commission-rules/:id", adminHandler.GetCommissionRule)
				authorized.PUT("/commission-rules/:id", adminHandler.UpdateCommissionRule)
				authorized.DELETE("/commission-rules/:id", adminHandler.DeleteCommissionRule)
				authorized.POST("/commission/preview", adminHandler.PreviewCommission)

				// 推广等级
				authorized.GET("/tiers", adminHandler.ListTiers)
				authorized.POST("/tiers", adminHandler.CreateTier)
				authorized.PUT("/tiers/:id", adminHandler.UpdateTier)
				authorized.DELETE("/tiers/:id", adminHandler.DeleteTier)

				// 推广账户与网络
				authorized.GET("/affiliates", adminHandler.ListAffiliates)
				authorized.GET("/affiliates/:id", adminHandler.GetAffiliate)
				authorized.PUT("/affiliates/:id/status", adminHandler.UpdateAffiliateStatus)
				authorized.PUT("/affiliates/:id/sponsor", adminHandler.ChangeAffiliateSponsor)
				authorized.GET("/affiliates/:id/sponsor", adminHandler.GetAffiliateSponsor)
				authorized.GET("/affiliates/:id/network", adminHandler.GetAffiliateNetwork)
				authorized.GET("/affiliates/:id/team", adminHandler.GetAffiliateTeam)
				authorized.GET("/affiliates/:id/referrals", adminHandler.ListAffiliateReferrals)
				authorized.POST("/affiliates/:id/rescore", adminHandler.RescoreAffiliate)

				// 账本
				authorized.GET("/affiliates/:id/ledger", adminHandler.ListAffiliateLedger)
				authorized.POST("/affiliates/:id/adjustments", adminHandler.CreateAffiliateAdjustment)
				authorized.POST("/affiliates/:id/payout", adminHandler.PayoutAffiliate)
				authorized.GET("/affiliates/:id/reconcile", adminHandler.ReconcileAffiliate)

				// 设置管理
				authorized.GET("/settings/affiliate", adminHandler.GetAffiliateSettings)
				authorized.PUT("/settings/affiliate", adminHandler.UpdateAffiliateSettings)
				authorized.GET("/settings/fraud", adminHandler.GetFraudSettings)
				authorized.PUT("/settings/fraud", adminHandler.UpdateFraudSettings)

				// 系统日志
				authorized.GET("/system-logs", adminHandler.ListSystemLogs)
			}
		}
	}

	if cfg.Metrics.Enabled && c.MetricsRegistry != nil {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = defaultMetricsPath
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(c.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/admin/") {
			continue
		}
		if item.Path == "/api/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}
