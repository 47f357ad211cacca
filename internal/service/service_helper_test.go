package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// staticConfigSource 测试用固定配置
type staticConfigSource struct {
	cfg   AffiliateConfig
	rules FraudRules
}

func (s *staticConfigSource) GetAffiliateConfig(ctx context.Context) (AffiliateConfig, error) {
	return s.cfg, nil
}

func (s *staticConfigSource) GetFraudRules(ctx context.Context) (FraudRules, error) {
	return s.rules, nil
}

type serviceTestEnv struct {
	db         *gorm.DB
	config     *staticConfigSource
	affiliates *repository.GormAffiliateRepository
	orders     *repository.GormOrderRepository
	products   *repository.GormProductRepository
	referrals  *repository.GormReferralRepository
	ledgers    *repository.GormLedgerRepository
	rules      *repository.GormCommissionRuleRepository
	tiers      *repository.GormTierRepository
	clicks     *repository.GormClickRepository
	webhooks   *repository.GormWebhookEventRepository
	systemLogs *repository.GormSystemLogRepository

	commission *CommissionService
	ledger     *LedgerService
	network    *NetworkService
	risk       *RiskService
	tier       *TierService
	orderSvc   *AffiliateOrderService
	check      *AffiliateCheckService
	logSvc     *SystemLogService
}

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newServiceTestEnv(t *testing.T, name string) *serviceTestEnv {
	t.Helper()
	db := setupServiceTestDB(t, name)
	env := &serviceTestEnv{
		db:         db,
		config:     &staticConfigSource{cfg: AffiliateDefaultConfig(), rules: FraudDefaultRules()},
		affiliates: repository.NewAffiliateRepository(db),
		orders:     repository.NewOrderRepository(db),
		products:   repository.NewProductRepository(db),
		referrals:  repository.NewReferralRepository(db),
		ledgers:    repository.NewLedgerRepository(db),
		rules:      repository.NewCommissionRuleRepository(db),
		tiers:      repository.NewTierRepository(db),
		clicks:     repository.NewClickRepository(db),
		webhooks:   repository.NewWebhookEventRepository(db),
		systemLogs: repository.NewSystemLogRepository(db),
	}
	env.logSvc = NewSystemLogService(env.systemLogs)
	env.commission = NewCommissionService(env.affiliates, env.rules, nil)
	env.ledger = NewLedgerService(env.affiliates, env.ledgers, env.referrals, env.config, nil)
	env.network = NewNetworkService(env.affiliates, env.config, constants.MLMDefaultMaxDepth)
	env.risk = NewRiskService(env.affiliates, env.clicks, env.referrals, env.config, env.logSvc, nil, 50)
	env.tier = NewTierService(env.tiers, env.affiliates, env.referrals, nil)
	env.orderSvc = NewAffiliateOrderService(
		env.orders, env.affiliates, env.referrals, env.webhooks,
		env.commission, env.ledger, env.config, env.logSvc, nil,
	)
	env.check = NewAffiliateCheckService(env.referrals, env.tier, env.risk, env.ledger, env.config, env.logSvc)
	return env
}

// createAffiliate 直接写入 ACTIVE 账户，rate 为个人百分比
func (e *serviceTestEnv) createAffiliate(t *testing.T, userID uint, parent *models.AffiliateAccount, rate string) *models.AffiliateAccount {
	t.Helper()
	account := &models.AffiliateAccount{
		UserID:         userID,
		Name:           fmt.Sprintf("affiliate-%d", userID),
		Slug:           fmt.Sprintf("AFF%d", userID),
		Balance:        models.ZeroMoney(),
		TotalEarnings:  models.ZeroMoney(),
		CommissionRate: models.MustMoney(rate),
		CommissionType: constants.CommissionTypePercentage,
		MLMPath:        BuildMLMPath(parent, userID),
		Status:         constants.AffiliateStatusActive,
		RiskFlags:      models.StringList{},
	}
	if parent != nil {
		account.ParentID = &parent.ID
		account.MLMLevel = parent.MLMLevel + 1
	}
	if err := e.db.Create(account).Error; err != nil {
		t.Fatalf("create affiliate failed: %v", err)
	}
	return account
}

func (e *serviceTestEnv) setStatus(t *testing.T, id uint, status string) {
	t.Helper()
	if err := e.affiliates.UpdateStatus(id, status, time.Now()); err != nil {
		t.Fatalf("update status failed: %v", err)
	}
}

func (e *serviceTestEnv) createProduct(t *testing.T, categoryID uint, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		CategoryID: categoryID,
		Name:       fmt.Sprintf("product-%d-%d", categoryID, time.Now().UnixNano()),
		Price:      models.MustMoney(price),
		Stock:      stock,
		IsActive:   true,
	}
	if err := e.products.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

// createOrder 按订单项小计汇总订单金额；status 为 PAID 时写入支付时间
func (e *serviceTestEnv) createOrder(t *testing.T, userID uint, slug, status string, items ...models.OrderItem) *models.Order {
	t.Helper()
	total := models.ZeroMoney()
	for i := range items {
		if items[i].Quantity == 0 {
			items[i].Quantity = 1
		}
		if items[i].TotalPrice.IsZero() {
			items[i].TotalPrice = items[i].UnitPrice.Mul(models.NewMoneyFromInt(int64(items[i].Quantity)))
		}
		total = total.Add(items[i].TotalPrice)
	}
	order := &models.Order{
		OrderNo:       fmt.Sprintf("ORD-%d-%d", userID, time.Now().UnixNano()),
		UserID:        userID,
		Status:        status,
		Currency:      "USD",
		TotalAmount:   total,
		AffiliateSlug: slug,
	}
	if status == constants.OrderStatusPaid {
		paidAt := time.Now()
		order.PaidAt = &paidAt
	}
	if err := e.orders.Create(order, items); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func newTestItem(productID, categoryID uint, price string) models.OrderItem {
	return models.OrderItem{
		ProductID:  productID,
		CategoryID: categoryID,
		Quantity:   1,
		UnitPrice:  models.MustMoney(price),
		TotalPrice: models.MustMoney(price),
	}
}

func (e *serviceTestEnv) reload(t *testing.T, id uint) *models.AffiliateAccount {
	t.Helper()
	account, err := e.affiliates.GetByID(id)
	if err != nil || account == nil {
		t.Fatalf("reload affiliate %d failed: %v", id, err)
	}
	return account
}

func assertMoney(t *testing.T, want string, got models.Money) {
	t.Helper()
	if got.Cmp(models.MustMoney(want)) != 0 {
		t.Fatalf("money want %s got %s", want, got.String())
	}
}
