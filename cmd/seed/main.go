package main

import (
	"fmt"
	"time"

	"github.com/dujiao-next/affiliate/internal/config"
	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/service"

	"github.com/shopspring/decimal"
)

type seedAffiliate struct {
	Email      string
	Name       string
	Slug       string
	Rate       string
	ParentSlug string
	Status     string
}

type seedOrder struct {
	OrderNo       string
	BuyerEmail    string
	AffiliateSlug string
	Status        string
	ProductName   string
	Quantity      int
	PaidDaysAgo   int
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Database.LogMode); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加分类
	categoryIDs := map[string]uint{}
	for _, name := range []string{"Software", "Courses", "Templates"} {
		var category models.Category
		if err := models.DB.Where("name = ?", name).First(&category).Error; err != nil {
			category = models.Category{Name: name}
			if err := models.DB.Create(&category).Error; err != nil {
				stdLog.Printf("Failed to create category %s: %v", name, err)
				continue
			}
			stdLog.Printf("Created category: %s", name)
		} else {
			stdLog.Printf("Category already exists: %s", name)
		}
		categoryIDs[name] = category.ID
	}

	// 添加商品
	products := []struct {
		Name     string
		Category string
		Price    string
	}{
		{Name: "Pro License", Category: "Software", Price: "199.00"},
		{Name: "Team License", Category: "Software", Price: "499.00"},
		{Name: "Growth Course", Category: "Courses", Price: "89.90"},
		{Name: "Landing Page Kit", Category: "Templates", Price: "29.00"},
	}
	productByName := map[string]models.Product{}
	for _, item := range products {
		var product models.Product
		if err := models.DB.Where("name = ?", item.Name).First(&product).Error; err != nil {
			price, parseErr := decimal.NewFromString(item.Price)
			if parseErr != nil {
				stdLog.Printf("Invalid price for %s: %v", item.Name, parseErr)
				continue
			}
			product = models.Product{
				CategoryID: categoryIDs[item.Category],
				Name:       item.Name,
				Price:      models.NewMoneyFromDecimal(price),
				Stock:      -1,
				IsActive:   true,
			}
			if err := models.DB.Create(&product).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", item.Name, err)
				continue
			}
			stdLog.Printf("Created product: %s", item.Name)
		} else {
			stdLog.Printf("Product already exists: %s", item.Name)
		}
		productByName[item.Name] = product
	}

	// 添加推广等级
	tiers := []models.AffiliateTier{
		{Name: "Bronze", MinSalesAmount: models.MustMoney("0"), MinSalesCount: 0, CommissionRate: models.MustMoney("10"), CommissionType: constants.CommissionTypePercentage, SortOrder: 1},
		{Name: "Silver", MinSalesAmount: models.MustMoney("500"), MinSalesCount: 5, CommissionRate: models.MustMoney("12.5"), CommissionType: constants.CommissionTypePercentage, SortOrder: 2},
		{Name: "Gold", MinSalesAmount: models.MustMoney("2000"), MinSalesCount: 20, CommissionRate: models.MustMoney("15"), CommissionType: constants.CommissionTypePercentage, SortOrder: 3},
	}
	for _, tier := range tiers {
		var existing models.AffiliateTier
		if err := models.DB.Where("name = ?", tier.Name).First(&existing).Error; err == nil {
			stdLog.Printf("Tier already exists: %s", tier.Name)
			continue
		}
		if err := models.DB.Create(&tier).Error; err != nil {
			stdLog.Printf("Failed to create tier %s: %v", tier.Name, err)
			continue
		}
		stdLog.Printf("Created tier: %s", tier.Name)
	}

	// 添加佣金规则
	softwareProduct := productByName["Team License"]
	rules := []models.AffiliateCommissionRule{
		{
			Name:     "New customer boost",
			Priority: 100,
			IsActive: true,
			Conditions: models.RuleConditions{
				models.CustomerTypeCondition{CustomerType: constants.CustomerTypeNew},
				models.MinOrderAmountCondition{Amount: models.MustMoney("100")},
			},
			Action: models.RuleAction{Type: constants.CommissionTypePercentage, Amount: models.MustMoney("20")},
		},
		{
			Name:     "Course flat bonus",
			Priority: 50,
			IsActive: true,
			Conditions: models.RuleConditions{
				models.CategoryCondition{CategoryIDs: []uint{categoryIDs["Courses"]}},
			},
			Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("15")},
		},
	}
	if softwareProduct.ID != 0 {
		start := time.Now().AddDate(0, 0, -7)
		end := time.Now().AddDate(0, 1, 0)
		rules = append(rules, models.AffiliateCommissionRule{
			Name:      "Team license launch",
			Priority:  80,
			IsActive:  true,
			StartDate: &start,
			EndDate:   &end,
			Conditions: models.RuleConditions{
				models.ProductCondition{ProductIDs: []uint{softwareProduct.ID}},
			},
			Action: models.RuleAction{Type: constants.CommissionTypePercentage, Amount: models.MustMoney("25")},
		})
	}
	for _, rule := range rules {
		var existing models.AffiliateCommissionRule
		if err := models.DB.Where("name = ?", rule.Name).First(&existing).Error; err == nil {
			stdLog.Printf("Commission rule already exists: %s", rule.Name)
			continue
		}
		if err := models.DB.Create(&rule).Error; err != nil {
			stdLog.Printf("Failed to create commission rule %s: %v", rule.Name, err)
			continue
		}
		stdLog.Printf("Created commission rule: %s", rule.Name)
	}

	// 添加用户
	emails := []string{
		"alice@example.com",
		"bob@example.com",
		"carol@example.com",
		"dave@example.com",
		"erin@example.com",
		"buyer1@example.com",
		"buyer2@example.com",
		"buyer3@example.com",
	}
	userIDs := map[string]uint{}
	for _, email := range emails {
		var user models.User
		if err := models.DB.Where("email = ?", email).First(&user).Error; err != nil {
			user = models.User{Email: email, DisplayName: email[:len(email)-len("@example.com")], Status: "active"}
			if err := models.DB.Create(&user).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", email, err)
				continue
			}
			stdLog.Printf("Created user: %s", email)
		}
		userIDs[email] = user.ID
	}

	// 添加推广网络（上级必须先于下级创建）
	affiliates := []seedAffiliate{
		{Email: "alice@example.com", Name: "Alice", Slug: "ALICE01", Rate: "10", Status: constants.AffiliateStatusActive},
		{Email: "bob@example.com", Name: "Bob", Slug: "BOB0001", Rate: "8", ParentSlug: "ALICE01", Status: constants.AffiliateStatusActive},
		{Email: "carol@example.com", Name: "Carol", Slug: "CAROL01", Rate: "8", ParentSlug: "BOB0001", Status: constants.AffiliateStatusActive},
		{Email: "dave@example.com", Name: "Dave", Slug: "DAVE001", Rate: "5", ParentSlug: "ALICE01", Status: constants.AffiliateStatusPending},
		{Email: "erin@example.com", Name: "Erin", Slug: "ERIN001", Rate: "5", Status: constants.AffiliateStatusBanned},
	}
	accounts := map[string]*models.AffiliateAccount{}
	for _, item := range affiliates {
		var existing models.AffiliateAccount
		if err := models.DB.Where("slug = ?", item.Slug).First(&existing).Error; err == nil {
			accounts[item.Slug] = &existing
			stdLog.Printf("Affiliate already exists: %s", item.Slug)
			continue
		}
		userID, ok := userIDs[item.Email]
		if !ok {
			stdLog.Printf("Skip affiliate %s: user missing", item.Slug)
			continue
		}
		parent := accounts[item.ParentSlug]
		account := &models.AffiliateAccount{
			UserID:         userID,
			Name:           item.Name,
			Slug:           item.Slug,
			Balance:        models.ZeroMoney(),
			TotalEarnings:  models.ZeroMoney(),
			CommissionRate: models.MustMoney(item.Rate),
			CommissionType: constants.CommissionTypePercentage,
			MLMPath:        service.BuildMLMPath(parent, userID),
			Status:         item.Status,
			RiskFlags:      models.StringList{},
		}
		if parent != nil {
			account.ParentID = &parent.ID
			account.MLMLevel = parent.MLMLevel + 1
		}
		if err := models.DB.Create(account).Error; err != nil {
			stdLog.Printf("Failed to create affiliate %s: %v", item.Slug, err)
			continue
		}
		accounts[item.Slug] = account
		stdLog.Printf("Created affiliate: %s (path %s)", item.Slug, account.MLMPath)
	}

	// 添加待入账订单（通过 /api/affiliate/process-order 入账）
	orders := []seedOrder{
		{OrderNo: "SEED-1001", BuyerEmail: "buyer1@example.com", AffiliateSlug: "CAROL01", Status: constants.OrderStatusPaid, ProductName: "Pro License", Quantity: 1, PaidDaysAgo: 40},
		{OrderNo: "SEED-1002", BuyerEmail: "buyer2@example.com", AffiliateSlug: "BOB0001", Status: constants.OrderStatusPaid, ProductName: "Growth Course", Quantity: 2, PaidDaysAgo: 3},
		{OrderNo: "SEED-1003", BuyerEmail: "buyer3@example.com", AffiliateSlug: "ALICE01", Status: constants.OrderStatusPaid, ProductName: "Team License", Quantity: 1, PaidDaysAgo: 1},
		{OrderNo: "SEED-1004", BuyerEmail: "buyer1@example.com", AffiliateSlug: "ALICE01", Status: constants.OrderStatusPending, ProductName: "Landing Page Kit", Quantity: 3},
	}
	for _, item := range orders {
		var existing models.Order
		if err := models.DB.Where("order_no = ?", item.OrderNo).First(&existing).Error; err == nil {
			stdLog.Printf("Order already exists: %s", item.OrderNo)
			continue
		}
		product, ok := productByName[item.ProductName]
		if !ok {
			stdLog.Printf("Skip order %s: product missing", item.OrderNo)
			continue
		}
		total := product.Price.Mul(models.NewMoneyFromInt(int64(item.Quantity)))
		order := models.Order{
			OrderNo:       item.OrderNo,
			UserID:        userIDs[item.BuyerEmail],
			Status:        item.Status,
			Currency:      "USD",
			TotalAmount:   total,
			AffiliateSlug: item.AffiliateSlug,
			PaymentRef:    fmt.Sprintf("seed_%s", item.OrderNo),
		}
		if item.Status == constants.OrderStatusPaid {
			paidAt := time.Now().AddDate(0, 0, -item.PaidDaysAgo)
			order.PaidAt = &paidAt
		}
		if err := models.DB.Create(&order).Error; err != nil {
			stdLog.Printf("Failed to create order %s: %v", item.OrderNo, err)
			continue
		}
		orderItem := models.OrderItem{
			OrderID:    order.ID,
			ProductID:  product.ID,
			CategoryID: product.CategoryID,
			Quantity:   item.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: total,
		}
		if err := models.DB.Create(&orderItem).Error; err != nil {
			stdLog.Printf("Failed to create order item for %s: %v", item.OrderNo, err)
			continue
		}
		stdLog.Printf("Created order: %s (%s %s)", item.OrderNo, order.Currency, total.String())
	}

	stdLog.Printf("Seed completed")
}
