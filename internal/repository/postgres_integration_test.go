//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.AffiliateLedger{},
		&models.Referral{},
		&models.AffiliateClick{},
		&models.AffiliateAccount{},
		&models.AffiliateTier{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(
		&models.AffiliateTier{},
		&models.AffiliateAccount{},
		&models.AffiliateLedger{},
		&models.Referral{},
		&models.AffiliateClick{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresConcurrentBalanceIncrements(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewAffiliateRepository(db)
	ledgerRepo := NewLedgerRepository(db)

	account := &models.AffiliateAccount{
		UserID:         1,
		Slug:           "PGLOCK1",
		MLMPath:        constants.MLMRootPath + ".1",
		CommissionType: constants.CommissionTypePercentage,
		Status:         constants.AffiliateStatusActive,
	}
	if err := repo.Create(account); err != nil {
		t.Fatalf("create account failed: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Transaction(func(tx *gorm.DB) error {
				txRepo := repo.WithTx(tx)
				locked, err := txRepo.GetByIDForUpdate(account.ID)
				if err != nil {
					return err
				}
				amount := models.MustMoney("1.10")
				now := time.Now()
				if err := txRepo.IncrementBalance(locked.ID, amount, amount, now); err != nil {
					return err
				}
				return ledgerRepo.WithTx(tx).Create(&models.AffiliateLedger{
					AffiliateID:   locked.ID,
					Type:          constants.LedgerTypeCommission,
					Amount:        amount,
					BalanceBefore: locked.Balance,
					BalanceAfter:  locked.Balance.Add(amount),
				})
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent posting failed: %v", err)
		}
	}

	stored, err := repo.GetByID(account.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload account failed: %v", err)
	}
	if stored.Balance.String() != "22.00" {
		t.Fatalf("balance want 22.00 got %s", stored.Balance)
	}

	entries, err := ledgerRepo.ListChronological(account.ID)
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	running := models.ZeroMoney()
	for _, entry := range entries {
		if entry.BalanceBefore.Cmp(running) != 0 {
			t.Fatalf("ledger chain broken at %d: before=%s running=%s", entry.ID, entry.BalanceBefore, running)
		}
		running = running.Add(entry.Amount)
	}
}

func TestPostgresDescendantPathQuery(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewAffiliateRepository(db)

	root := &models.AffiliateAccount{UserID: 1, Slug: "PGROOT", MLMPath: "root.1", Status: constants.AffiliateStatusActive, CommissionType: constants.CommissionTypePercentage}
	if err := repo.Create(root); err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	child := &models.AffiliateAccount{UserID: 2, Slug: "PGCHILD", ParentID: &root.ID, MLMPath: "root.1.2", MLMLevel: 1, Status: constants.AffiliateStatusActive, CommissionType: constants.CommissionTypePercentage}
	if err := repo.Create(child); err != nil {
		t.Fatalf("create child failed: %v", err)
	}
	other := &models.AffiliateAccount{UserID: 11, Slug: "PGOTHER", MLMPath: "root.11", Status: constants.AffiliateStatusActive, CommissionType: constants.CommissionTypePercentage}
	if err := repo.Create(other); err != nil {
		t.Fatalf("create other failed: %v", err)
	}

	count, err := repo.CountDescendants(root.MLMPath)
	if err != nil {
		t.Fatalf("count descendants failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("descendants want 1 got %d", count)
	}
}
