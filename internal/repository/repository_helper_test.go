package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T, name string) *gorm.DB {
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

func createTestAffiliate(t *testing.T, db *gorm.DB, userID uint, parent *models.AffiliateAccount) *models.AffiliateAccount {
	t.Helper()
	account := &models.AffiliateAccount{
		UserID:         userID,
		Name:           fmt.Sprintf("affiliate-%d", userID),
		Slug:           fmt.Sprintf("SLUG%d", userID),
		CommissionRate: models.MustMoney("10"),
		CommissionType: constants.CommissionTypePercentage,
		MLMPath:        fmt.Sprintf("%s.%d", constants.MLMRootPath, userID),
		Status:         constants.AffiliateStatusActive,
	}
	if parent != nil {
		account.ParentID = &parent.ID
		account.MLMPath = fmt.Sprintf("%s.%d", parent.MLMPath, userID)
		account.MLMLevel = parent.MLMLevel + 1
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create affiliate failed: %v", err)
	}
	return account
}
