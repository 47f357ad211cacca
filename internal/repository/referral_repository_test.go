package repository

import (
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"
)

func TestReferralRepositoryApproveAndPay(t *testing.T) {
	db := setupRepositoryTestDB(t, "referral_repo_lifecycle")
	repo := NewReferralRepository(db)
	account := createTestAffiliate(t, db, 1, nil)
	now := time.Now().UTC().Truncate(time.Second)

	old := models.Referral{
		AffiliateID:      account.ID,
		OrderID:          1,
		TotalOrderAmount: models.MustMoney("100"),
		CommissionAmount: models.MustMoney("10"),
		CommissionType:   constants.CommissionTypePercentage,
		Status:           constants.ReferralStatusPending,
		CreatedAt:        now.Add(-10 * 24 * time.Hour),
	}
	fresh := models.Referral{
		AffiliateID:      account.ID,
		OrderID:          2,
		TotalOrderAmount: models.MustMoney("50"),
		CommissionAmount: models.MustMoney("5"),
		CommissionType:   constants.CommissionTypePercentage,
		Status:           constants.ReferralStatusPending,
		CreatedAt:        now.Add(-time.Hour),
	}
	if err := repo.Create(&old); err != nil {
		t.Fatalf("create old referral failed: %v", err)
	}
	if err := repo.Create(&fresh); err != nil {
		t.Fatalf("create fresh referral failed: %v", err)
	}

	approved, err := repo.ApproveDue(now.Add(-7*24*time.Hour), now)
	if err != nil {
		t.Fatalf("approve due failed: %v", err)
	}
	if approved != 1 {
		t.Fatalf("approved want 1 got %d", approved)
	}

	ids, err := repo.ListAffiliateIDsWithApproved()
	if err != nil {
		t.Fatalf("list affiliate ids failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != account.ID {
		t.Fatalf("unexpected affiliate ids %v", ids)
	}

	rows, err := repo.ListApprovedForUpdate(account.ID)
	if err != nil {
		t.Fatalf("list approved failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != old.ID {
		t.Fatalf("unexpected approved rows %+v", rows)
	}
	if err := repo.MarkPaid([]uint{old.ID}, now); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	paid, err := repo.CountPaidDirect(account.ID)
	if err != nil {
		t.Fatalf("count paid failed: %v", err)
	}
	if paid != 1 {
		t.Fatalf("paid count want 1 got %d", paid)
	}
}

func TestReferralRepositoryUniqueOrderAffiliate(t *testing.T) {
	db := setupRepositoryTestDB(t, "referral_repo_unique")
	repo := NewReferralRepository(db)
	account := createTestAffiliate(t, db, 1, nil)

	first := models.Referral{AffiliateID: account.ID, OrderID: 7, CommissionType: constants.CommissionTypeFixed, Status: constants.ReferralStatusPending}
	if err := repo.Create(&first); err != nil {
		t.Fatalf("create referral failed: %v", err)
	}
	dup := models.Referral{AffiliateID: account.ID, OrderID: 7, CommissionType: constants.CommissionTypeFixed, Status: constants.ReferralStatusPending}
	if err := repo.Create(&dup); err == nil {
		t.Fatalf("expected unique violation for duplicate order referral")
	}
}
