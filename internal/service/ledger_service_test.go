package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"gorm.io/gorm"
)

func postLedger(t *testing.T, env *serviceTestEnv, input LedgerPostInput) (*models.AffiliateLedger, error) {
	t.Helper()
	var entry *models.AffiliateLedger
	err := env.affiliates.Transaction(func(tx *gorm.DB) error {
		posted, err := env.ledger.PostTx(tx, input)
		entry = posted
		return err
	})
	return entry, err
}

func TestLedgerPostChainsBalances(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_chain")
	aff := env.createAffiliate(t, 1, nil, "10")

	first, err := postLedger(t, env, LedgerPostInput{AffiliateID: aff.ID, Type: constants.LedgerTypeCommission, Amount: models.MustMoney("12.50"), ReferenceID: "c1"})
	if err != nil {
		t.Fatalf("post commission failed: %v", err)
	}
	second, err := postLedger(t, env, LedgerPostInput{AffiliateID: aff.ID, Type: constants.LedgerTypeAdjustment, Amount: models.MustMoney("-2.50")})
	if err != nil {
		t.Fatalf("post adjustment failed: %v", err)
	}
	assertMoney(t, "0", first.BalanceBefore)
	assertMoney(t, "12.5", first.BalanceAfter)
	assertMoney(t, "12.5", second.BalanceBefore)
	assertMoney(t, "10", second.BalanceAfter)

	account := env.reload(t, aff.ID)
	assertMoney(t, "10", account.Balance)
	assertMoney(t, "12.5", account.TotalEarnings)

	report, err := env.ledger.ReconcileBalance(context.Background(), aff.ID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !report.Consistent || report.BrokenAt != nil {
		t.Fatalf("expected consistent ledger, got %+v", report)
	}
}

func TestLedgerPostIsIdempotentByReference(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_idempotent")
	aff := env.createAffiliate(t, 1, nil, "10")
	input := LedgerPostInput{AffiliateID: aff.ID, Type: constants.LedgerTypeBonus, Amount: models.MustMoney("5"), ReferenceID: "bonus-1"}

	first, err := postLedger(t, env, input)
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	second, err := postLedger(t, env, input)
	if err != nil {
		t.Fatalf("repeat post failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("repeat post should return existing entry")
	}
	assertMoney(t, "5", env.reload(t, aff.ID).Balance)
}

func TestLedgerPostRejectsInvalidInput(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_invalid")
	aff := env.createAffiliate(t, 1, nil, "10")

	if _, err := postLedger(t, env, LedgerPostInput{AffiliateID: aff.ID, Type: "BOGUS", Amount: models.MustMoney("1")}); !errors.Is(err, ErrLedgerTypeInvalid) {
		t.Fatalf("want ErrLedgerTypeInvalid got %v", err)
	}
	if _, err := postLedger(t, env, LedgerPostInput{AffiliateID: aff.ID, Type: constants.LedgerTypeBonus, Amount: models.ZeroMoney()}); !errors.Is(err, ErrLedgerAmountInvalid) {
		t.Fatalf("want ErrLedgerAmountInvalid got %v", err)
	}
	if _, err := postLedger(t, env, LedgerPostInput{AffiliateID: aff.ID, Type: constants.LedgerTypePayout, Amount: models.MustMoney("-1")}); !errors.Is(err, ErrLedgerInsufficientBalance) {
		t.Fatalf("want ErrLedgerInsufficientBalance got %v", err)
	}
	if _, err := postLedger(t, env, LedgerPostInput{AffiliateID: 999, Type: constants.LedgerTypeBonus, Amount: models.MustMoney("1")}); !errors.Is(err, ErrAffiliateNotFound) {
		t.Fatalf("want ErrAffiliateNotFound got %v", err)
	}
	assertMoney(t, "0", env.reload(t, aff.ID).Balance)
}

func TestCreateAdjustmentValidation(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_adjustment")
	aff := env.createAffiliate(t, 1, nil, "10")
	ctx := context.Background()

	if _, err := env.ledger.CreateAdjustment(ctx, LedgerAdjustmentInput{AffiliateID: aff.ID, Type: constants.LedgerTypePayout, Amount: models.MustMoney("1")}); !errors.Is(err, ErrLedgerTypeInvalid) {
		t.Fatalf("want ErrLedgerTypeInvalid got %v", err)
	}
	if _, err := env.ledger.CreateAdjustment(ctx, LedgerAdjustmentInput{AffiliateID: aff.ID, Type: constants.LedgerTypeBonus, Amount: models.MustMoney("-1")}); !errors.Is(err, ErrLedgerAmountInvalid) {
		t.Fatalf("want ErrLedgerAmountInvalid got %v", err)
	}
	entry, err := env.ledger.CreateAdjustment(ctx, LedgerAdjustmentInput{AffiliateID: aff.ID, Amount: models.MustMoney("3")})
	if err != nil {
		t.Fatalf("adjustment failed: %v", err)
	}
	if entry.Type != constants.LedgerTypeAdjustment {
		t.Fatalf("default type should be ADJUSTMENT, got %s", entry.Type)
	}
	assertMoney(t, "0", env.reload(t, aff.ID).TotalEarnings)
}

func TestReconcileDetectsBrokenChain(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_broken")
	aff := env.createAffiliate(t, 1, nil, "10")
	if _, err := postLedger(t, env, LedgerPostInput{AffiliateID: aff.ID, Type: constants.LedgerTypeBonus, Amount: models.MustMoney("5")}); err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if err := env.db.Model(&models.AffiliateAccount{}).Where("id = ?", aff.ID).Update("balance", models.MustMoney("7")).Error; err != nil {
		t.Fatalf("tamper balance failed: %v", err)
	}

	report, err := env.ledger.ReconcileBalance(context.Background(), aff.ID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Consistent {
		t.Fatalf("tampered balance should be inconsistent")
	}
	assertMoney(t, "5", report.Replayed)
	assertMoney(t, "7", report.Stored)
}

func createApprovedReferral(t *testing.T, env *serviceTestEnv, affiliateID, orderID uint, commission string) {
	t.Helper()
	now := time.Now()
	referral := &models.Referral{
		AffiliateID:      affiliateID,
		OrderID:          orderID,
		TotalOrderAmount: models.MustMoney("100"),
		CommissionAmount: models.MustMoney(commission),
		CommissionRate:   models.MustMoney("10"),
		CommissionType:   constants.CommissionTypePercentage,
		Status:           constants.ReferralStatusApproved,
		ApprovedAt:       &now,
	}
	if err := env.referrals.Create(referral); err != nil {
		t.Fatalf("create referral failed: %v", err)
	}
	if _, err := postLedger(t, env, LedgerPostInput{
		AffiliateID: affiliateID,
		Type:        constants.LedgerTypeCommission,
		Amount:      models.MustMoney(commission),
		ReferenceID: orderLedgerReference(orderID, affiliateID),
	}); err != nil {
		t.Fatalf("post commission failed: %v", err)
	}
}

func TestPayoutApproved(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_payout")
	aff := env.createAffiliate(t, 1, nil, "10")
	ctx := context.Background()

	if _, err := env.ledger.PayoutApproved(ctx, aff.ID, ""); !errors.Is(err, ErrNothingToPayout) {
		t.Fatalf("want ErrNothingToPayout got %v", err)
	}

	createApprovedReferral(t, env, aff.ID, 1, "30")
	if _, err := env.ledger.PayoutApproved(ctx, aff.ID, ""); !errors.Is(err, ErrPayoutBelowMinimum) {
		t.Fatalf("want ErrPayoutBelowMinimum got %v", err)
	}

	createApprovedReferral(t, env, aff.ID, 2, "25")
	result, err := env.ledger.PayoutApproved(ctx, aff.ID, "monthly")
	if err != nil {
		t.Fatalf("payout failed: %v", err)
	}
	assertMoney(t, "55", result.Amount)
	if result.ReferralCount != 2 || result.Entry.Type != constants.LedgerTypePayout {
		t.Fatalf("unexpected payout result %+v", result)
	}
	account := env.reload(t, aff.ID)
	assertMoney(t, "0", account.Balance)
	assertMoney(t, "55", account.TotalEarnings)

	if _, err := env.ledger.PayoutApproved(ctx, aff.ID, ""); !errors.Is(err, ErrNothingToPayout) {
		t.Fatalf("paid referrals should not be paid twice, got %v", err)
	}
}

func TestAutoPayoutRespectsSetting(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_auto_payout")
	big := env.createAffiliate(t, 1, nil, "10")
	small := env.createAffiliate(t, 2, nil, "10")
	createApprovedReferral(t, env, big.ID, 1, "80")
	createApprovedReferral(t, env, small.ID, 2, "5")

	summary, err := env.ledger.AutoPayout(context.Background())
	if err != nil {
		t.Fatalf("auto payout failed: %v", err)
	}
	if summary.Attempted != 0 {
		t.Fatalf("auto payout disabled by default, got %+v", summary)
	}

	env.config.cfg.AutoApprovePayout = true
	summary, err = env.ledger.AutoPayout(context.Background())
	if err != nil {
		t.Fatalf("auto payout failed: %v", err)
	}
	if summary.Attempted != 2 || summary.Paid != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	assertMoney(t, "80", summary.Total)
	assertMoney(t, "5", env.reload(t, small.ID).Balance)
}

func TestPayoutReferenceCoversReferralSet(t *testing.T) {
	first := payoutReference(1, []uint{3, 1})
	if first != payoutReference(1, []uint{1, 3}) {
		t.Fatalf("reference should not depend on referral order")
	}
	if first == payoutReference(1, []uint{2, 3}) {
		t.Fatalf("different referral sets sharing a max id must not collide")
	}
	if first == payoutReference(2, []uint{1, 3}) {
		t.Fatalf("reference must include the affiliate")
	}
}

func TestPayoutApprovedPostsEachBatch(t *testing.T) {
	env := newServiceTestEnv(t, "ledger_payout_batches")
	env.config.cfg.MinPayoutAmount = models.MustMoney("1")
	aff := env.createAffiliate(t, 1, nil, "10")
	ctx := context.Background()

	createApprovedReferral(t, env, aff.ID, 1, "20")
	first, err := env.ledger.PayoutApproved(ctx, aff.ID, "")
	if err != nil {
		t.Fatalf("first payout failed: %v", err)
	}
	createApprovedReferral(t, env, aff.ID, 2, "15")
	second, err := env.ledger.PayoutApproved(ctx, aff.ID, "")
	if err != nil {
		t.Fatalf("second payout failed: %v", err)
	}
	if first.Entry.ID == second.Entry.ID || *first.Entry.ReferenceID == *second.Entry.ReferenceID {
		t.Fatalf("expected distinct payout entries, got %+v and %+v", first.Entry, second.Entry)
	}
	assertMoney(t, "15", second.Amount)
	assertMoney(t, "0", env.reload(t, aff.ID).Balance)

	var payouts int64
	if err := env.db.Model(&models.AffiliateLedger{}).Where("type = ?", constants.LedgerTypePayout).Count(&payouts).Error; err != nil {
		t.Fatalf("count payouts failed: %v", err)
	}
	if payouts != 2 {
		t.Fatalf("expected 2 payout entries, got %d", payouts)
	}
}
