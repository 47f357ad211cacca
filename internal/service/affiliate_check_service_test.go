package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/cache"
	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPendingReferral(t *testing.T, env *serviceTestEnv, affiliateID, orderID uint, createdAt time.Time) *models.Referral {
	t.Helper()
	referral := &models.Referral{
		AffiliateID:      affiliateID,
		OrderID:          orderID,
		TotalOrderAmount: models.MustMoney("100"),
		CommissionAmount: models.MustMoney("10"),
		CommissionRate:   models.MustMoney("10"),
		CommissionType:   constants.CommissionTypePercentage,
		Status:           constants.ReferralStatusPending,
		CreatedAt:        createdAt,
	}
	require.NoError(t, env.referrals.Create(referral))
	return referral
}

func TestAffiliateCheckApprovesDueReferrals(t *testing.T) {
	env := newServiceTestEnv(t, "check_approve")
	env.config.cfg.HoldingDays = 7
	aff := env.createAffiliate(t, 1, nil, "10")
	bronze := &models.AffiliateTier{Name: "Bronze", MinSalesAmount: models.ZeroMoney(), CommissionRate: models.MustMoney("5"), CommissionType: constants.CommissionTypePercentage}
	require.NoError(t, env.tiers.Create(bronze))
	now := time.Now()
	due := createPendingReferral(t, env, aff.ID, 1, now.AddDate(0, 0, -10))
	fresh := createPendingReferral(t, env, aff.ID, 2, now.AddDate(0, 0, -2))

	report, err := env.check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ApprovedReferrals)
	assert.Equal(t, 1, report.Tiers.Checked)
	assert.Equal(t, 1, report.Tiers.Upgraded)
	require.NotNil(t, env.reload(t, aff.ID).TierID)
	assert.Equal(t, bronze.ID, *env.reload(t, aff.ID).TierID)
	assert.Equal(t, 1, report.Risk.Checked)
	assert.Zero(t, report.Payout.Attempted)
	assert.Empty(t, report.Errors)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	var stored []models.Referral
	require.NoError(t, env.db.Order("id asc").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Equal(t, due.ID, stored[0].ID)
	assert.Equal(t, constants.ReferralStatusApproved, stored[0].Status)
	assert.NotNil(t, stored[0].ApprovedAt)
	assert.Equal(t, fresh.ID, stored[1].ID)
	assert.Equal(t, constants.ReferralStatusPending, stored[1].Status)
}

func TestAffiliateCheckSkipsWhenProgramDisabled(t *testing.T) {
	env := newServiceTestEnv(t, "check_disabled")
	env.config.cfg.Enabled = false
	aff := env.createAffiliate(t, 1, nil, "10")
	createPendingReferral(t, env, aff.ID, 1, time.Now().AddDate(0, 0, -60))

	report, err := env.check.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.ApprovedReferrals)
	assert.Zero(t, report.Tiers.Checked)

	var pending int64
	require.NoError(t, env.db.Model(&models.Referral{}).Where("status = ?", constants.ReferralStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestAffiliateCheckRunsAutoPayout(t *testing.T) {
	env := newServiceTestEnv(t, "check_payout")
	env.config.cfg.AutoApprovePayout = true
	env.config.cfg.HoldingDays = 0
	aff := env.createAffiliate(t, 1, nil, "10")
	createApprovedReferral(t, env, aff.ID, 1, "60")

	report, err := env.check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Payout.Paid)
	assertMoney(t, "0", env.reload(t, aff.ID).Balance)
}

func TestAffiliateCheckRunLockedSkipsWhenBusy(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache.UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() {
		cache.Reset()
		mr.Close()
	})

	env := newServiceTestEnv(t, "check_locked")
	ctx := context.Background()

	held, err := cache.AcquireLock(ctx, affiliateCheckLockName, time.Minute)
	require.NoError(t, err)
	_, err = env.check.RunLocked(ctx, time.Minute)
	assert.True(t, errors.Is(err, ErrCheckInProgress))

	require.NoError(t, held.Release(ctx))
	report, err := env.check.RunLocked(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.False(t, mr.Exists("test:lock:"+affiliateCheckLockName))
}
