package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTierPicksHighestQualified(t *testing.T) {
	tiers := []models.AffiliateTier{
		{ID: 1, Name: "Bronze", MinSalesAmount: models.ZeroMoney()},
		{ID: 2, Name: "Silver", MinSalesAmount: models.MustMoney("100"), MinSalesCount: 2},
		{ID: 3, Name: "Gold", MinSalesAmount: models.MustMoney("1000"), MinSalesCount: 10},
	}
	cases := []struct {
		earnings string
		count    int64
		want     string
	}{
		{"0", 0, "Bronze"},
		{"150", 1, "Bronze"},
		{"150", 2, "Silver"},
		{"5000", 9, "Silver"},
		{"1000", 10, "Gold"},
	}
	for _, tc := range cases {
		got := ResolveTier(tiers, models.MustMoney(tc.earnings), tc.count)
		require.NotNil(t, got)
		assert.Equal(t, tc.want, got.Name, "earnings=%s count=%d", tc.earnings, tc.count)
	}
	assert.Nil(t, ResolveTier(tiers[1:], models.MustMoney("10"), 0))
	assert.Nil(t, ResolveTier(nil, models.MustMoney("10"), 0))
}

func createPaidReferrals(t *testing.T, env *serviceTestEnv, affiliateID uint, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		referral := &models.Referral{
			AffiliateID:      affiliateID,
			OrderID:          uint(affiliateID*100) + uint(i) + 1,
			TotalOrderAmount: models.MustMoney("100"),
			CommissionAmount: models.MustMoney("10"),
			CommissionRate:   models.MustMoney("10"),
			CommissionType:   constants.CommissionTypePercentage,
			Status:           constants.ReferralStatusPaid,
			PaidAt:           &now,
		}
		require.NoError(t, env.referrals.Create(referral))
	}
}

func TestAutoUpgradeTiersNeverDowngrades(t *testing.T) {
	env := newServiceTestEnv(t, "tier_upgrade")
	ctx := context.Background()
	silver, err := env.tier.CreateTier(TierInput{Name: "Silver", MinSalesAmount: models.MustMoney("100"), MinSalesCount: 2, CommissionRate: models.MustMoney("12"), CommissionType: "percentage"})
	require.NoError(t, err)
	gold, err := env.tier.CreateTier(TierInput{Name: "Gold", MinSalesAmount: models.MustMoney("1000"), MinSalesCount: 5, CommissionRate: models.MustMoney("15"), CommissionType: constants.CommissionTypePercentage})
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionTypePercentage, silver.CommissionType)

	climber := env.createAffiliate(t, 1, nil, "10")
	require.NoError(t, env.affiliates.IncrementBalance(climber.ID, models.MustMoney("200"), models.MustMoney("200"), time.Now()))
	createPaidReferrals(t, env, climber.ID, 3)

	veteran := env.createAffiliate(t, 2, nil, "10")
	require.NoError(t, env.affiliates.UpdateTier(veteran.ID, gold.ID, time.Now()))
	require.NoError(t, env.affiliates.IncrementBalance(veteran.ID, models.MustMoney("150"), models.MustMoney("150"), time.Now()))
	createPaidReferrals(t, env, veteran.ID, 2)

	newcomer := env.createAffiliate(t, 3, nil, "10")

	summary, err := env.tier.AutoUpgradeTiers(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 1, summary.Upgraded)

	require.NotNil(t, env.reload(t, climber.ID).TierID)
	assert.Equal(t, silver.ID, *env.reload(t, climber.ID).TierID)
	assert.Equal(t, gold.ID, *env.reload(t, veteran.ID).TierID)
	assert.Nil(t, env.reload(t, newcomer.ID).TierID)

	summary, err = env.tier.AutoUpgradeTiers(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, summary.Upgraded)
}

func TestTierCRUDValidation(t *testing.T) {
	env := newServiceTestEnv(t, "tier_crud")
	tier, err := env.tier.CreateTier(TierInput{Name: "Silver", CommissionRate: models.MustMoney("12"), CommissionType: constants.CommissionTypePercentage})
	require.NoError(t, err)

	_, err = env.tier.CreateTier(TierInput{Name: " Silver ", CommissionRate: models.MustMoney("1"), CommissionType: constants.CommissionTypeFixed})
	assert.True(t, errors.Is(err, ErrTierNameExists))
	_, err = env.tier.CreateTier(TierInput{Name: "Over", CommissionRate: models.MustMoney("120"), CommissionType: constants.CommissionTypePercentage})
	assert.True(t, errors.Is(err, ErrTierInvalid))
	_, err = env.tier.CreateTier(TierInput{Name: "Neg", MinSalesCount: -1, CommissionType: constants.CommissionTypeFixed})
	assert.True(t, errors.Is(err, ErrTierInvalid))

	updated, err := env.tier.UpdateTier(tier.ID, TierInput{Name: "Silver", CommissionRate: models.MustMoney("120"), CommissionType: constants.CommissionTypeFixed})
	require.NoError(t, err)
	assert.Equal(t, "120.00", updated.CommissionRate.String())
	_, err = env.tier.UpdateTier(999, TierInput{Name: "x", CommissionType: constants.CommissionTypeFixed})
	assert.True(t, errors.Is(err, ErrNotFound))

	aff := env.createAffiliate(t, 1, nil, "10")
	require.NoError(t, env.affiliates.UpdateTier(aff.ID, tier.ID, time.Now()))
	assert.True(t, errors.Is(env.tier.DeleteTier(tier.ID), ErrTierInUse))

	other, err := env.tier.CreateTier(TierInput{Name: "Unused", CommissionType: constants.CommissionTypeFixed})
	require.NoError(t, err)
	require.NoError(t, env.tier.DeleteTier(other.ID))
	assert.True(t, errors.Is(env.tier.DeleteTier(other.ID), ErrNotFound))
}
