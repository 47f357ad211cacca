package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAffiliateWithSponsor(t *testing.T) {
	env := newServiceTestEnv(t, "network_register")
	ctx := context.Background()
	sponsor := env.createAffiliate(t, 1, nil, "10")

	account, err := env.network.RegisterAffiliate(ctx, RegisterInput{UserID: 2, Name: "Bob", ReferralCode: " " + sponsor.Slug + " "})
	require.NoError(t, err)
	require.NotNil(t, account.ParentID)
	assert.Equal(t, sponsor.ID, *account.ParentID)
	assert.Equal(t, 1, account.MLMLevel)
	assert.Equal(t, sponsor.MLMPath+".2", account.MLMPath)
	assert.Equal(t, constants.AffiliateStatusActive, account.Status)
	assert.Len(t, account.Slug, affiliateCodeLength)
	assert.Equal(t, "10.00", account.CommissionRate.String())

	_, err = env.network.RegisterAffiliate(ctx, RegisterInput{UserID: 2})
	assert.True(t, errors.Is(err, ErrAffiliateExists))

	_, err = env.network.RegisterAffiliate(ctx, RegisterInput{})
	assert.True(t, errors.Is(err, ErrAffiliateInputInvalid))
}

func TestRegisterAffiliateFallsBackToRoot(t *testing.T) {
	env := newServiceTestEnv(t, "network_register_root")
	env.config.cfg.AutoApproveAffiliates = false
	ctx := context.Background()
	inactive := env.createAffiliate(t, 1, nil, "10")
	env.setStatus(t, inactive.ID, constants.AffiliateStatusPending)

	for i, code := range []string{"", "UNKNOWN", inactive.Slug} {
		userID := uint(10 + i)
		account, err := env.network.RegisterAffiliate(ctx, RegisterInput{UserID: userID, ReferralCode: code})
		require.NoError(t, err)
		assert.Nil(t, account.ParentID, "code %q", code)
		assert.Equal(t, 0, account.MLMLevel)
		assert.Equal(t, fmt.Sprintf("%s.%d", constants.MLMRootPath, userID), account.MLMPath)
		assert.Equal(t, constants.AffiliateStatusPending, account.Status)
	}
}

func TestRegisterAffiliateRespectsDepthCap(t *testing.T) {
	env := newServiceTestEnv(t, "network_depth")
	env.network = NewNetworkService(env.affiliates, env.config, 3)
	root := env.createAffiliate(t, 1, nil, "10")
	mid := env.createAffiliate(t, 2, root, "10")
	deep := env.createAffiliate(t, 3, mid, "10")

	account, err := env.network.RegisterAffiliate(context.Background(), RegisterInput{UserID: 4, ReferralCode: deep.Slug})
	require.NoError(t, err)
	assert.Nil(t, account.ParentID)
}

func TestChangeSponsorRejectsCycles(t *testing.T) {
	env := newServiceTestEnv(t, "network_cycle")
	ctx := context.Background()
	root := env.createAffiliate(t, 1, nil, "10")
	child := env.createAffiliate(t, 2, root, "10")
	grandchild := env.createAffiliate(t, 3, child, "10")

	_, err := env.network.ChangeSponsor(ctx, root.ID, root.ID)
	assert.True(t, errors.Is(err, ErrSponsorCycle))
	_, err = env.network.ChangeSponsor(ctx, root.ID, grandchild.ID)
	assert.True(t, errors.Is(err, ErrSponsorCycle))
	_, err = env.network.ChangeSponsor(ctx, child.ID, 999)
	assert.True(t, errors.Is(err, ErrSponsorInvalid))
	_, err = env.network.ChangeSponsor(ctx, 999, root.ID)
	assert.True(t, errors.Is(err, ErrAffiliateNotFound))
}

func TestChangeSponsorRewritesSubtree(t *testing.T) {
	env := newServiceTestEnv(t, "network_move")
	ctx := context.Background()
	a := env.createAffiliate(t, 1, nil, "10")
	b := env.createAffiliate(t, 2, nil, "10")
	c := env.createAffiliate(t, 3, a, "10")
	d := env.createAffiliate(t, 4, c, "10")

	moved, err := env.network.ChangeSponsor(ctx, c.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "root.2.3", moved.MLMPath)
	assert.Equal(t, 1, moved.MLMLevel)

	reloaded := env.reload(t, d.ID)
	assert.Equal(t, "root.2.3.4", reloaded.MLMPath)
	assert.Equal(t, 2, reloaded.MLMLevel)

	upline, err := env.network.ListUpline(ctx, d.ID, 5)
	require.NoError(t, err)
	require.Len(t, upline, 2)
	assert.Equal(t, c.ID, upline[0].ID)
	assert.Equal(t, b.ID, upline[1].ID)

	detached, err := env.network.ChangeSponsor(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)
	assert.Equal(t, "root.3.4", env.reload(t, d.ID).MLMPath)
}

func TestChangeSponsorDepthCap(t *testing.T) {
	env := newServiceTestEnv(t, "network_move_depth")
	env.network = NewNetworkService(env.affiliates, env.config, 3)
	a := env.createAffiliate(t, 1, nil, "10")
	b := env.createAffiliate(t, 2, a, "10")
	c := env.createAffiliate(t, 3, nil, "10")
	env.createAffiliate(t, 4, c, "10")

	_, err := env.network.ChangeSponsor(context.Background(), c.ID, b.ID)
	assert.True(t, errors.Is(err, ErrMLMDepthExceeded))
}

func TestNetworkTreeAndTeamStats(t *testing.T) {
	env := newServiceTestEnv(t, "network_tree")
	ctx := context.Background()
	root := env.createAffiliate(t, 1, nil, "10")
	l1a := env.createAffiliate(t, 2, root, "10")
	env.createAffiliate(t, 3, root, "10")
	l2 := env.createAffiliate(t, 4, l1a, "10")
	l3 := env.createAffiliate(t, 5, l2, "10")
	env.createAffiliate(t, 6, l3, "10")

	require.NoError(t, env.affiliates.IncrementBalance(l2.ID, models.MustMoney("40"), models.MustMoney("40"), l2.CreatedAt))

	tree, err := env.network.GetNetworkTree(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	var branch *NetworkNode
	for _, child := range tree.Children {
		if child.ID == l1a.ID {
			branch = child
		}
	}
	require.NotNil(t, branch)
	require.Len(t, branch.Children, 1)
	assert.Equal(t, 2, branch.Children[0].Level)
	require.Len(t, branch.Children[0].Children, 1)
	assert.Equal(t, 3, branch.Children[0].Children[0].Level)
	assert.Empty(t, branch.Children[0].Children[0].Children)

	stats, err := env.network.TeamStats(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DirectCount)
	assert.Equal(t, int64(5), stats.TotalDownline)
	assert.Equal(t, "40.00", stats.TeamEarnings.String())

	sponsor, err := env.network.GetSponsor(ctx, l2.ID)
	require.NoError(t, err)
	assert.Equal(t, l1a.ID, sponsor.ID)
	none, err := env.network.GetSponsor(ctx, root.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListUplineStopsOnCycle(t *testing.T) {
	env := newServiceTestEnv(t, "network_upline_cycle")
	a := env.createAffiliate(t, 1, nil, "10")
	b := env.createAffiliate(t, 2, a, "10")
	require.NoError(t, env.db.Model(&models.AffiliateAccount{}).Where("id = ?", a.ID).Update("parent_id", b.ID).Error)

	upline, err := env.network.ListUpline(context.Background(), b.ID, 10)
	require.NoError(t, err)
	assert.Len(t, upline, 1)
	assert.Equal(t, a.ID, upline[0].ID)
}
