package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAffiliateTestService(env *serviceTestEnv) *AffiliateService {
	return NewAffiliateService(env.affiliates, env.referrals, repository.NewUserRepository(env.db), env.network, env.logSvc)
}

func TestAffiliateRegisterUsesDisplayName(t *testing.T) {
	env := newServiceTestEnv(t, "affiliate_register_name")
	svc := newAffiliateTestService(env)
	user := &models.User{Email: "alice@example.com", DisplayName: "Alice"}
	require.NoError(t, env.db.Create(user).Error)

	account, err := svc.Register(context.Background(), RegisterInput{UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, "Alice", account.Name)

	named, err := svc.Register(context.Background(), RegisterInput{UserID: 99, Name: "Shop Partner"})
	require.NoError(t, err)
	assert.Equal(t, "Shop Partner", named.Name)

	unknown, err := svc.Register(context.Background(), RegisterInput{UserID: 100})
	require.NoError(t, err)
	assert.Equal(t, "affiliate-100", unknown.Name)
}

func TestAffiliateUpdateStatus(t *testing.T) {
	env := newServiceTestEnv(t, "affiliate_status")
	svc := newAffiliateTestService(env)
	ctx := context.Background()
	aff := env.createAffiliate(t, 1, nil, "10")

	_, err := svc.UpdateStatus(ctx, aff.ID, "frozen")
	assert.True(t, errors.Is(err, ErrAffiliateStatusInvalid))
	_, err = svc.UpdateStatus(ctx, 999, "banned")
	assert.True(t, errors.Is(err, ErrAffiliateNotFound))

	updated, err := svc.UpdateStatus(ctx, aff.ID, " banned ")
	require.NoError(t, err)
	assert.Equal(t, constants.AffiliateStatusBanned, updated.Status)

	var count int64
	require.NoError(t, env.db.Model(&models.SystemLog{}).Where("source = ?", "affiliate_admin").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	detail, err := svc.GetDetail(ctx, aff.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Sponsor)
	assert.Equal(t, 0, detail.Team.DirectCount)
}
