package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackClickDedupesWithinWindow(t *testing.T) {
	env := newServiceTestEnv(t, "risk_click")
	ctx := context.Background()
	aff := env.createAffiliate(t, 1, nil, "10")
	now := time.Now()
	env.risk.now = func() time.Time { return now }

	first, err := env.risk.TrackClick(ctx, ClickInput{Slug: "aff1", IP: "10.0.0.1", Path: "/landing"})
	require.NoError(t, err)
	assert.True(t, first.Tracked)
	assert.Equal(t, aff.ID, first.AffiliateID)
	assert.Equal(t, 30, first.CookieDays)

	now = now.Add(30 * time.Second)
	second, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.False(t, second.Tracked)
	assert.True(t, second.Duplicate)

	other, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.True(t, other.Tracked)

	now = now.Add(2 * time.Minute)
	later, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, later.Tracked)

	var count int64
	require.NoError(t, env.db.Model(&models.AffiliateClick{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestTrackClickIgnoresUnknownAndInactive(t *testing.T) {
	env := newServiceTestEnv(t, "risk_click_ignored")
	ctx := context.Background()
	aff := env.createAffiliate(t, 1, nil, "10")
	env.setStatus(t, aff.ID, constants.AffiliateStatusPending)

	for _, slug := range []string{"AFF1", "MISSING", ""} {
		result, err := env.risk.TrackClick(ctx, ClickInput{Slug: slug, IP: "10.0.0.1"})
		require.NoError(t, err)
		assert.False(t, result.Tracked, slug)
		assert.Zero(t, result.AffiliateID, slug)
	}

	env.config.cfg.Enabled = false
	result, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.False(t, result.Tracked)
}

func TestComputeRiskScore(t *testing.T) {
	rules := FraudDefaultRules()
	cases := []struct {
		name        string
		stats       repository.ClickStats
		conversions int64
		score       int
		flags       []string
	}{
		{name: "no clicks", stats: repository.ClickStats{}, score: 0, flags: []string{}},
		{name: "clean", stats: repository.ClickStats{TotalClicks: 120, UniqueIPs: 110, TopIPClicks: 3}, conversions: 4, score: 0, flags: []string{}},
		{name: "velocity", stats: repository.ClickStats{TotalClicks: 1300, UniqueIPs: 1300, TopIPClicks: 1}, conversions: 2, score: 30, flags: []string{RiskFlagClickVelocity}},
		{name: "no conversions", stats: repository.ClickStats{TotalClicks: 100, UniqueIPs: 100, TopIPClicks: 1}, score: 20, flags: []string{RiskFlagNoConversions}},
		{
			name:  "everything",
			stats: repository.ClickStats{TotalClicks: 2000, UniqueIPs: 100, TopIPClicks: 500},
			score: 100,
			flags: []string{RiskFlagClickVelocity, RiskFlagDuplicateIP, RiskFlagNoConversions, RiskFlagIPBurst},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, flags := computeRiskScore(tc.stats, tc.conversions, rules)
			assert.Equal(t, tc.score, score)
			assert.Equal(t, tc.flags, flags)
		})
	}
}

func TestComputeRiskScoreClampsToHundred(t *testing.T) {
	rules := FraudDefaultRules()
	rules.VelocityWeight = 100
	rules.IPBurstWeight = 100
	score, _ := computeRiskScore(repository.ClickStats{TotalClicks: 5000, UniqueIPs: 5000, TopIPClicks: 100}, 10, rules)
	assert.Equal(t, 100, score)
}

func seedClicks(t *testing.T, env *serviceTestEnv, affiliateID uint, ip string, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		click := &models.AffiliateClick{AffiliateID: affiliateID, IPAddress: ip, CreatedAt: at.Add(-time.Duration(i) * time.Minute)}
		require.NoError(t, env.clicks.Create(click))
	}
}

func TestRescoreAffiliateAutoBans(t *testing.T) {
	env := newServiceTestEnv(t, "risk_autoban")
	ctx := context.Background()
	aff := env.createAffiliate(t, 1, nil, "10")
	now := time.Now()
	seedClicks(t, env, aff.ID, "10.0.0.9", 40, now)

	env.config.rules.MaxSingleIPClicks = 10
	env.config.rules.AutoBan = true

	assessment, err := env.risk.RescoreAffiliate(ctx, aff.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 50, assessment.Score)
	assert.False(t, assessment.Banned)
	assert.ElementsMatch(t, []string{RiskFlagDuplicateIP, RiskFlagIPBurst}, assessment.Flags)

	account := env.reload(t, aff.ID)
	assert.Equal(t, 50, account.RiskScore)
	assert.Equal(t, constants.AffiliateStatusActive, account.Status)

	env.config.rules.BlockThreshold = 50
	assessment, err = env.risk.RescoreAffiliate(ctx, aff.ID, now)
	require.NoError(t, err)
	assert.True(t, assessment.Banned)
	assert.Equal(t, constants.AffiliateStatusBanned, env.reload(t, aff.ID).Status)

	var logs []models.SystemLog
	require.NoError(t, env.db.Where("source = ?", "risk_scorer").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, constants.SystemLogLevelWarn, logs[0].Level)
}

func TestRescoreAllSkipsWhenDisabled(t *testing.T) {
	env := newServiceTestEnv(t, "risk_rescore_all")
	ctx := context.Background()
	noisy := env.createAffiliate(t, 1, nil, "10")
	env.createAffiliate(t, 2, nil, "10")
	banned := env.createAffiliate(t, 3, nil, "10")
	env.setStatus(t, banned.ID, constants.AffiliateStatusBanned)
	now := time.Now()
	seedClicks(t, env, noisy.ID, "10.0.0.9", 40, now)

	env.config.rules.Enabled = false
	summary, err := env.risk.RescoreAll(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, RescoreSummary{}, summary)

	env.config.rules.Enabled = true
	env.config.rules.MaxSingleIPClicks = 10
	summary, err = env.risk.RescoreAll(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Flagged)
	assert.Zero(t, summary.Banned)
}

func TestTrackClickDedupeWindowBoundary(t *testing.T) {
	env := newServiceTestEnv(t, "risk_click_boundary")
	ctx := context.Background()
	env.createAffiliate(t, 1, nil, "10")
	start := time.Now().UTC().Truncate(time.Second)
	now := start
	env.risk.now = func() time.Time { return now }

	first, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: "10.0.0.1"})
	require.NoError(t, err)
	require.True(t, first.Tracked)

	now = start.Add(60 * time.Second)
	atWindow, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, atWindow.Duplicate)
	assert.False(t, atWindow.Tracked)

	now = start.Add(61 * time.Second)
	pastWindow, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, pastWindow.Tracked)

	var count int64
	require.NoError(t, env.db.Model(&models.AffiliateClick{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

type recordingRescoreScheduler struct {
	ids []uint
}

func (r *recordingRescoreScheduler) ScheduleRescore(ctx context.Context, affiliateID uint) {
	r.ids = append(r.ids, affiliateID)
}

func TestTrackClickSchedulesRescoreOnVelocity(t *testing.T) {
	env := newServiceTestEnv(t, "risk_click_velocity")
	ctx := context.Background()
	aff := env.createAffiliate(t, 1, nil, "10")
	env.config.rules.MaxClicksPerHour = 3
	scheduler := &recordingRescoreScheduler{}
	env.risk.SetRescoreScheduler(scheduler)
	start := time.Now().UTC().Truncate(time.Second)
	now := start
	env.risk.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		now = start.Add(time.Duration(i) * time.Minute)
		result, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF1", IP: fmt.Sprintf("10.0.1.%d", i)})
		require.NoError(t, err)
		require.True(t, result.Tracked)
		if i < 3 {
			assert.Empty(t, scheduler.ids, "click %d", i)
		}
	}
	assert.Equal(t, []uint{aff.ID}, scheduler.ids)

	env.config.rules.Enabled = false
	other := env.createAffiliate(t, 2, nil, "10")
	for i := 0; i < 5; i++ {
		now = start.Add(time.Duration(i) * time.Minute)
		_, err := env.risk.TrackClick(ctx, ClickInput{Slug: "AFF2", IP: fmt.Sprintf("10.0.2.%d", i)})
		require.NoError(t, err)
	}
	assert.NotContains(t, scheduler.ids, other.ID)
}

func TestQueueRescoreSchedulerRunsInlineWithoutQueue(t *testing.T) {
	env := newServiceTestEnv(t, "risk_rescore_inline")
	aff := env.createAffiliate(t, 1, nil, "10")
	NewQueueRescoreScheduler(nil, env.risk).ScheduleRescore(context.Background(), aff.ID)

	require.Eventually(t, func() bool {
		account, err := env.affiliates.GetByID(aff.ID)
		return err == nil && account != nil && account.RiskCheckedAt != nil
	}, 5*time.Second, 20*time.Millisecond)
}
