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

func boolPtr(v bool) *bool { return &v }

func createRule(t *testing.T, env *serviceTestEnv, input CommissionRuleInput) *models.AffiliateCommissionRule {
	t.Helper()
	rule, err := NewCommissionRuleService(env.rules).Create(input)
	require.NoError(t, err)
	return rule
}

func TestCalculateCommissionPrecedence(t *testing.T) {
	env := newServiceTestEnv(t, "commission_precedence")
	ctx := context.Background()
	aff := env.createAffiliate(t, 1, nil, "10")
	order := OrderContext{OrderTotal: models.MustMoney("200"), ItemCount: 1, IsNewCustomer: true, ProductIDs: []uint{7}, CategoryIDs: []uint{3}}

	result, err := env.commission.CalculateCommission(ctx, aff.ID, order)
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourcePersonalRate, result.Source)
	assert.Equal(t, "20.00", result.Amount.String())

	tier := &models.AffiliateTier{Name: "Gold", CommissionRate: models.MustMoney("15"), CommissionType: constants.CommissionTypePercentage}
	require.NoError(t, env.tiers.Create(tier))
	require.NoError(t, env.affiliates.UpdateTier(aff.ID, tier.ID, time.Now()))

	result, err = env.commission.CalculateCommission(ctx, aff.ID, order)
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourceTierPrefix+"Gold", result.Source)
	assert.Equal(t, "30.00", result.Amount.String())

	createRule(t, env, CommissionRuleInput{
		Name:     "New buyers",
		Priority: 10,
		Conditions: models.RuleConditions{
			models.CustomerTypeCondition{CustomerType: constants.CustomerTypeNew},
			models.CategoryCondition{CategoryIDs: []uint{3, 4}},
		},
		Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("7")},
	})

	result, err = env.commission.CalculateCommission(ctx, aff.ID, order)
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourceRulePrefix+"New buyers", result.Source)
	assert.Equal(t, "7.00", result.Amount.String())

	order.IsNewCustomer = false
	result, err = env.commission.CalculateCommission(ctx, aff.ID, order)
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourceTierPrefix+"Gold", result.Source)
}

func TestCalculateCommissionRulePriorityAndTieBreak(t *testing.T) {
	env := newServiceTestEnv(t, "commission_priority")
	aff := env.createAffiliate(t, 1, nil, "10")
	minAmount := models.RuleConditions{models.MinOrderAmountCondition{Amount: models.MustMoney("50")}}

	createRule(t, env, CommissionRuleInput{Name: "low", Priority: 1, Conditions: minAmount,
		Action: models.RuleAction{Type: constants.CommissionTypePercentage, Amount: models.MustMoney("1")}})
	createRule(t, env, CommissionRuleInput{Name: "first-high", Priority: 5, Conditions: minAmount,
		Action: models.RuleAction{Type: constants.CommissionTypePercentage, Amount: models.MustMoney("20")}})
	createRule(t, env, CommissionRuleInput{Name: "second-high", Priority: 5, Conditions: minAmount,
		Action: models.RuleAction{Type: constants.CommissionTypePercentage, Amount: models.MustMoney("30")}})
	disabled := createRule(t, env, CommissionRuleInput{Name: "disabled", Priority: 99, IsActive: boolPtr(false),
		Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("99")}})
	assert.False(t, disabled.IsActive)
	stored, err := env.rules.GetByID(disabled.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)

	result, err := env.commission.CalculateCommission(context.Background(), aff.ID, OrderContext{OrderTotal: models.MustMoney("100")})
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourceRulePrefix+"first-high", result.Source)
	assert.Equal(t, "20.00", result.Amount.String())

	below, err := env.commission.CalculateCommission(context.Background(), aff.ID, OrderContext{OrderTotal: models.MustMoney("49.99")})
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourcePersonalRate, below.Source)
}

func TestCalculateCommissionRuleOutsideWindow(t *testing.T) {
	env := newServiceTestEnv(t, "commission_window")
	aff := env.createAffiliate(t, 1, nil, "10")
	start := time.Now().Add(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	createRule(t, env, CommissionRuleInput{Name: "future", Priority: 1, StartDate: &start, EndDate: &end,
		Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("5")}})

	result, err := env.commission.CalculateCommission(context.Background(), aff.ID, OrderContext{OrderTotal: models.MustMoney("10")})
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourcePersonalRate, result.Source)
	assert.Equal(t, "1.00", result.Amount.String())
}

func TestCalculateCommissionInactiveOrMissingAccount(t *testing.T) {
	env := newServiceTestEnv(t, "commission_inactive")
	aff := env.createAffiliate(t, 1, nil, "10")
	env.setStatus(t, aff.ID, constants.AffiliateStatusPending)

	result, err := env.commission.CalculateCommission(context.Background(), aff.ID, OrderContext{OrderTotal: models.MustMoney("100")})
	require.NoError(t, err)
	assert.True(t, result.Amount.IsZero())
	assert.Equal(t, constants.CommissionSourceNone, result.Source)

	result, err = env.commission.CalculateCommission(context.Background(), 999, OrderContext{OrderTotal: models.MustMoney("100")})
	require.NoError(t, err)
	assert.Equal(t, constants.CommissionSourceNone, result.Source)

	_, err = env.commission.CalculateCommission(context.Background(), aff.ID, OrderContext{OrderTotal: models.MustMoney("-1")})
	assert.True(t, errors.Is(err, ErrCommissionInput))
}

func TestValidateRuleRejectsBadInput(t *testing.T) {
	start := time.Now()
	cases := map[string]CommissionRuleInput{
		"missing name": {Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("1")}},
		"bad action":   {Name: "x", Action: models.RuleAction{Type: "BOGUS", Amount: models.MustMoney("1")}},
		"over 100":     {Name: "x", Action: models.RuleAction{Type: constants.CommissionTypePercentage, Amount: models.MustMoney("101")}},
		"negative":     {Name: "x", Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("-1")}},
		"window":       {Name: "x", StartDate: &start, EndDate: &start, Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("1")}},
		"customer type": {Name: "x",
			Conditions: models.RuleConditions{models.CustomerTypeCondition{CustomerType: "VIP"}},
			Action:     models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("1")}},
		"empty ids": {Name: "x",
			Conditions: models.RuleConditions{models.ProductCondition{ProductIDs: []uint{}}},
			Action:     models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("1")}},
		"duplicate": {Name: "x",
			Conditions: models.RuleConditions{
				models.MinOrderAmountCondition{Amount: models.MustMoney("1")},
				models.MinOrderAmountCondition{Amount: models.MustMoney("2")},
			},
			Action: models.RuleAction{Type: constants.CommissionTypeFixed, Amount: models.MustMoney("1")}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateRule(input)
			assert.True(t, errors.Is(err, ErrRuleInvalid), "got %v", err)
		})
	}
}

func TestCalcAmount(t *testing.T) {
	assert.Equal(t, "12.35", CalcAmount(constants.CommissionTypePercentage, models.MustMoney("12.5"), models.MustMoney("98.8")).String())
	assert.Equal(t, "3.00", CalcAmount(constants.CommissionTypeFixed, models.MustMoney("3"), models.MustMoney("0")).String())
	assert.Equal(t, "0.00", CalcAmount(constants.CommissionTypePercentage, models.MustMoney("10"), models.ZeroMoney()).String())
}

func TestBuildOrderContextDedupesIDs(t *testing.T) {
	order := &models.Order{
		TotalAmount: models.MustMoney("30"),
		Items: []models.OrderItem{
			{ProductID: 1, CategoryID: 9, Quantity: 2},
			{ProductID: 1, CategoryID: 9, Quantity: 1},
			{ProductID: 2, CategoryID: 8, Quantity: 1},
		},
	}
	ctx := BuildOrderContext(order, true)
	assert.Equal(t, 4, ctx.ItemCount)
	assert.Equal(t, []uint{1, 2}, ctx.ProductIDs)
	assert.Equal(t, []uint{9, 8}, ctx.CategoryIDs)
	assert.True(t, ctx.IsNewCustomer)
}
