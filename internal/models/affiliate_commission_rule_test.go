package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRuleConditionsRoundTrip(t *testing.T) {
	conds := RuleConditions{
		MinOrderAmountCondition{Amount: MustMoney("100")},
		CustomerTypeCondition{CustomerType: "NEW"},
		CategoryCondition{CategoryIDs: []uint{3, 4}},
		ProductCondition{ProductIDs: []uint{9}},
	}
	raw, err := json.Marshal(conds)
	if err != nil {
		t.Fatalf("marshal conditions failed: %v", err)
	}

	var decoded RuleConditions
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal conditions failed: %v", err)
	}
	if len(decoded) != 4 {
		t.Fatalf("expected 4 conditions, got %d", len(decoded))
	}
	minCond, ok := decoded[0].(MinOrderAmountCondition)
	if !ok || minCond.Amount.String() != "100.00" {
		t.Fatalf("unexpected first condition %#v", decoded[0])
	}
	if cat, ok := decoded[2].(CategoryCondition); !ok || len(cat.CategoryIDs) != 2 {
		t.Fatalf("unexpected category condition %#v", decoded[2])
	}
}

func TestRuleConditionsRejectUnknownVariant(t *testing.T) {
	var decoded RuleConditions
	err := json.Unmarshal([]byte(`[{"type":"COUNTRY","payload":{"code":"US"}}]`), &decoded)
	if err == nil || !strings.Contains(err.Error(), "unknown rule condition type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestRuleConditionsRejectUnknownField(t *testing.T) {
	var decoded RuleConditions
	err := json.Unmarshal([]byte(`[{"type":"MIN_ORDER_AMOUNT","payload":{"amount":"10","currency":"USD"}}]`), &decoded)
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestRuleInWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)
	past := now.Add(-2 * time.Hour)

	open := AffiliateCommissionRule{}
	if !open.InWindow(now) {
		t.Fatalf("open-ended rule should be in window")
	}
	bounded := AffiliateCommissionRule{StartDate: &start, EndDate: &end}
	if !bounded.InWindow(now) {
		t.Fatalf("bounded rule should be in window")
	}
	expired := AffiliateCommissionRule{EndDate: &past}
	if expired.InWindow(now) {
		t.Fatalf("expired rule should be out of window")
	}
	future := AffiliateCommissionRule{StartDate: &end}
	if future.InWindow(now) {
		t.Fatalf("future rule should be out of window")
	}
}

func TestRuleActionColumnValue(t *testing.T) {
	action := RuleAction{Type: "PERCENTAGE", Amount: MustMoney("12.5")}
	stored, err := action.Value()
	if err != nil {
		t.Fatalf("value failed: %v", err)
	}
	raw, ok := stored.(string)
	if !ok || !strings.Contains(raw, `"value":"12.5`) || !strings.Contains(raw, `"type":"PERCENTAGE"`) {
		t.Fatalf("unexpected stored action %v", stored)
	}

	var loaded RuleAction
	if err := loaded.Scan([]byte(raw)); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if loaded.Type != "PERCENTAGE" || loaded.Amount.Cmp(MustMoney("12.5")) != 0 {
		t.Fatalf("unexpected loaded action %+v", loaded)
	}
	if err := loaded.Scan(nil); err != nil || loaded.Type != "" {
		t.Fatalf("nil column should reset action, got %+v err=%v", loaded, err)
	}
}
