package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 规则条件类型
const (
	RuleConditionMinOrderAmount = "MIN_ORDER_AMOUNT"
	RuleConditionCustomerType   = "CUSTOMER_TYPE"
	RuleConditionCategoryIDs    = "CATEGORY_IDS"
	RuleConditionProductIDs     = "PRODUCT_IDS"
)

// AffiliateCommissionRule 佣金规则
type AffiliateCommissionRule struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                    // 主键
	Name       string         `gorm:"type:varchar(120);not null" json:"name"`                  // 规则名称
	Priority   int            `gorm:"not null;default:0;index" json:"priority"`                // 优先级（越大越先匹配）
	IsActive   bool           `gorm:"not null;index" json:"is_active"`                         // 是否启用
	StartDate  *time.Time     `gorm:"index" json:"start_date"`                                 // 生效开始时间
	EndDate    *time.Time     `gorm:"index" json:"end_date"`                                   // 生效结束时间
	Conditions RuleConditions `gorm:"type:json" json:"conditions"`                             // 条件列表
	Action     RuleAction     `gorm:"type:json;not null" json:"action"`                        // 命中动作
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (AffiliateCommissionRule) TableName() string {
	return "affiliate_commission_rules"
}

// InWindow 判断规则在指定时间是否处于生效窗口
func (r AffiliateCommissionRule) InWindow(now time.Time) bool {
	if r.StartDate != nil && now.Before(*r.StartDate) {
		return false
	}
	if r.EndDate != nil && now.After(*r.EndDate) {
		return false
	}
	return true
}

// RuleCondition 规则条件（封闭集合）
type RuleCondition interface {
	ConditionType() string
	isRuleCondition()
}

// MinOrderAmountCondition 订单金额下限
type MinOrderAmountCondition struct {
	Amount Money `json:"amount"`
}

// CustomerTypeCondition 客户类型
type CustomerTypeCondition struct {
	CustomerType string `json:"customer_type"`
}

// CategoryCondition 分类任一命中
type CategoryCondition struct {
	CategoryIDs []uint `json:"category_ids"`
}

// ProductCondition 商品任一命中
type ProductCondition struct {
	ProductIDs []uint `json:"product_ids"`
}

func (MinOrderAmountCondition) ConditionType() string { return RuleConditionMinOrderAmount }
func (CustomerTypeCondition) ConditionType() string   { return RuleConditionCustomerType }
func (CategoryCondition) ConditionType() string       { return RuleConditionCategoryIDs }
func (ProductCondition) ConditionType() string        { return RuleConditionProductIDs }

func (MinOrderAmountCondition) isRuleCondition() {}
func (CustomerTypeCondition) isRuleCondition()   {}
func (CategoryCondition) isRuleCondition()       {}
func (ProductCondition) isRuleCondition()        {}

// RuleConditions 条件列表，按 type 字段序列化
type RuleConditions []RuleCondition

type ruleConditionEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON 输出 [{type, payload}] 结构
func (c RuleConditions) MarshalJSON() ([]byte, error) {
	items := make([]ruleConditionEnvelope, 0, len(c))
	for _, cond := range c {
		if cond == nil {
			continue
		}
		payload, err := json.Marshal(cond)
		if err != nil {
			return nil, err
		}
		items = append(items, ruleConditionEnvelope{Type: cond.ConditionType(), Payload: payload})
	}
	return json.Marshal(items)
}

// UnmarshalJSON 严格解析条件列表，未知类型或字段直接报错
func (c *RuleConditions) UnmarshalJSON(b []byte) error {
	if len(bytes.TrimSpace(b)) == 0 || string(bytes.TrimSpace(b)) == "null" {
		*c = RuleConditions{}
		return nil
	}
	var items []ruleConditionEnvelope
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	result := make(RuleConditions, 0, len(items))
	for _, item := range items {
		cond, err := decodeRuleCondition(item)
		if err != nil {
			return err
		}
		result = append(result, cond)
	}
	*c = result
	return nil
}

func decodeRuleCondition(item ruleConditionEnvelope) (RuleCondition, error) {
	switch item.Type {
	case RuleConditionMinOrderAmount:
		var cond MinOrderAmountCondition
		if err := strictDecode(item.Payload, &cond); err != nil {
			return nil, err
		}
		return cond, nil
	case RuleConditionCustomerType:
		var cond CustomerTypeCondition
		if err := strictDecode(item.Payload, &cond); err != nil {
			return nil, err
		}
		return cond, nil
	case RuleConditionCategoryIDs:
		var cond CategoryCondition
		if err := strictDecode(item.Payload, &cond); err != nil {
			return nil, err
		}
		return cond, nil
	case RuleConditionProductIDs:
		var cond ProductCondition
		if err := strictDecode(item.Payload, &cond); err != nil {
			return nil, err
		}
		return cond, nil
	default:
		return nil, fmt.Errorf("unknown rule condition type %q", item.Type)
	}
}

func strictDecode(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("rule condition payload is required")
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// Value 用于数据库写入
func (c RuleConditions) Value() (driver.Value, error) {
	raw, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 用于数据库读取
func (c *RuleConditions) Scan(value interface{}) error {
	if value == nil {
		*c = RuleConditions{}
		return nil
	}
	raw, err := scanBytes(value)
	if err != nil {
		return err
	}
	return c.UnmarshalJSON(raw)
}

// RuleAction 命中动作
type RuleAction struct {
	Type   string `json:"type"`
	Amount Money  `json:"value"` // 比例（百分数）或固定金额
}

// Value 用于数据库写入
func (a RuleAction) Value() (driver.Value, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 用于数据库读取
func (a *RuleAction) Scan(value interface{}) error {
	if value == nil {
		*a = RuleAction{}
		return nil
	}
	raw, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}
