package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"

	"github.com/go-playground/validator/v10"
)

var ruleValidator = validator.New()

// CommissionRuleInput 佣金规则写入参数
type CommissionRuleInput struct {
	Name       string                `json:"name" validate:"required,max=120"`
	Priority   int                   `json:"priority" validate:"gte=-10000,lte=10000"`
	IsActive   *bool                 `json:"is_active"`
	StartDate  *time.Time            `json:"start_date"`
	EndDate    *time.Time            `json:"end_date"`
	Conditions models.RuleConditions `json:"conditions"`
	Action     models.RuleAction     `json:"action"`
}

// ValidateRule 校验并归一化规则（条件与动作均为封闭类型）
func ValidateRule(input CommissionRuleInput) (models.AffiliateCommissionRule, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := ruleValidator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.AffiliateCommissionRule{}, fmt.Errorf("%w: 字段 %s 校验失败(%s)", ErrRuleInvalid, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return models.AffiliateCommissionRule{}, fmt.Errorf("%w: %v", ErrRuleInvalid, err)
	}
	if input.StartDate != nil && input.EndDate != nil && !input.EndDate.After(*input.StartDate) {
		return models.AffiliateCommissionRule{}, fmt.Errorf("%w: 结束时间必须晚于开始时间", ErrRuleInvalid)
	}

	action, err := validateRuleAction(input.Action)
	if err != nil {
		return models.AffiliateCommissionRule{}, err
	}
	conditions, err := validateRuleConditions(input.Conditions)
	if err != nil {
		return models.AffiliateCommissionRule{}, err
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	return models.AffiliateCommissionRule{
		Name:       input.Name,
		Priority:   input.Priority,
		IsActive:   isActive,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		Conditions: conditions,
		Action:     action,
	}, nil
}

func validateRuleAction(action models.RuleAction) (models.RuleAction, error) {
	action.Type = strings.ToUpper(strings.TrimSpace(action.Type))
	switch action.Type {
	case constants.CommissionTypePercentage:
		if action.Amount.Cmp(models.NewMoneyFromInt(affiliateCommissionRateMax)) > 0 {
			return action, fmt.Errorf("%w: 百分比佣金不能超过 100", ErrRuleInvalid)
		}
	case constants.CommissionTypeFixed:
	default:
		return action, fmt.Errorf("%w: 动作类型必须为 PERCENTAGE 或 FIXED", ErrRuleInvalid)
	}
	if action.Amount.IsNegative() {
		return action, fmt.Errorf("%w: 佣金值不能小于 0", ErrRuleInvalid)
	}
	return action, nil
}

func validateRuleConditions(conditions models.RuleConditions) (models.RuleConditions, error) {
	result := make(models.RuleConditions, 0, len(conditions))
	seen := make(map[string]struct{}, len(conditions))
	for _, cond := range conditions {
		if cond == nil {
			continue
		}
		kind := cond.ConditionType()
		if _, ok := seen[kind]; ok {
			return nil, fmt.Errorf("%w: 条件 %s 重复", ErrRuleInvalid, kind)
		}
		seen[kind] = struct{}{}

		switch c := cond.(type) {
		case models.MinOrderAmountCondition:
			if c.Amount.IsNegative() {
				return nil, fmt.Errorf("%w: 最低订单金额不能小于 0", ErrRuleInvalid)
			}
			result = append(result, c)
		case models.CustomerTypeCondition:
			c.CustomerType = strings.ToUpper(strings.TrimSpace(c.CustomerType))
			if c.CustomerType != constants.CustomerTypeNew && c.CustomerType != constants.CustomerTypeReturning {
				return nil, fmt.Errorf("%w: 客户类型必须为 NEW 或 RETURNING", ErrRuleInvalid)
			}
			result = append(result, c)
		case models.CategoryCondition:
			ids, err := normalizeConditionIDs(c.CategoryIDs)
			if err != nil {
				return nil, err
			}
			c.CategoryIDs = ids
			result = append(result, c)
		case models.ProductCondition:
			ids, err := normalizeConditionIDs(c.ProductIDs)
			if err != nil {
				return nil, err
			}
			c.ProductIDs = ids
			result = append(result, c)
		default:
			return nil, fmt.Errorf("%w: 未知条件 %s", ErrRuleInvalid, kind)
		}
	}
	return result, nil
}

func normalizeConditionIDs(ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ID 列表不能为空", ErrRuleInvalid)
	}
	result := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			return nil, fmt.Errorf("%w: ID 不能为 0", ErrRuleInvalid)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result, nil
}

// ruleMatches 全部条件满足才命中，空条件视为命中
func ruleMatches(rule models.AffiliateCommissionRule, order OrderContext) bool {
	for _, cond := range rule.Conditions {
		switch c := cond.(type) {
		case models.MinOrderAmountCondition:
			if order.OrderTotal.Cmp(c.Amount) < 0 {
				return false
			}
		case models.CustomerTypeCondition:
			if c.CustomerType == constants.CustomerTypeNew && !order.IsNewCustomer {
				return false
			}
			if c.CustomerType == constants.CustomerTypeReturning && order.IsNewCustomer {
				return false
			}
		case models.CategoryCondition:
			if len(c.CategoryIDs) > 0 && !intersects(c.CategoryIDs, order.CategoryIDs) {
				return false
			}
		case models.ProductCondition:
			if len(c.ProductIDs) > 0 && !intersects(c.ProductIDs, order.ProductIDs) {
				return false
			}
		}
	}
	return true
}

func intersects(want, have []uint) bool {
	if len(have) == 0 {
		return false
	}
	set := make(map[uint]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// CalcAmount 按计算方式得出佣金：FIXED 原值，PERCENTAGE 为 total*rate/100
func CalcAmount(commissionType string, value models.Money, total models.Money) models.Money {
	if strings.ToUpper(commissionType) == constants.CommissionTypeFixed {
		return value
	}
	return models.Percent(total, value)
}

// CommissionRuleService 佣金规则管理服务
type CommissionRuleService struct {
	repo repository.CommissionRuleRepository
}

// NewCommissionRuleService 创建佣金规则服务
func NewCommissionRuleService(repo repository.CommissionRuleRepository) *CommissionRuleService {
	return &CommissionRuleService{repo: repo}
}

// Create 创建规则
func (s *CommissionRuleService) Create(input CommissionRuleInput) (*models.AffiliateCommissionRule, error) {
	rule, err := ValidateRule(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(&rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Update 更新规则
func (s *CommissionRuleService) Update(id uint, input CommissionRuleInput) (*models.AffiliateCommissionRule, error) {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	rule, err := ValidateRule(input)
	if err != nil {
		return nil, err
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(&rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Delete 删除规则
func (s *CommissionRuleService) Delete(id uint) error {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	return s.repo.Delete(id)
}

// Get 获取规则
func (s *CommissionRuleService) Get(id uint) (*models.AffiliateCommissionRule, error) {
	rule, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ErrNotFound
	}
	return rule, nil
}

// List 分页查询规则
func (s *CommissionRuleService) List(filter repository.CommissionRuleListFilter) ([]models.AffiliateCommissionRule, int64, error) {
	return s.repo.List(filter)
}
