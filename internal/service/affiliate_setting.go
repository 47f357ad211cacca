package service

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/models"
)

const (
	affiliateCommissionRateMax = 100
	affiliateCookieDaysMin     = 1
	affiliateCookieDaysMax     = 365
	affiliateHoldingDaysMax    = 3650
	affiliateMLMLevelsMax      = 10
)

// AffiliateConfig 推广计划配置
type AffiliateConfig struct {
	Enabled               bool           `json:"enabled"`
	DefaultCommissionRate models.Money   `json:"default_commission_rate"`
	DefaultCommissionType string         `json:"default_commission_type"`
	CookieDurationDays    int            `json:"cookie_duration_days"`
	HoldingDays           int            `json:"holding_days"`
	MinPayoutAmount       models.Money   `json:"min_payout_amount"`
	AutoApprovePayout     bool           `json:"auto_approve_payout"`
	AutoApproveAffiliates bool           `json:"auto_approve_affiliates"`
	MLMEnabled            bool           `json:"mlm_enabled"`
	MLMLevelRates         []models.Money `json:"mlm_level_rates"`
}

// AffiliateDefaultConfig 默认推广计划配置
func AffiliateDefaultConfig() AffiliateConfig {
	return AffiliateConfig{
		Enabled:               true,
		DefaultCommissionRate: models.NewMoneyFromInt(10),
		DefaultCommissionType: constants.CommissionTypePercentage,
		CookieDurationDays:    30,
		HoldingDays:           30,
		MinPayoutAmount:       models.NewMoneyFromInt(50),
		AutoApprovePayout:     false,
		AutoApproveAffiliates: true,
		MLMEnabled:            false,
		MLMLevelRates:         []models.Money{models.NewMoneyFromInt(10), models.NewMoneyFromInt(5)},
	}
}

// NormalizeAffiliateConfig 归一化推广计划配置
func NormalizeAffiliateConfig(cfg AffiliateConfig) AffiliateConfig {
	cfg.DefaultCommissionType = normalizeCommissionType(cfg.DefaultCommissionType)
	if cfg.DefaultCommissionRate.IsNegative() {
		cfg.DefaultCommissionRate = models.ZeroMoney()
	}
	if cfg.DefaultCommissionType == constants.CommissionTypePercentage &&
		cfg.DefaultCommissionRate.Cmp(models.NewMoneyFromInt(affiliateCommissionRateMax)) > 0 {
		cfg.DefaultCommissionRate = models.NewMoneyFromInt(affiliateCommissionRateMax)
	}
	if cfg.CookieDurationDays < affiliateCookieDaysMin {
		cfg.CookieDurationDays = affiliateCookieDaysMin
	}
	if cfg.CookieDurationDays > affiliateCookieDaysMax {
		cfg.CookieDurationDays = affiliateCookieDaysMax
	}
	if cfg.HoldingDays < 0 {
		cfg.HoldingDays = 0
	}
	if cfg.HoldingDays > affiliateHoldingDaysMax {
		cfg.HoldingDays = affiliateHoldingDaysMax
	}
	if cfg.MinPayoutAmount.IsNegative() {
		cfg.MinPayoutAmount = models.ZeroMoney()
	}

	rates := make([]models.Money, 0, len(cfg.MLMLevelRates))
	for _, rate := range cfg.MLMLevelRates {
		if rate.IsNegative() {
			rate = models.ZeroMoney()
		}
		if rate.Cmp(models.NewMoneyFromInt(affiliateCommissionRateMax)) > 0 {
			rate = models.NewMoneyFromInt(affiliateCommissionRateMax)
		}
		rates = append(rates, rate)
		if len(rates) >= affiliateMLMLevelsMax {
			break
		}
	}
	cfg.MLMLevelRates = rates
	return cfg
}

// ValidateAffiliateConfig 校验推广计划配置（数值先归一化，佣金方式与层数按原值校验）
func ValidateAffiliateConfig(cfg AffiliateConfig) error {
	switch strings.ToUpper(strings.TrimSpace(cfg.DefaultCommissionType)) {
	case constants.CommissionTypePercentage, constants.CommissionTypeFixed:
	default:
		return fmt.Errorf("%w: 默认佣金方式必须为 PERCENTAGE 或 FIXED", ErrAffiliateConfigInvalid)
	}
	if len(cfg.MLMLevelRates) > affiliateMLMLevelsMax {
		return fmt.Errorf("%w: 多级分佣最多 %d 层", ErrAffiliateConfigInvalid, affiliateMLMLevelsMax)
	}
	cfg = NormalizeAffiliateConfig(cfg)
	if cfg.DefaultCommissionRate.IsNegative() {
		return fmt.Errorf("%w: 默认佣金不能小于 0", ErrAffiliateConfigInvalid)
	}
	if cfg.CookieDurationDays < affiliateCookieDaysMin || cfg.CookieDurationDays > affiliateCookieDaysMax {
		return fmt.Errorf("%w: Cookie 有效天数必须在 1-365 之间", ErrAffiliateConfigInvalid)
	}
	if cfg.HoldingDays < 0 || cfg.HoldingDays > affiliateHoldingDaysMax {
		return fmt.Errorf("%w: 佣金冻结天数必须在 0-3650 之间", ErrAffiliateConfigInvalid)
	}
	if cfg.MinPayoutAmount.IsNegative() {
		return fmt.Errorf("%w: 最低结算金额不能小于 0", ErrAffiliateConfigInvalid)
	}
	return nil
}

// AffiliateConfigToMap 转换为 settings 存储结构
func AffiliateConfigToMap(cfg AffiliateConfig) map[string]interface{} {
	normalized := NormalizeAffiliateConfig(cfg)
	return map[string]interface{}{
		"enabled":                 normalized.Enabled,
		"default_commission_rate": normalized.DefaultCommissionRate.String(),
		"default_commission_type": normalized.DefaultCommissionType,
		"cookie_duration_days":    normalized.CookieDurationDays,
		"holding_days":            normalized.HoldingDays,
		"min_payout_amount":       normalized.MinPayoutAmount.String(),
		"auto_approve_payout":     normalized.AutoApprovePayout,
		"auto_approve_affiliates": normalized.AutoApproveAffiliates,
		"mlm_enabled":             normalized.MLMEnabled,
		"mlm_level_rates":         moneyListToStrings(normalized.MLMLevelRates),
	}
}

func affiliateConfigFromJSON(raw models.JSON, fallback AffiliateConfig) AffiliateConfig {
	result := fallback
	if v, ok := raw["enabled"]; ok {
		result.Enabled = parseSettingBool(v)
	}
	if v, ok := raw["default_commission_rate"]; ok {
		if parsed, err := parseSettingMoney(v); err == nil {
			result.DefaultCommissionRate = parsed
		}
	}
	if v, ok := raw["default_commission_type"]; ok {
		if text := normalizeSettingText(v); text != "" {
			result.DefaultCommissionType = text
		}
	}
	if v, ok := raw["cookie_duration_days"]; ok {
		if parsed, err := parseSettingInt(v); err == nil {
			result.CookieDurationDays = parsed
		}
	}
	if v, ok := raw["holding_days"]; ok {
		if parsed, err := parseSettingInt(v); err == nil {
			result.HoldingDays = parsed
		}
	}
	if v, ok := raw["min_payout_amount"]; ok {
		if parsed, err := parseSettingMoney(v); err == nil {
			result.MinPayoutAmount = parsed
		}
	}
	if v, ok := raw["auto_approve_payout"]; ok {
		result.AutoApprovePayout = parseSettingBool(v)
	}
	if v, ok := raw["auto_approve_affiliates"]; ok {
		result.AutoApproveAffiliates = parseSettingBool(v)
	}
	if v, ok := raw["mlm_enabled"]; ok {
		result.MLMEnabled = parseSettingBool(v)
	}
	if v, ok := raw["mlm_level_rates"]; ok {
		if rates := parseSettingMoneyList(v); rates != nil {
			result.MLMLevelRates = rates
		}
	}
	return NormalizeAffiliateConfig(result)
}

// FraudRules 风控评分规则
type FraudRules struct {
	Enabled                     bool    `json:"enabled"`
	WindowHours                 int     `json:"window_hours"`
	MaxClicksPerHour            int     `json:"max_clicks_per_hour"`
	MaxDuplicateIPRatio         float64 `json:"max_duplicate_ip_ratio"`
	MinClicksForConversionCheck int     `json:"min_clicks_for_conversion_check"`
	MaxSingleIPClicks           int     `json:"max_single_ip_clicks"`
	VelocityWeight              int     `json:"velocity_weight"`
	DuplicateIPWeight           int     `json:"duplicate_ip_weight"`
	NoConversionWeight          int     `json:"no_conversion_weight"`
	IPBurstWeight               int     `json:"ip_burst_weight"`
	BlockThreshold              int     `json:"block_threshold"`
	AutoBan                     bool    `json:"auto_ban"`
}

// FraudDefaultRules 默认风控规则
func FraudDefaultRules() FraudRules {
	return FraudRules{
		Enabled:                     true,
		WindowHours:                 24,
		MaxClicksPerHour:            50,
		MaxDuplicateIPRatio:         0.6,
		MinClicksForConversionCheck: 100,
		MaxSingleIPClicks:           30,
		VelocityWeight:              30,
		DuplicateIPWeight:           25,
		NoConversionWeight:          20,
		IPBurstWeight:               25,
		BlockThreshold:              80,
		AutoBan:                     false,
	}
}

// NormalizeFraudRules 归一化风控规则
func NormalizeFraudRules(rules FraudRules) FraudRules {
	defaults := FraudDefaultRules()
	if rules.WindowHours <= 0 {
		rules.WindowHours = defaults.WindowHours
	}
	if rules.WindowHours > 24*30 {
		rules.WindowHours = 24 * 30
	}
	if rules.MaxClicksPerHour <= 0 {
		rules.MaxClicksPerHour = defaults.MaxClicksPerHour
	}
	if rules.MaxDuplicateIPRatio <= 0 || rules.MaxDuplicateIPRatio > 1 {
		rules.MaxDuplicateIPRatio = defaults.MaxDuplicateIPRatio
	}
	if rules.MinClicksForConversionCheck <= 0 {
		rules.MinClicksForConversionCheck = defaults.MinClicksForConversionCheck
	}
	if rules.MaxSingleIPClicks <= 0 {
		rules.MaxSingleIPClicks = defaults.MaxSingleIPClicks
	}
	rules.VelocityWeight = clampInt(rules.VelocityWeight, 0, 100)
	rules.DuplicateIPWeight = clampInt(rules.DuplicateIPWeight, 0, 100)
	rules.NoConversionWeight = clampInt(rules.NoConversionWeight, 0, 100)
	rules.IPBurstWeight = clampInt(rules.IPBurstWeight, 0, 100)
	if rules.BlockThreshold <= 0 || rules.BlockThreshold > 100 {
		rules.BlockThreshold = defaults.BlockThreshold
	}
	return rules
}

// ValidateFraudRules 校验风控规则（写入前）
func ValidateFraudRules(rules FraudRules) error {
	if rules.WindowHours <= 0 || rules.WindowHours > 24*30 {
		return fmt.Errorf("%w: 统计窗口必须在 1-720 小时之间", ErrFraudRulesInvalid)
	}
	if rules.MaxDuplicateIPRatio <= 0 || rules.MaxDuplicateIPRatio > 1 {
		return fmt.Errorf("%w: 重复 IP 比例必须在 (0,1] 之间", ErrFraudRulesInvalid)
	}
	if rules.BlockThreshold <= 0 || rules.BlockThreshold > 100 {
		return fmt.Errorf("%w: 封禁阈值必须在 1-100 之间", ErrFraudRulesInvalid)
	}
	for _, weight := range []int{rules.VelocityWeight, rules.DuplicateIPWeight, rules.NoConversionWeight, rules.IPBurstWeight} {
		if weight < 0 || weight > 100 {
			return fmt.Errorf("%w: 权重必须在 0-100 之间", ErrFraudRulesInvalid)
		}
	}
	return nil
}

// FraudRulesToMap 转换为 settings 存储结构
func FraudRulesToMap(rules FraudRules) map[string]interface{} {
	normalized := NormalizeFraudRules(rules)
	return map[string]interface{}{
		"enabled":                         normalized.Enabled,
		"window_hours":                    normalized.WindowHours,
		"max_clicks_per_hour":             normalized.MaxClicksPerHour,
		"max_duplicate_ip_ratio":          normalized.MaxDuplicateIPRatio,
		"min_clicks_for_conversion_check": normalized.MinClicksForConversionCheck,
		"max_single_ip_clicks":            normalized.MaxSingleIPClicks,
		"velocity_weight":                 normalized.VelocityWeight,
		"duplicate_ip_weight":             normalized.DuplicateIPWeight,
		"no_conversion_weight":            normalized.NoConversionWeight,
		"ip_burst_weight":                 normalized.IPBurstWeight,
		"block_threshold":                 normalized.BlockThreshold,
		"auto_ban":                        normalized.AutoBan,
	}
}

func fraudRulesFromJSON(raw models.JSON, fallback FraudRules) FraudRules {
	result := fallback
	if v, ok := raw["enabled"]; ok {
		result.Enabled = parseSettingBool(v)
	}
	if v, ok := raw["auto_ban"]; ok {
		result.AutoBan = parseSettingBool(v)
	}
	if v, ok := raw["max_duplicate_ip_ratio"]; ok {
		if parsed, err := parseSettingFloat(v); err == nil {
			result.MaxDuplicateIPRatio = parsed
		}
	}
	intFields := map[string]*int{
		"window_hours":                    &result.WindowHours,
		"max_clicks_per_hour":             &result.MaxClicksPerHour,
		"min_clicks_for_conversion_check": &result.MinClicksForConversionCheck,
		"max_single_ip_clicks":            &result.MaxSingleIPClicks,
		"velocity_weight":                 &result.VelocityWeight,
		"duplicate_ip_weight":             &result.DuplicateIPWeight,
		"no_conversion_weight":            &result.NoConversionWeight,
		"ip_burst_weight":                 &result.IPBurstWeight,
		"block_threshold":                 &result.BlockThreshold,
	}
	for key, dest := range intFields {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if parsed, err := parseSettingInt(v); err == nil {
			*dest = parsed
		}
	}
	return NormalizeFraudRules(result)
}

func normalizeCommissionType(value string) string {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == constants.CommissionTypeFixed {
		return constants.CommissionTypeFixed
	}
	return constants.CommissionTypePercentage
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
