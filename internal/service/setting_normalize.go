package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dujiao-next/affiliate/internal/models"
)

func normalizeSettingText(raw interface{}) string {
	text, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

func parseSettingBool(raw interface{}) bool {
	switch value := raw.(type) {
	case bool:
		return value
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case string:
		normalized := strings.ToLower(strings.TrimSpace(value))
		return normalized == "1" || normalized == "true" || normalized == "yes" || normalized == "on"
	default:
		return false
	}
}

func parseSettingInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := v.Float64(); err == nil {
			return int(f), nil
		}
		return 0, fmt.Errorf("invalid json number")
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("empty string")
		}
		return strconv.Atoi(trimmed)
	default:
		return 0, fmt.Errorf("unsupported value type")
	}
}

func parseSettingFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("empty string")
		}
		return strconv.ParseFloat(trimmed, 64)
	default:
		return 0, fmt.Errorf("unsupported value type")
	}
}

// parseSettingMoney 金额配置统一按十进制解析，避免浮点误差
func parseSettingMoney(value interface{}) (models.Money, error) {
	switch v := value.(type) {
	case string:
		return models.NewMoney(v)
	case json.Number:
		return models.NewMoney(v.String())
	case float64:
		return models.NewMoney(strconv.FormatFloat(v, 'f', -1, 64))
	case int:
		return models.NewMoneyFromInt(int64(v)), nil
	case int64:
		return models.NewMoneyFromInt(v), nil
	case models.Money:
		return v, nil
	default:
		return models.ZeroMoney(), fmt.Errorf("unsupported value type")
	}
}

func parseSettingMoneyList(raw interface{}) []models.Money {
	var items []interface{}
	switch value := raw.(type) {
	case []interface{}:
		items = value
	case []string:
		for _, item := range value {
			items = append(items, item)
		}
	case []models.Money:
		return append([]models.Money(nil), value...)
	default:
		return nil
	}
	result := make([]models.Money, 0, len(items))
	for _, item := range items {
		parsed, err := parseSettingMoney(item)
		if err != nil {
			continue
		}
		result = append(result, parsed)
	}
	return result
}

func moneyListToStrings(values []models.Money) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		result = append(result, value.String())
	}
	return result
}
