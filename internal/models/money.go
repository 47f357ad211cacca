package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

var hundred = decimal.NewFromInt(100)

// Money 统一金额类型（保留 2 位小数）
type Money struct {
	decimal.Decimal
}

// ZeroMoney 零金额
func ZeroMoney() Money {
	return Money{Decimal: decimal.Zero}
}

// NewMoneyFromDecimal 从 decimal 创建金额
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(moneyScale)}
}

// NewMoneyFromInt 从整数创建金额
func NewMoneyFromInt(amount int64) Money {
	return Money{Decimal: decimal.NewFromInt(amount)}
}

// NewMoneyFromFloat 从浮点数创建金额，仅用于配置与外部输入的边界转换
func NewMoneyFromFloat(amount float64) Money {
	return NewMoneyFromDecimal(decimal.NewFromFloat(amount))
}

// NewMoney 从字符串解析金额
func NewMoney(raw string) (Money, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ZeroMoney(), nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return ZeroMoney(), err
	}
	return NewMoneyFromDecimal(d), nil
}

// MustMoney 解析金额，失败时 panic（仅用于常量与测试）
func MustMoney(raw string) Money {
	m, err := NewMoney(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Add 加法
func (m Money) Add(other Money) Money {
	return NewMoneyFromDecimal(m.Decimal.Add(other.Decimal))
}

// Sub 减法
func (m Money) Sub(other Money) Money {
	return NewMoneyFromDecimal(m.Decimal.Sub(other.Decimal))
}

// Mul 乘法
func (m Money) Mul(other Money) Money {
	return NewMoneyFromDecimal(m.Decimal.Mul(other.Decimal))
}

// Div 除法，除数为零时返回零
func (m Money) Div(other Money) Money {
	if other.Decimal.IsZero() {
		return ZeroMoney()
	}
	return NewMoneyFromDecimal(m.Decimal.DivRound(other.Decimal, moneyScale+4))
}

// Percent 计算 amount * rate / 100
func Percent(amount, rate Money) Money {
	return NewMoneyFromDecimal(amount.Decimal.Mul(rate.Decimal).Div(hundred))
}

// Ratio 计算 numerator / denominator 的高精度比例，分母为零时返回零
func Ratio(numerator, denominator Money) decimal.Decimal {
	if denominator.Decimal.IsZero() {
		return decimal.Zero
	}
	return numerator.Decimal.DivRound(denominator.Decimal, 8)
}

// Scale 按比例缩放金额
func (m Money) Scale(ratio decimal.Decimal) Money {
	return NewMoneyFromDecimal(m.Decimal.Mul(ratio))
}

// Cmp 比较大小，返回 -1/0/1
func (m Money) Cmp(other Money) int {
	return m.Decimal.Round(moneyScale).Cmp(other.Decimal.Round(moneyScale))
}

// MinMoney 返回较小值
func MinMoney(a, b Money) Money {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// MaxMoney 返回较大值
func MaxMoney(a, b Money) Money {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Neg 取反
func (m Money) Neg() Money {
	return NewMoneyFromDecimal(m.Decimal.Neg())
}

// Abs 绝对值
func (m Money) Abs() Money {
	return NewMoneyFromDecimal(m.Decimal.Abs())
}

// IsPositive 是否大于零
func (m Money) IsPositive() bool {
	return m.Decimal.Round(moneyScale).IsPositive()
}

// IsNegative 是否小于零
func (m Money) IsNegative() bool {
	return m.Decimal.Round(moneyScale).IsNegative()
}

// IsZero 是否为零
func (m Money) IsZero() bool {
	return m.Decimal.Round(moneyScale).IsZero()
}

// ToFixed 按指定小数位输出字符串
func (m Money) ToFixed(places int32) string {
	return m.Decimal.StringFixed(places)
}

// ToNumber 转为 float64，仅用于展示与指标
func (m Money) ToNumber() float64 {
	f, _ := m.Decimal.Round(moneyScale).Float64()
	return f
}

// MarshalJSON 统一输出 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.Round(moneyScale).StringFixed(moneyScale))
}

// UnmarshalJSON 解析金额（字符串或数字）
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := NewMoney(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	m.Decimal = d.Round(moneyScale)
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(moneyScale).Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(moneyScale)
	return nil
}

// String 返回 2 位小数格式
func (m Money) String() string {
	return m.Decimal.Round(moneyScale).StringFixed(moneyScale)
}
