// Package money provides currency-safe arithmetic over integer cents for
// import totals. Values are Brazilian reais unless stated otherwise.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency codes (ISO-4217) accepted by the import pipeline.
const (
	BRL = "BRL" // Brazilian Real
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
)

// Money represents a monetary value with currency.
// It wraps go-money for safe arithmetic and shopspring/decimal for conversions.
type Money struct {
	m *money.Money
}

// New creates a Money value from cents (minor units).
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal, rounding to the currency's
// minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currencyCode = BRL
		currency = money.GetCurrency(BRL)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, currencyCode)
}

// NewFromFloat creates Money from a parsed spreadsheet amount.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return NewFromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

// Reais is shorthand for NewFromFloat(amount, BRL).
func Reais(amount float64) *Money {
	return NewFromFloat(amount, BRL)
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units (cents).
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative returns true if the amount is less than zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the absolute value.
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(BRL)
	}
	return &Money{m: m.m.Absolute()}
}

// Negate returns the negated value.
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return Zero(BRL)
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns the amount formatted for its currency, e.g. "R$1.234,56".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "R$0,00"
	}
	return m.m.Display()
}

// Plain returns the display form without the currency symbol, e.g.
// "1.234,56" or "-45,90". This is how bank statements print amounts.
func (m *Money) Plain() string {
	if m == nil || m.m == nil {
		return "0,00"
	}
	abs := m.m.Absolute().Display()
	abs = strings.TrimSpace(strings.TrimPrefix(abs, m.m.Currency().Grapheme))
	if m.m.IsNegative() {
		return "-" + abs
	}
	return abs
}

// String returns the amount as a decimal string (e.g., "1234.56").
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	d := decimal.NewFromInt(m.m.Amount())
	return d.Div(decimal.New(1, int32(m.m.Currency().Fraction)))
}

// ToFloat64 converts to float64 for JSON responses and storage in numeric
// columns.
func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}
