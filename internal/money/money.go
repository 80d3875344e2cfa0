// Package money provides a fixed-point monetary amount tagged with an ISO 4217
// currency. Every constructor and arithmetic step rounds to the currency's
// minor unit, so amounts never drift the way binary floats do.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	// ErrCurrencyMismatch is returned when combining amounts of different currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	// ErrUnknownCurrency is returned for codes that are not ISO 4217.
	ErrUnknownCurrency = errors.New("money: unknown currency")
)

// Money is an immutable amount in a single currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New builds Money rounded to the minor unit of currency. Unknown codes fall
// back to two decimal places.
func New(amount decimal.Decimal, code string) Money {
	code = normalize(code)
	return Money{amount: amount.Round(MinorUnits(code)), currency: code}
}

// Zero returns a zero amount in currency.
func Zero(code string) Money {
	return New(decimal.Zero, code)
}

// FromInt builds Money from a whole number of major units.
func FromInt(units int64, code string) Money {
	return New(decimal.NewFromInt(units), code)
}

// Parse builds Money from a decimal string such as "250.00".
func Parse(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", amount, err)
	}
	return New(d, code), nil
}

// MustParse is Parse for constants and tests.
func MustParse(amount, code string) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// ValidateCurrency reports whether code is a known ISO 4217 currency.
func ValidateCurrency(code string) error {
	if _, err := currency.ParseISO(normalize(code)); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return nil
}

// MinorUnits returns the number of decimal places used by currency.
func MinorUnits(code string) int32 {
	unit, err := currency.ParseISO(normalize(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// Amount returns the rounded decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO currency code.
func (m Money) Currency() string { return m.currency }

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return New(m.amount.Add(o.amount), m.currency), nil
}

// Sub returns m - o. The result may be negative; see ClampZero.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return New(m.amount.Sub(o.amount), m.currency), nil
}

// Mul scales m by factor, rounding the product.
func (m Money) Mul(factor decimal.Decimal) Money {
	return New(m.amount.Mul(factor), m.currency)
}

// ClampZero returns zero when m is negative.
func (m Money) ClampZero() Money {
	if m.amount.IsNegative() {
		return Zero(m.currency)
	}
	return m
}

// Cmp compares the amounts of m and o. Currencies are assumed equal.
func (m Money) Cmp(o Money) int { return m.amount.Cmp(o.amount) }

// Equal reports exact equality of currency and amount.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// WithinMinorUnit reports whether m and o differ by at most one minor unit.
func (m Money) WithinMinorUnit(o Money) bool {
	if m.currency != o.currency {
		return false
	}
	tolerance := decimal.New(1, -MinorUnits(m.currency))
	return m.amount.Sub(o.amount).Abs().LessThanOrEqual(tolerance)
}

// Convert applies an exchange rate, producing an amount in target.
func (m Money) Convert(rate decimal.Decimal, target string) Money {
	if normalize(target) == m.currency {
		return m
	}
	return New(m.amount.Mul(rate), target)
}

// String renders "250.00 EGP".
func (m Money) String() string {
	return m.amount.StringFixed(MinorUnits(m.currency)) + " " + m.currency
}

type wireMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as a fixed-point string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMoney{
		Amount:   m.amount.StringFixed(MinorUnits(m.currency)),
		Currency: m.currency,
	})
}

// UnmarshalJSON decodes {"amount":"1.00","currency":"EGP"}.
func (m *Money) UnmarshalJSON(data []byte) error {
	var w wireMoney
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := Parse(w.Amount, w.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds amounts of the same currency, starting from zero in code.
func Sum(code string, amounts ...Money) (Money, error) {
	total := Zero(code)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
