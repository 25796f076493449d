package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = gomoney.KRW

// Formatter renders integer ledger amounts (minor units of Currency) for display.
type Formatter struct {
	currency string
}

// NewFormatter validates the ISO code against go-money's currency table.
func NewFormatter(code string) (*Formatter, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	if gomoney.GetCurrency(code) == nil {
		return nil, fmt.Errorf("unknown currency %q", code)
	}
	return &Formatter{currency: code}, nil
}

// Currency returns the ISO code.
func (f *Formatter) Currency() string {
	return f.currency
}

// Format renders amount with the currency symbol and grouping, e.g. ₩1,500,000.
func (f *Formatter) Format(amount int64) string {
	return gomoney.New(amount, f.currency).Display()
}

// Major converts minor units into a decimal in major units.
func (f *Formatter) Major(amount int64) decimal.Decimal {
	cur := gomoney.GetCurrency(f.currency)
	return decimal.NewFromInt(amount).Shift(-int32(cur.Fraction))
}

// PercentChange returns (to-from)/|from|*100 rounded to two places, or nil when from is zero.
func PercentChange(from, to int64) *decimal.Decimal {
	if from == 0 {
		return nil
	}
	base := decimal.NewFromInt(from).Abs()
	pct := decimal.NewFromInt(to - from).Div(base).Mul(decimal.NewFromInt(100)).Round(2)
	return &pct
}
