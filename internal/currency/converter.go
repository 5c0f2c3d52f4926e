// Package currency converts transaction amounts into the canonical reporting
// currency (PLN) using a fixed rate table. The rates are constants versioned
// with the service, not runtime configuration.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/ledger"
)

// Fixed exchange rates into PLN.
var rates = map[ledger.Currency]decimal.Decimal{
	ledger.PLN: decimal.NewFromInt(1),
	ledger.EUR: decimal.RequireFromString("4.3"),
	ledger.USD: decimal.RequireFromString("4.0"),
}

// Convert returns the raw PLN value of amount without rounding. Aggregations
// must sum raw converted values and round only the final reported total;
// rounding each row first accumulates error across many small transactions.
func Convert(amount decimal.Decimal, c ledger.Currency) (decimal.Decimal, error) {
	rate, ok := rates[c]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("convert: unsupported currency %q", c)
	}
	return amount.Mul(rate), nil
}

// RoundPLN applies the reporting rounding policy: 2 decimal places,
// round half up. Applied exactly once, to a final total or a single
// converted amount, never to an intermediate sum.
func RoundPLN(d decimal.Decimal) decimal.Decimal {
	// decimal.Round rounds half away from zero, which equals half up for the
	// non-negative amounts this system stores.
	return d.Round(2)
}

// ToPLN converts and rounds a single amount. Use only when the value is the
// final reported figure, not an input to a further sum.
func ToPLN(amount decimal.Decimal, c ledger.Currency) (decimal.Decimal, error) {
	v, err := Convert(amount, c)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return RoundPLN(v), nil
}
