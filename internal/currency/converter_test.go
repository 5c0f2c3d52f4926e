package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/sales-ledger/internal/ledger"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency ledger.Currency
		want     string
	}{
		{name: "PLN is identity", amount: "100.00", currency: ledger.PLN, want: "100"},
		{name: "EUR at 4.3", amount: "10.00", currency: ledger.EUR, want: "43"},
		{name: "USD at 4.0", amount: "5.00", currency: ledger.USD, want: "20"},
		{name: "zero amount", amount: "0", currency: ledger.EUR, want: "0"},
		{name: "sub-grosz product kept raw", amount: "0.01", currency: ledger.EUR, want: "0.043"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"Convert(%s %s) = %s, want %s", tt.amount, tt.currency, got, tt.want)
		})
	}
}

func TestConvertUnsupportedCurrency(t *testing.T) {
	_, err := Convert(decimal.RequireFromString("1.00"), ledger.Currency("GBP"))
	assert.Error(t, err)
}

func TestRoundPLNHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"1.015", "1.02"},
		{"2.675", "2.68"},
		{"163", "163.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundPLN(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

// A mixed-currency total must equal the sum of raw converted values rounded
// once: 100 PLN + 10 EUR + 5 USD = 100 + 43 + 20 = 163.00 PLN.
func TestMixedCurrencyTotal(t *testing.T) {
	var total decimal.Decimal
	for _, part := range []struct {
		amount   string
		currency ledger.Currency
	}{
		{"100.00", ledger.PLN},
		{"10.00", ledger.EUR},
		{"5.00", ledger.USD},
	} {
		v, err := Convert(decimal.RequireFromString(part.amount), part.currency)
		require.NoError(t, err)
		total = total.Add(v)
	}

	assert.Equal(t, "163.00", RoundPLN(total).StringFixed(2))
}

// Summing raw values and rounding once can differ from rounding each row
// first; the reporting policy is sum-then-round.
func TestSumThenRoundDiffersFromRoundThenSum(t *testing.T) {
	rows := []string{"0.01", "0.01", "0.01", "0.01", "0.01"}

	var raw, prerounded decimal.Decimal
	for _, r := range rows {
		v, err := Convert(decimal.RequireFromString(r), ledger.EUR)
		require.NoError(t, err)
		raw = raw.Add(v)
		prerounded = prerounded.Add(RoundPLN(v))
	}

	// 5 * 0.043 = 0.215 rounds to 0.22; 5 * 0.04 stays 0.20.
	assert.Equal(t, "0.22", RoundPLN(raw).StringFixed(2))
	assert.Equal(t, "0.20", prerounded.StringFixed(2))
}

func TestToPLN(t *testing.T) {
	got, err := ToPLN(decimal.RequireFromString("2.33"), ledger.EUR)
	require.NoError(t, err)
	// 2.33 * 4.3 = 10.019 rounds to 10.02.
	assert.Equal(t, "10.02", got.StringFixed(2))
}
