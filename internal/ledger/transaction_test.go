package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{in: "PLN", want: PLN},
		{in: "eur", want: EUR},
		{in: " usd ", want: USD},
		{in: "GBP", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCurrency(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRowErrorMessage(t *testing.T) {
	e := &RowError{Row: 4, Field: "amount", Reason: ReasonInvalidAmount}
	assert.Equal(t, "row 4: field amount: invalid_amount", e.Error())
}
