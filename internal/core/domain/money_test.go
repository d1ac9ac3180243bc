package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney_Truncates(t *testing.T) {
	tests := []struct {
		raw  string
		want Money
	}{
		{"1.19999999999999911199", 119},
		{"0", 0},
		{"0.0001", 0},
		{"0.009", 0},
		{"0.01", 1},
		{"42.221001", 4222},
		{"15092", 1509200},
		{"12891.1", 1289110},
		{"-0.019", -1},
		{"-5", -500},
		{" 3.5 ", 350},
		{"1e2", 10000},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMoney(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMoney_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrNotNumeric},
		{"blank", "   ", ErrNotNumeric},
		{"word", "Abc", ErrNotNumeric},
		{"two dots", "1.2.3", ErrNotNumeric},
		{"too large", "100000000000000000000", ErrAmountOutOfRange},
		{"too small", "-100000000000000000000", ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMoney(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTruncateToCents_Idempotent(t *testing.T) {
	for _, raw := range []string{"1.19999999999999911199", "0.0001", "-7.777", "12891.1", "0"} {
		d := decimal.RequireFromString(raw)
		once := TruncateToCents(d)
		assert.True(t, once.Equal(TruncateToCents(once)), raw)
	}
}

func TestMoney_String(t *testing.T) {
	tests := []struct {
		m    Money
		want string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{119, "1.19"},
		{1289110, "12891.10"},
		{100000000, "1000000.00"},
		{-1, "-0.01"},
		{-4222, "-42.22"},
		{Money(math.MinInt64), "-92233720368547758.08"},
		{Money(math.MaxInt64), "92233720368547758.07"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.String())
		})
	}
}

func TestMoney_DecimalRoundTrip(t *testing.T) {
	m := Money(1289110)
	assert.Equal(t, "12891.1", m.Decimal().String())

	back, err := FromDecimal(m.Decimal())
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Balance Money `json:"balance"`
	}{Balance: 4222})
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":"42.22"}`, string(data))

	var quoted, bare Money
	require.NoError(t, json.Unmarshal([]byte(`"1.019"`), &quoted))
	require.NoError(t, json.Unmarshal([]byte(`1.019`), &bare))
	assert.Equal(t, Money(101), quoted)
	assert.Equal(t, Money(101), bare)

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &quoted))
}
