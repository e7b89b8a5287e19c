package booking

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettle(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		fee      int64
		provider int64
	}{
		{name: "whole amount", amount: 15000, fee: 2700, provider: 12300},
		{name: "fractional cent rounds up", amount: 9999, fee: 1800, provider: 8199},
		{name: "half cent rounds up", amount: 25, fee: 5, provider: 20},
		{name: "below half cent rounds down", amount: 2, fee: 0, provider: 2},
		{name: "one cent", amount: 1, fee: 0, provider: 1},
		{name: "zero", amount: 0, fee: 0, provider: 0},
		{name: "large", amount: 123456789, fee: 22222222, provider: 101234567},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Settle(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.fee, s.PlatformFeeCents)
			assert.Equal(t, tt.provider, s.ProviderReceivesCents)
			assert.Equal(t, tt.amount, s.TotalPaidCents)
		})
	}
}

func TestSettle_PartsAlwaysSumToTotal(t *testing.T) {
	r := rand.New(rand.NewPCG(18, 2026))
	for i := 0; i < 10000; i++ {
		amount := r.Int64N(maxPriceCents + 1)
		s, err := Settle(amount)
		require.NoError(t, err)
		require.Equal(t, s.TotalPaidCents, s.PlatformFeeCents+s.ProviderReceivesCents, "amount %d", amount)
		require.Equal(t, amount, s.TotalPaidCents)
		require.GreaterOrEqual(t, s.ProviderReceivesCents, int64(0))
	}
}

func TestSettle_Negative(t *testing.T) {
	_, err := Settle(-1)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestReceiptNumber(t *testing.T) {
	assert.Equal(t, "RCP-2026-7KQ2MX", ReceiptNumber("BK-7KQ2MX", 2026))
	assert.Equal(t, ReceiptNumber("BK-7KQ2MX", 2026), ReceiptNumber("BK-7KQ2MX", 2026))
	assert.NotEqual(t, ReceiptNumber("BK-7KQ2MX", 2026), ReceiptNumber("BK-7KQ2MX", 2027))
}

func TestPaymentMethod_IsValid(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentCard, PaymentCash, PaymentBankTransfer, PaymentWallet} {
		assert.True(t, m.IsValid(), m)
	}
	assert.False(t, PaymentMethod("").IsValid())
	assert.False(t, PaymentMethod("crypto").IsValid())
}
