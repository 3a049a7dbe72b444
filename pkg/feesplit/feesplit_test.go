package feesplit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		price      uint64
		feeBps     uint16
		wantFee    uint64
		wantSeller uint64
	}{
		{"five percent", 1000, 500, 50, 950},
		{"rounds down", 999, 500, 49, 950},
		{"zero fee", 1000, 0, 0, 1000},
		{"full fee", 1000, 10000, 1000, 0},
		{"zero price", 0, 500, 0, 0},
		{"one basis point", 10000, 1, 1, 9999},
		{"sub-bps price", 99, 1, 0, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, seller, err := Split(tt.price, tt.feeBps)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantSeller, seller)
			assert.Equal(t, tt.price, fee+seller, "split must conserve the price")
		})
	}
}

func TestSplitOverflow(t *testing.T) {
	_, _, err := Split(math.MaxUint64, 10000)
	assert.ErrorIs(t, err, ErrMathOverflow)
}

func TestSplitLargePriceNoOverflow(t *testing.T) {
	// MaxUint64/10000 keeps the multiply within 64 bits for any valid rate.
	price := uint64(math.MaxUint64 / 10000)
	fee, seller, err := Split(price, 10000)
	require.NoError(t, err)
	assert.Equal(t, price, fee)
	assert.Zero(t, seller)
}

func TestRedeemFee(t *testing.T) {
	fee, err := RedeemFee(1000, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), fee, "redeem charges half the purchase fee")

	fee, err = RedeemFee(1000, 0)
	require.NoError(t, err)
	assert.Zero(t, fee)

	// Odd fees round down again.
	fee, err = RedeemFee(999, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), fee)
}

func TestRedeemFeeOverflow(t *testing.T) {
	_, err := RedeemFee(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrMathOverflow)
}
