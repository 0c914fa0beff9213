package rangemath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRandInt generates a random big.Int up to a given number of bits.
func newRandInt(bits int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return n
}

func sqrtPriceForPrice(price int64) *big.Int {
	// sqrt(price) * 2^96, good enough for test fixtures with square prices.
	s := new(big.Int).Sqrt(big.NewInt(price))
	return s.Mul(s, Q96)
}

func TestGetAmount0Delta_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)

		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if sqrtQ.Sign() == 0 {
			sqrtQ.SetInt64(1)
		}

		amount0Down := new(big.Int)
		err := GetAmount0Delta(amount0Down, sqrtP, sqrtQ, liquidity, false)
		require.NoError(t, err)

		amount0Up := new(big.Int)
		err = GetAmount0Delta(amount0Up, sqrtP, sqrtQ, liquidity, true)
		require.NoError(t, err)

		// assert(amount0Down <= amount0Up)
		assert.True(t, amount0Down.Cmp(amount0Up) <= 0)

		// assert(amount0Up - amount0Down < 2)
		diff := new(big.Int).Sub(amount0Up, amount0Down)
		assert.True(t, diff.Cmp(big.NewInt(2)) < 0)
	}
}

func TestGetAmount1Delta_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)

		if sqrtP.Sign() == 0 {
			sqrtP.SetInt64(1)
		}
		if sqrtQ.Sign() == 0 {
			sqrtQ.SetInt64(1)
		}

		amount1Down := new(big.Int)
		GetAmount1Delta(amount1Down, sqrtP, sqrtQ, liquidity, false)

		amount1Up := new(big.Int)
		GetAmount1Delta(amount1Up, sqrtP, sqrtQ, liquidity, true)

		assert.True(t, amount1Down.Cmp(amount1Up) <= 0)

		diff := new(big.Int).Sub(amount1Up, amount1Down)
		assert.True(t, diff.Cmp(big.NewInt(2)) < 0)
	}
}

func TestAmountsForLiquidity_BelowRange(t *testing.T) {
	sqrtA := sqrtPriceForPrice(4)
	sqrtB := sqrtPriceForPrice(9)
	spot := sqrtPriceForPrice(1)
	liquidity := big.NewInt(1_000_000)

	amount0, amount1 := new(big.Int), new(big.Int)
	require.NoError(t, AmountsForLiquidity(amount0, amount1, spot, sqrtA, sqrtB, liquidity))

	assert.Zero(t, amount1.Sign(), "below range the position holds only token0")

	want := new(big.Int)
	require.NoError(t, GetAmount0Delta(want, sqrtA, sqrtB, liquidity, false))
	assert.Equal(t, want, amount0)
}

func TestAmountsForLiquidity_AboveRange(t *testing.T) {
	sqrtA := sqrtPriceForPrice(4)
	sqrtB := sqrtPriceForPrice(9)
	spot := sqrtPriceForPrice(16)
	liquidity := big.NewInt(1_000_000)

	amount0, amount1 := new(big.Int), new(big.Int)
	require.NoError(t, AmountsForLiquidity(amount0, amount1, spot, sqrtA, sqrtB, liquidity))

	assert.Zero(t, amount0.Sign(), "above range the position holds only token1")

	want := new(big.Int)
	GetAmount1Delta(want, sqrtA, sqrtB, liquidity, false)
	assert.Equal(t, want, amount1)
}

func TestAmountsForLiquidity_InsideRange(t *testing.T) {
	sqrtA := sqrtPriceForPrice(4)
	sqrtB := sqrtPriceForPrice(16)
	spot := sqrtPriceForPrice(9)
	liquidity := big.NewInt(1_000_000)

	amount0, amount1 := new(big.Int), new(big.Int)
	require.NoError(t, AmountsForLiquidity(amount0, amount1, spot, sqrtA, sqrtB, liquidity))

	assert.Positive(t, amount0.Sign())
	assert.Positive(t, amount1.Sign())

	// Inside the range the split matches the per-side deltas exactly.
	want0, want1 := new(big.Int), new(big.Int)
	require.NoError(t, GetAmount0Delta(want0, spot, sqrtB, liquidity, false))
	GetAmount1Delta(want1, sqrtA, spot, liquidity, false)
	assert.Equal(t, want0, amount0)
	assert.Equal(t, want1, amount1)
}

func TestAmountsForLiquidity_MonotoneInSpot(t *testing.T) {
	sqrtA := sqrtPriceForPrice(4)
	sqrtB := sqrtPriceForPrice(100)
	liquidity := big.NewInt(1_000_000_000)

	prev0 := new(big.Int).Lsh(big.NewInt(1), 255)
	for price := int64(4); price <= 100; price += 3 {
		amount0, amount1 := new(big.Int), new(big.Int)
		require.NoError(t, AmountsForLiquidity(amount0, amount1, sqrtPriceForPrice(price), sqrtA, sqrtB, liquidity))
		// token0 exposure shrinks as the price climbs through the range.
		assert.True(t, amount0.Cmp(prev0) <= 0)
		prev0.Set(amount0)
		_ = amount1
	}
}

func TestAmountsForLiquidity_InvertedRange(t *testing.T) {
	amount0, amount1 := new(big.Int), new(big.Int)
	err := AmountsForLiquidity(amount0, amount1, sqrtPriceForPrice(9), sqrtPriceForPrice(16), sqrtPriceForPrice(4), big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvertedRange)
}
