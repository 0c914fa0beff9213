package rangemath

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// Q96 is the UQ64.96 fixed-point number representing 1.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	// Resolution is the number of bits in the Q96 format.
	Resolution = uint(96)

	ErrSqrtPriceZero = errors.New("sqrt price must be greater than zero")
	ErrInvertedRange = errors.New("lower sqrt price must be below upper sqrt price")

	// one is a pre-computed big.Int for the value 1.
	one = big.NewInt(1)
)

// RangeMath holds reusable big.Int objects to avoid memory allocations.
// Instances are managed by a sync.Pool for safe concurrent use.
type RangeMath struct {
	product    *big.Int
	numerator1 *big.Int
	numerator2 *big.Int
	term       *big.Int
	rem        *big.Int
}

// pool manages a pool of RangeMath objects.
var pool = sync.Pool{
	New: func() any {
		return &RangeMath{
			product:    new(big.Int),
			numerator1: new(big.Int),
			numerator2: new(big.Int),
			term:       new(big.Int),
			rem:        new(big.Int),
		}
	},
}

// mulDiv writes (a * b) / c into dest.
func (r *RangeMath) mulDiv(dest, a, b, c *big.Int) {
	r.product.Mul(a, b)
	dest.Div(r.product, c)
}

// mulDivRoundingUp writes ceil((a * b) / c) into dest.
func (r *RangeMath) mulDivRoundingUp(dest, a, b, c *big.Int) {
	r.product.Mul(a, b)
	dest.Div(r.product, c)
	if r.rem.Rem(r.product, c).Sign() > 0 {
		dest.Add(dest, one)
	}
}

// divRoundingUp writes ceil(a / b) into dest.
func (r *RangeMath) divRoundingUp(dest, a, b *big.Int) {
	dest.Div(a, b)
	if r.rem.Rem(a, b).Sign() > 0 {
		dest.Add(dest, one)
	}
}

// GetAmount0Delta calculates the token0 amount covered by liquidity between two sqrt prices.
func GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	r := pool.Get().(*RangeMath)
	defer pool.Put(r)
	return r.getAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity, roundUp)
}

// GetAmount1Delta calculates the token1 amount covered by liquidity between two sqrt prices.
func GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) {
	r := pool.Get().(*RangeMath)
	defer pool.Put(r)
	r.getAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity, roundUp)
}

func (r *RangeMath) getAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}

	r.numerator1.Lsh(liquidity, Resolution)
	r.numerator2.Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		r.mulDivRoundingUp(r.term, r.numerator1, r.numerator2, sqrtRatioBX96)
		r.divRoundingUp(dest, r.term, sqrtRatioAX96)
	} else {
		r.mulDiv(r.term, r.numerator1, r.numerator2, sqrtRatioBX96)
		dest.Div(r.term, sqrtRatioAX96)
	}
	return nil
}

func (r *RangeMath) getAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	r.numerator1.Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		r.mulDivRoundingUp(dest, liquidity, r.numerator1, Q96)
	} else {
		r.mulDiv(dest, liquidity, r.numerator1, Q96)
	}
}

// AmountsForLiquidity decomposes a liquidity amount over the range
// [sqrtRatioAX96, sqrtRatioBX96] into its token0 and token1 quantities at the
// current sqrt price. Below the range the value is entirely token0, above it
// entirely token1, and inside the range it is split at the current price.
// Amounts round down; the decomposition never credits more than the range holds.
func AmountsForLiquidity(
	amount0, amount1 *big.Int,
	sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int,
) error {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		return ErrInvertedRange
	}
	if sqrtRatioX96.Sign() <= 0 || sqrtRatioAX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}

	switch {
	case sqrtRatioX96.Cmp(sqrtRatioAX96) <= 0:
		amount1.SetInt64(0)
		return GetAmount0Delta(amount0, sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
	case sqrtRatioX96.Cmp(sqrtRatioBX96) >= 0:
		amount0.SetInt64(0)
		GetAmount1Delta(amount1, sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
		return nil
	default:
		if err := GetAmount0Delta(amount0, sqrtRatioX96, sqrtRatioBX96, liquidity, false); err != nil {
			return err
		}
		GetAmount1Delta(amount1, sqrtRatioAX96, sqrtRatioX96, liquidity, false)
		return nil
	}
}
