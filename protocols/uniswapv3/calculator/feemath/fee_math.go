// Package feemath implements the uncollected-fee accounting used by
// concentrated-liquidity venues. Fee growth counters are X128 fixed-point
// values that wrap around 2^256 by design; all subtraction here is modular.
// Saturating or checked subtraction would corrupt the accounting whenever a
// counter has wrapped, so uint256 wrapping arithmetic is load-bearing.
package feemath

import (
	"math/big"

	"github.com/holiman/uint256"
)

// FeeGrowthInside derives the fee growth accumulated inside a tick range from
// the pool's global counter and the two boundary ticks' outside counters.
//
// currentTick selects which side of each boundary the outside counter refers
// to, mirroring the venue's own bookkeeping:
//
//	below = outsideLower            if currentTick >= lowerTick
//	      = global - outsideLower   otherwise
//	above = outsideUpper            if currentTick <  upperTick
//	      = global - outsideUpper   otherwise
//	inside = global - below - above  (mod 2^256)
func FeeGrowthInside(
	global, outsideLower, outsideUpper *uint256.Int,
	lowerTick, upperTick, currentTick int64,
) *uint256.Int {
	below := new(uint256.Int)
	if currentTick >= lowerTick {
		below.Set(outsideLower)
	} else {
		below.Sub(global, outsideLower)
	}

	above := new(uint256.Int)
	if currentTick < upperTick {
		above.Set(outsideUpper)
	} else {
		above.Sub(global, outsideUpper)
	}

	inside := new(uint256.Int).Sub(global, below)
	return inside.Sub(inside, above)
}

// UncollectedAmount converts the growth accumulated since the position's
// snapshot into a token amount: (insideNow - snapshot) * liquidity >> 128,
// with the subtraction performed mod 2^256 and the final shift flooring.
func UncollectedAmount(insideNow, snapshot *uint256.Int, liquidity *big.Int) *big.Int {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	delta := new(uint256.Int).Sub(insideNow, snapshot)

	amount := new(big.Int).Mul(delta.ToBig(), liquidity)
	return amount.Rsh(amount, 128)
}
