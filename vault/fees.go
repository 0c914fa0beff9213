package vault

import "math/big"

// Stability fee accrual. A single global wad-scaled fee-per-unit-debt index
// grows as a pure function of time between rate changes; each vault keeps a
// snapshot of the index at its last settlement. Settling folds
// principal * (index - snapshot) / 1e18 into the vault's outstanding fee, so
// no operation ever iterates over other vaults.

const secondsPerYear = 31_536_000

var (
	bps = big.NewInt(10_000)
	wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// rateDenominator folds the bps and per-year scales into one divisor.
	rateDenominator = new(big.Int).Mul(bps, big.NewInt(secondsPerYear))
)

// NewGlobalFeeState starts the index at zero with the given annual rate.
func NewGlobalFeeState(rateBps uint64, now int64) *GlobalFeeState {
	return &GlobalFeeState{
		RateBps:     rateBps,
		UpdatedAt:   now,
		StoredIndex: new(big.Int),
	}
}

// IndexAt extrapolates the global fee index to the given time:
// stored + rateBps * elapsed * 1e18 / (10000 * secondsPerYear), floored.
// Time before the last fold reads as the stored value; the index never
// decreases.
func IndexAt(g *GlobalFeeState, now int64) *big.Int {
	index := new(big.Int).Set(g.StoredIndex)
	if now <= g.UpdatedAt || g.RateBps == 0 {
		return index
	}
	elapsed := big.NewInt(now - g.UpdatedAt)
	accrued := new(big.Int).SetUint64(g.RateBps)
	accrued.Mul(accrued, elapsed)
	accrued.Mul(accrued, wad)
	accrued.Div(accrued, rateDenominator)
	return index.Add(index, accrued)
}

// settleVault folds the index delta since the vault's snapshot into its
// outstanding fee and advances the snapshot. Called before every operation
// that reads or changes debt; the accrued amount floors.
func settleVault(v *Vault, g *GlobalFeeState, now int64) {
	index := IndexAt(g, now)
	delta := new(big.Int).Sub(index, v.FeeIndexSnapshot)
	if delta.Sign() > 0 && v.Principal.Sign() > 0 {
		accrued := new(big.Int).Mul(v.Principal, delta)
		accrued.Div(accrued, wad)
		v.OutstandingFee.Add(v.OutstandingFee, accrued)
	}
	v.FeeIndexSnapshot = index
}

// foldRate advances the stored index at the old rate through now and applies
// the new rate prospectively. This yields the exact time-weighted integral of
// a piecewise-constant rate, not an approximation.
func foldRate(g *GlobalFeeState, newRateBps uint64, now int64) {
	g.StoredIndex = IndexAt(g, now)
	if now > g.UpdatedAt {
		g.UpdatedAt = now
	}
	g.RateBps = newRateBps
}
