package uniswapv3

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Pool is the venue-side view of a single Uniswap V3 pool: the spot state the
// valuation path reads plus the fee-growth counters the yield path reads.
type Pool struct {
	ID           uint64         `json:"id"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Tick         int64          `json:"tick"`
	SqrtPriceX96 *big.Int       `json:"sqrtPriceX96"`

	FeeGrowthGlobal0X128 *uint256.Int `json:"feeGrowthGlobal0X128"`
	FeeGrowthGlobal1X128 *uint256.Int `json:"feeGrowthGlobal1X128"`

	// Ticks holds only the boundary ticks referenced by custodied positions;
	// presence of an entry implicitly means the tick is initialized.
	Ticks map[int64]TickState `json:"ticks"`
}

// TickState carries the per-tick outside counters needed to derive fee growth
// inside a position's range.
type TickState struct {
	FeeGrowthOutside0X128 *uint256.Int `json:"feeGrowthOutside0X128"`
	FeeGrowthOutside1X128 *uint256.Int `json:"feeGrowthOutside1X128"`
}

// Position is the immutable record captured when a position enters custody.
// The fee-growth snapshot is reference data for yield recomputation and is
// never advanced in storage.
type Position struct {
	ID        uint64   `json:"id"`
	PoolID    uint64   `json:"poolId"`
	LowerTick int64    `json:"lowerTick"`
	UpperTick int64    `json:"upperTick"`
	SqrtLower *big.Int `json:"sqrtLowerX96"`
	SqrtUpper *big.Int `json:"sqrtUpperX96"`
	Liquidity *big.Int `json:"liquidity"`

	FeeGrowthInside0LastX128 *uint256.Int `json:"feeGrowthInside0LastX128"`
	FeeGrowthInside1LastX128 *uint256.Int `json:"feeGrowthInside1LastX128"`

	Holder common.Address `json:"holder"`
}
