package uniswapv3

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-vault-go/protocols"
	"github.com/defistate/defistate-vault-go/protocols/uniswapv3/calculator/feemath"
	"github.com/defistate/defistate-vault-go/protocols/uniswapv3/calculator/rangemath"
)

var (
	ErrPoolNotFound     = errors.New("uniswapv3: pool not found")
	ErrPositionNotFound = errors.New("uniswapv3: position not found")
	ErrTickNotTracked   = errors.New("uniswapv3: boundary tick not tracked")
	ErrNotHolder        = errors.New("uniswapv3: transfer from non-holder")
	ErrInvalidPosition  = errors.New("uniswapv3: invalid position record")
)

// Venue adapts Uniswap V3 style pools to the protocols.Venue capability
// contract. It is a simple, non-thread-safe structure: the execution
// environment serializes all top-level calls, so no locking is required.
type Venue struct {
	id        protocols.VenueID
	pools     map[uint64]*Pool
	positions map[uint64]*Position
}

// NewVenue constructs an empty venue registered under the given identity.
func NewVenue(id protocols.VenueID) *Venue {
	return &Venue{
		id:        id,
		pools:     make(map[uint64]*Pool),
		positions: make(map[uint64]*Position),
	}
}

func (v *Venue) ID() protocols.VenueID { return v.id }

// SetPool inserts or replaces the tracked state for a pool. The state feed
// that keeps spot prices and fee-growth counters current calls this on every
// update; readers always see the latest complete record.
func (v *Venue) SetPool(pool *Pool) error {
	if pool == nil || pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.Sign() <= 0 {
		return fmt.Errorf("%w: missing sqrt price", ErrPoolNotFound)
	}
	v.pools[pool.ID] = pool
	return nil
}

// CapturePosition records a position entering custody under holder. The
// record is immutable afterwards; only Holder changes, via TransferPosition.
func (v *Venue) CapturePosition(pos *Position, holder common.Address) error {
	if pos == nil || pos.Liquidity == nil || pos.Liquidity.Sign() <= 0 {
		return ErrInvalidPosition
	}
	if pos.SqrtLower == nil || pos.SqrtUpper == nil || pos.SqrtLower.Cmp(pos.SqrtUpper) >= 0 {
		return ErrInvalidPosition
	}
	if pos.FeeGrowthInside0LastX128 == nil || pos.FeeGrowthInside1LastX128 == nil {
		return ErrInvalidPosition
	}
	if _, ok := v.pools[pos.PoolID]; !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, pos.PoolID)
	}
	pos.Holder = holder
	v.positions[pos.ID] = pos
	return nil
}

// ReleasePosition drops a position from custody tracking entirely.
func (v *Venue) ReleasePosition(positionID uint64) {
	delete(v.positions, positionID)
}

func (v *Venue) position(positionID uint64) (*Position, *Pool, error) {
	pos, ok := v.positions[positionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrPositionNotFound, positionID)
	}
	pool, ok := v.pools[pos.PoolID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrPoolNotFound, pos.PoolID)
	}
	return pos, pool, nil
}

// PositionDetails resolves the position's asset pair and pool identity.
func (v *Venue) PositionDetails(positionID uint64) (protocols.Details, error) {
	pos, pool, err := v.position(positionID)
	if err != nil {
		return protocols.Details{}, err
	}
	return protocols.Details{
		Token0: pool.Token0,
		Token1: pool.Token1,
		PoolID: pos.PoolID,
	}, nil
}

// PrincipalAmounts decomposes the position's liquidity at the pool's current
// sqrt price: all token0 below the range, all token1 above it, a smooth split
// in between.
func (v *Venue) PrincipalAmounts(positionID uint64) (*big.Int, *big.Int, error) {
	pos, pool, err := v.position(positionID)
	if err != nil {
		return nil, nil, err
	}
	amount0, amount1 := new(big.Int), new(big.Int)
	if err := rangemath.AmountsForLiquidity(
		amount0, amount1,
		pool.SqrtPriceX96, pos.SqrtLower, pos.SqrtUpper, pos.Liquidity,
	); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// UncollectedYield recomputes the fees accrued since the position's stored
// fee-growth snapshot. The underlying counters wrap mod 2^256; the modular
// subtraction in feemath is the correct computation, not an error path.
func (v *Venue) UncollectedYield(positionID uint64) (*big.Int, *big.Int, error) {
	pos, pool, err := v.position(positionID)
	if err != nil {
		return nil, nil, err
	}
	lower, ok := pool.Ticks[pos.LowerTick]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrTickNotTracked, pos.LowerTick)
	}
	upper, ok := pool.Ticks[pos.UpperTick]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrTickNotTracked, pos.UpperTick)
	}

	inside0 := feemath.FeeGrowthInside(
		pool.FeeGrowthGlobal0X128, lower.FeeGrowthOutside0X128, upper.FeeGrowthOutside0X128,
		pos.LowerTick, pos.UpperTick, pool.Tick,
	)
	inside1 := feemath.FeeGrowthInside(
		pool.FeeGrowthGlobal1X128, lower.FeeGrowthOutside1X128, upper.FeeGrowthOutside1X128,
		pos.LowerTick, pos.UpperTick, pool.Tick,
	)

	fees0 := feemath.UncollectedAmount(inside0, pos.FeeGrowthInside0LastX128, pos.Liquidity)
	fees1 := feemath.UncollectedAmount(inside1, pos.FeeGrowthInside1LastX128, pos.Liquidity)
	return fees0, fees1, nil
}

// MaxAmounts returns the boundary exposure of the position: the full-range
// token0 amount were the price to exit below, and the full-range token1
// amount were it to exit above.
func (v *Venue) MaxAmounts(positionID uint64) (*big.Int, *big.Int, error) {
	pos, _, err := v.position(positionID)
	if err != nil {
		return nil, nil, err
	}
	max0, max1 := new(big.Int), new(big.Int)
	if err := rangemath.GetAmount0Delta(max0, pos.SqrtLower, pos.SqrtUpper, pos.Liquidity, false); err != nil {
		return nil, nil, err
	}
	rangemath.GetAmount1Delta(max1, pos.SqrtLower, pos.SqrtUpper, pos.Liquidity, false)
	return max0, max1, nil
}

// TransferPosition reassigns custody of the position.
func (v *Venue) TransferPosition(from, to common.Address, positionID uint64) error {
	pos, ok := v.positions[positionID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPositionNotFound, positionID)
	}
	if pos.Holder != from {
		return fmt.Errorf("%w: position %d held by %s", ErrNotHolder, positionID, pos.Holder)
	}
	pos.Holder = to
	return nil
}
