// Package uniswapv2 adapts constant-product LP claims as collateral. An LP
// token is treated as a full-range position: its principal is the pro-rata
// share of both reserves, and trading fees compound into the reserves rather
// than accruing separately.
package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-vault-go/protocols"
)

var (
	ErrPoolNotFound     = errors.New("uniswapv2: pool not found")
	ErrPositionNotFound = errors.New("uniswapv2: position not found")
	ErrNotHolder        = errors.New("uniswapv2: transfer from non-holder")
	ErrInvalidPosition  = errors.New("uniswapv2: invalid position record")
	ErrEmptyPool        = errors.New("uniswapv2: pool has no supply")

	two = big.NewInt(2)
)

// Pool is the venue-side view of a constant-product pool.
type Pool struct {
	ID          uint64         `json:"id"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	TotalSupply *big.Int       `json:"totalSupply"`
}

// Position is an LP balance held in custody.
type Position struct {
	ID       uint64         `json:"id"`
	PoolID   uint64         `json:"poolId"`
	LPAmount *big.Int       `json:"lpAmount"`
	Holder   common.Address `json:"holder"`
}

// Venue implements protocols.Venue for constant-product pools. Like the V3
// venue it is non-thread-safe; the execution environment serializes calls.
type Venue struct {
	id        protocols.VenueID
	pools     map[uint64]*Pool
	positions map[uint64]*Position
}

func NewVenue(id protocols.VenueID) *Venue {
	return &Venue{
		id:        id,
		pools:     make(map[uint64]*Pool),
		positions: make(map[uint64]*Position),
	}
}

func (v *Venue) ID() protocols.VenueID { return v.id }

// SetPool inserts or replaces the tracked state for a pool.
func (v *Venue) SetPool(pool *Pool) error {
	if pool == nil || pool.Reserve0 == nil || pool.Reserve1 == nil || pool.TotalSupply == nil {
		return ErrPoolNotFound
	}
	if pool.TotalSupply.Sign() <= 0 {
		return ErrEmptyPool
	}
	v.pools[pool.ID] = pool
	return nil
}

// CapturePosition records an LP balance entering custody under holder.
func (v *Venue) CapturePosition(pos *Position, holder common.Address) error {
	if pos == nil || pos.LPAmount == nil || pos.LPAmount.Sign() <= 0 {
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

// PrincipalAmounts returns the pro-rata share of both reserves, floored.
func (v *Venue) PrincipalAmounts(positionID uint64) (*big.Int, *big.Int, error) {
	pos, pool, err := v.position(positionID)
	if err != nil {
		return nil, nil, err
	}
	if pool.TotalSupply.Sign() <= 0 {
		return nil, nil, ErrEmptyPool
	}
	amount0 := new(big.Int).Mul(pos.LPAmount, pool.Reserve0)
	amount0.Div(amount0, pool.TotalSupply)
	amount1 := new(big.Int).Mul(pos.LPAmount, pool.Reserve1)
	amount1.Div(amount1, pool.TotalSupply)
	return amount0, amount1, nil
}

// UncollectedYield is always zero for constant-product LPs: swap fees land in
// the reserves and are already captured by PrincipalAmounts.
func (v *Venue) UncollectedYield(positionID uint64) (*big.Int, *big.Int, error) {
	if _, _, err := v.position(positionID); err != nil {
		return nil, nil, err
	}
	return new(big.Int), new(big.Int), nil
}

// MaxAmounts bounds each side's exposure at twice the current pro-rata share.
// A constant-product claim has no hard boundary like a range position, so
// capacity accounting uses the pool's full value rotated into one asset at
// the current price.
func (v *Venue) MaxAmounts(positionID uint64) (*big.Int, *big.Int, error) {
	amount0, amount1, err := v.PrincipalAmounts(positionID)
	if err != nil {
		return nil, nil, err
	}
	return amount0.Mul(amount0, two), amount1.Mul(amount1, two), nil
}

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
