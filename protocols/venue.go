package protocols

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VenueID identifies a supported liquidity venue.
// Example: "uniswap-v3/ethereum@v1"
type VenueID string

// Details is the venue-independent description of a custodied position:
// which assets it decomposes into and which pool it belongs to. Range and
// liquidity data stay inside the venue implementation.
type Details struct {
	Token0 common.Address `json:"token0"`
	Token1 common.Address `json:"token1"`
	PoolID uint64         `json:"poolId"`
}

// Venue is the capability contract a liquidity protocol must satisfy to be
// accepted as collateral. One implementation exists per supported venue and
// is selected at deposit time by venue identity, never by runtime type
// inspection.
//
// All methods are reads except TransferPosition, which moves custody of the
// underlying claim. Amount-returning methods evaluate at the venue's current
// spot state and must not mutate stored position records; accrued yield is
// recomputed per query, not persisted incrementally.
type Venue interface {
	ID() VenueID

	// PositionDetails resolves a position's assets and pool identity.
	PositionDetails(positionID uint64) (Details, error)

	// PrincipalAmounts decomposes the position's principal into its two
	// underlying asset quantities at the current spot price.
	PrincipalAmounts(positionID uint64) (amount0, amount1 *big.Int, err error)

	// UncollectedYield returns the accrued but uncollected fee amounts since
	// the position's stored fee-growth snapshot.
	UncollectedYield(positionID uint64) (fees0, fees1 *big.Int, err error)

	// MaxAmounts returns the largest token0 and token1 quantities the
	// position can ever decompose into (its boundary exposure), used for
	// systemic capacity accounting.
	MaxAmounts(positionID uint64) (max0, max1 *big.Int, err error)

	// TransferPosition moves custody of the position between holders.
	TransferPosition(from, to common.Address, positionID uint64) error
}
