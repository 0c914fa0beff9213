// Package vault implements the collateralized-debt-position ledger: vault
// lifecycle, stability-fee accrual against a single global index, capacity
// accounting per underlying asset, and forced liquidation settlement. All
// amounts are wei-scale big integers; prices and the fee index are wad
// scaled (1e18); rates and risk fractions are basis points.
package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-vault-go/protocols"
)

// Position is the ledger's record of one deposited collateral position. The
// live range, liquidity and fee-growth data stay with the venue; the ledger
// keeps only what it needs to dispatch reads and to reverse the exposure
// counters by the exact amounts added at deposit.
type Position struct {
	VenueID    protocols.VenueID `json:"venueId"`
	PositionID uint64            `json:"positionId"`
	PoolID     uint64            `json:"poolId"`
	Token0     common.Address    `json:"token0"`
	Token1     common.Address    `json:"token1"`
	// Max0 and Max1 are the boundary exposures recorded when the position
	// entered custody. Withdraw, close and liquidation subtract these same
	// values so the counters cannot drift.
	Max0 *big.Int `json:"max0"`
	Max1 *big.Int `json:"max1"`
}

func (p *Position) clone() *Position {
	if p == nil {
		return nil
	}
	out := *p
	out.Max0 = cloneBig(p.Max0)
	out.Max1 = cloneBig(p.Max1)
	return &out
}

// Vault is one collateralized debt position. A vault is Open from creation
// until its record is deleted by close or liquidation; there is no separate
// terminal state in storage.
type Vault struct {
	ID        uint64         `json:"id"`
	Owner     common.Address `json:"owner"`
	Positions []*Position    `json:"positions"`
	// Principal is the raw minted debt, excluding fees.
	Principal *big.Int `json:"principal"`
	// OutstandingFee is the fee settled onto the vault and not yet paid.
	OutstandingFee *big.Int `json:"outstandingFee"`
	// FeeIndexSnapshot is the wad global fee index at the last settlement.
	FeeIndexSnapshot *big.Int `json:"feeIndexSnapshot"`
}

// Owed returns principal plus settled outstanding fee.
func (v *Vault) Owed() *big.Int {
	return new(big.Int).Add(v.Principal, v.OutstandingFee)
}

func (v *Vault) clone() *Vault {
	if v == nil {
		return nil
	}
	out := *v
	out.Principal = cloneBig(v.Principal)
	out.OutstandingFee = cloneBig(v.OutstandingFee)
	out.FeeIndexSnapshot = cloneBig(v.FeeIndexSnapshot)
	out.Positions = make([]*Position, len(v.Positions))
	for i, p := range v.Positions {
		out.Positions[i] = p.clone()
	}
	return &out
}

// GlobalFeeState is the single protocol-wide stability fee record. Between
// rate changes the current index is a pure function of time; only a rate
// change writes this record.
type GlobalFeeState struct {
	// RateBps is the annual stability fee in basis points.
	RateBps uint64 `json:"rateBps"`
	// UpdatedAt is the unix time the stored index was last folded.
	UpdatedAt int64 `json:"updatedAt"`
	// StoredIndex is the wad cumulative fee-per-unit-debt at UpdatedAt.
	StoredIndex *big.Int `json:"storedIndex"`
}

func (g *GlobalFeeState) clone() *GlobalFeeState {
	if g == nil {
		return nil
	}
	out := *g
	out.StoredIndex = cloneBig(g.StoredIndex)
	return &out
}

// State is the execution environment's storage model. Implementations must
// return copies: the ledger mutates loaded records freely and commits them
// back only when the whole operation has passed its checks, so a failed call
// leaves storage untouched.
type State interface {
	GetVault(id uint64) (*Vault, error)
	PutVault(v *Vault) error
	DeleteVault(id uint64) error

	GetFeeState() (*GlobalFeeState, error)
	PutFeeState(g *GlobalFeeState) error

	// GetExposure returns the running maximum exposure recorded for asset;
	// zero for assets never seen.
	GetExposure(asset common.Address) (*big.Int, error)
	PutExposure(asset common.Address, amount *big.Int) error
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
