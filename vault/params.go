package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-vault-go/protocols"
)

// FullValueBps is the risk factor meaning "no haircut".
const FullValueBps = 10_000

// ParamView exposes the governance parameters the ledger reads at point of
// use. The ledger never caches any of these; governance changes take effect
// on the next call.
type ParamView interface {
	// MaxDebtPerVault is the per-vault ceiling on principal plus fee.
	MaxDebtPerVault() *big.Int
	// MinCollateralValue is the minimum raw value of a single deposit.
	MinCollateralValue() *big.Int
	MaxPositionsPerVault() int
	// LiquidationFeeBps is the protocol take on liquidation, in bps of raw
	// collateral value.
	LiquidationFeeBps() uint64
	// LiquidationPremiumBps is the liquidator's discount in bps.
	LiquidationPremiumBps() uint64
	// LiquidationThresholdBps is the pool-specific risk factor applied to
	// collateral value in solvency checks.
	LiquidationThresholdBps(venue protocols.VenueID, poolID uint64) uint64
	// AssetLimit caps the running maximum exposure per asset; nil means
	// unlimited.
	AssetLimit(asset common.Address) *big.Int
	IsPoolWhitelisted(venue protocols.VenueID, poolID uint64) bool
	// IsPrivate gates Open behind the allow-list.
	IsPrivate() bool
	IsAllowed(caller common.Address) bool
}

// PoolKey identifies a pool across venues.
type PoolKey struct {
	Venue  protocols.VenueID
	PoolID uint64
}

// StaticParams is a fixed ParamView for tests and vaultd dev mode. Real
// deployments read these from the governance store instead.
type StaticParams struct {
	DebtCeiling      *big.Int
	MinCollateral    *big.Int
	MaxPositions     int
	LiquidationFee   uint64
	LiquidationBonus uint64
	// Thresholds maps pools to liquidation threshold bps; DefaultThreshold
	// applies to whitelisted pools without an entry.
	Thresholds       map[PoolKey]uint64
	DefaultThreshold uint64
	AssetLimits      map[common.Address]*big.Int
	Whitelist        map[PoolKey]bool
	Private          bool
	AllowList        map[common.Address]bool
}

// Validate rejects parameter combinations outside the allowed ranges.
func (p *StaticParams) Validate() error {
	if p.DebtCeiling == nil || p.DebtCeiling.Sign() < 0 {
		return fmt.Errorf("%w: debt ceiling", ErrInvalidParameter)
	}
	if p.MinCollateral == nil || p.MinCollateral.Sign() < 0 {
		return fmt.Errorf("%w: min collateral value", ErrInvalidParameter)
	}
	if p.MaxPositions <= 0 {
		return fmt.Errorf("%w: max positions per vault", ErrInvalidParameter)
	}
	if p.LiquidationFee > FullValueBps {
		return fmt.Errorf("%w: liquidation fee %d bps", ErrInvalidParameter, p.LiquidationFee)
	}
	if p.LiquidationBonus > FullValueBps {
		return fmt.Errorf("%w: liquidation premium %d bps", ErrInvalidParameter, p.LiquidationBonus)
	}
	if p.DefaultThreshold == 0 || p.DefaultThreshold > FullValueBps {
		return fmt.Errorf("%w: liquidation threshold %d bps", ErrInvalidParameter, p.DefaultThreshold)
	}
	for key, bps := range p.Thresholds {
		if bps == 0 || bps > FullValueBps {
			return fmt.Errorf("%w: threshold %d bps for pool %s/%d", ErrInvalidParameter, bps, key.Venue, key.PoolID)
		}
	}
	return nil
}

func (p *StaticParams) MaxDebtPerVault() *big.Int     { return p.DebtCeiling }
func (p *StaticParams) MinCollateralValue() *big.Int  { return p.MinCollateral }
func (p *StaticParams) MaxPositionsPerVault() int     { return p.MaxPositions }
func (p *StaticParams) LiquidationFeeBps() uint64     { return p.LiquidationFee }
func (p *StaticParams) LiquidationPremiumBps() uint64 { return p.LiquidationBonus }

func (p *StaticParams) LiquidationThresholdBps(venue protocols.VenueID, poolID uint64) uint64 {
	if bps, ok := p.Thresholds[PoolKey{Venue: venue, PoolID: poolID}]; ok {
		return bps
	}
	return p.DefaultThreshold
}

func (p *StaticParams) AssetLimit(asset common.Address) *big.Int {
	return p.AssetLimits[asset]
}

func (p *StaticParams) IsPoolWhitelisted(venue protocols.VenueID, poolID uint64) bool {
	return p.Whitelist[PoolKey{Venue: venue, PoolID: poolID}]
}

func (p *StaticParams) IsPrivate() bool { return p.Private }

func (p *StaticParams) IsAllowed(caller common.Address) bool {
	return p.AllowList[caller]
}
