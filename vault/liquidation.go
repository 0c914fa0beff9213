package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Settlement is the breakdown of a completed liquidation.
type Settlement struct {
	VaultID uint64 `json:"vaultId"`
	// Owed is principal plus settled fee at liquidation time.
	Owed *big.Int `json:"owed"`
	// CollateralValue is the raw (risk factor 1.0) collateral value.
	CollateralValue *big.Int `json:"collateralValue"`
	// ReturnAmount is what the liquidator paid in.
	ReturnAmount *big.Int `json:"returnAmount"`
	// BurnedPrincipal is the debt burned from the payment.
	BurnedPrincipal *big.Int `json:"burnedPrincipal"`
	// TreasuryShare covers outstanding fee plus the liquidation fee.
	TreasuryShare *big.Int `json:"treasuryShare"`
	// OwnerResidual is what was left for the vault owner; zero or more.
	OwnerResidual *big.Int `json:"ownerResidual"`
}

// Liquidate force-closes an undercollateralized vault. Anyone may call; no
// owner consent is required. A vault is eligible only when both its
// threshold-adjusted and its raw collateral value are below total owed;
// either one covering the debt means the position is solvent and stays with
// its owner. The liquidator pays the discounted collateral value, floored at
// the vault's principal, receives every position, and the remainder is split
// between treasury and owner per the settlement rules.
//
// The payment floor is principal only, not principal plus fee: in extreme
// shortfall the protocol forgoes unrealized fee rather than pushing the loss
// onto the liquidator.
func (l *Ledger) Liquidate(liquidator common.Address, vaultID uint64) (settlement *Settlement, err error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()
	defer func() {
		l.metrics.observe("liquidate", err)
		if err == nil {
			l.metrics.liquidations.Inc()
		}
	}()

	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return nil, err
	}
	owed := vault.Owed()

	adjusted, err := l.collateralValue(vault, true)
	if err != nil {
		return nil, err
	}
	if adjusted.Cmp(owed) >= 0 {
		return nil, fmt.Errorf("%w: adjusted value %s covers owed %s", ErrPositionHealthy, adjusted, owed)
	}
	rawValue, err := l.collateralValue(vault, false)
	if err != nil {
		return nil, err
	}
	// The threshold haircut alone is not grounds for a forced close: a vault
	// whose raw collateral still covers its debt stays with its owner.
	if rawValue.Cmp(owed) >= 0 {
		return nil, fmt.Errorf("%w: raw value %s covers owed %s", ErrPositionHealthy, rawValue, owed)
	}

	// returnAmount = rawValue * (1 - premium), floored at principal.
	premium := l.params.LiquidationPremiumBps()
	returnAmount := new(big.Int).Mul(rawValue, new(big.Int).SetUint64(FullValueBps-premium))
	returnAmount.Div(returnAmount, bps)
	if returnAmount.Cmp(vault.Principal) < 0 {
		returnAmount.Set(vault.Principal)
	}

	// treasuryShare = outstanding fee + rawValue * liquidationFee, capped at
	// what remains after covering principal.
	treasuryShare := new(big.Int).Mul(rawValue, new(big.Int).SetUint64(l.params.LiquidationFeeBps()))
	treasuryShare.Div(treasuryShare, bps)
	treasuryShare.Add(treasuryShare, vault.OutstandingFee)
	headroom := new(big.Int).Sub(returnAmount, vault.Principal)
	if treasuryShare.Cmp(headroom) > 0 {
		treasuryShare.Set(headroom)
	}

	// Explicit floor; never derived from an underflowing subtraction.
	ownerResidual := new(big.Int).Sub(headroom, treasuryShare)
	if ownerResidual.Sign() < 0 {
		ownerResidual.SetInt64(0)
	}

	settlement = &Settlement{
		VaultID:         vaultID,
		Owed:            owed,
		CollateralValue: rawValue,
		ReturnAmount:    returnAmount,
		BurnedPrincipal: new(big.Int).Set(vault.Principal),
		TreasuryShare:   treasuryShare,
		OwnerResidual:   ownerResidual,
	}

	exposures, err := l.releaseAll(vault)
	if err != nil {
		return nil, err
	}

	// Payment flows: burn principal from the liquidator, route the treasury
	// share and owner residual from the liquidator's balance. Together these
	// consume exactly returnAmount.
	if vault.Principal.Sign() > 0 {
		if err := l.token.Burn(liquidator, vault.Principal); err != nil {
			return nil, err
		}
	}
	if treasuryShare.Sign() > 0 {
		if err := l.token.Transfer(liquidator, l.treasury, treasuryShare); err != nil {
			return nil, err
		}
	}
	if ownerResidual.Sign() > 0 {
		if err := l.token.Transfer(liquidator, vault.Owner, ownerResidual); err != nil {
			return nil, err
		}
	}
	if err := l.transferAll(vault, liquidator); err != nil {
		return nil, err
	}
	if err := l.owners.Burn(vaultID); err != nil {
		return nil, err
	}

	if err := l.persistExposures(exposures); err != nil {
		return nil, err
	}
	if err := l.state.DeleteVault(vaultID); err != nil {
		return nil, err
	}
	l.metrics.openVaults.Dec()
	l.logger.Info("vault liquidated",
		"vault", vaultID, "liquidator", liquidator, "owed", owed,
		"return", returnAmount, "treasury", treasuryShare, "residual", ownerResidual)
	return settlement, nil
}
