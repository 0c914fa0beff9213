package vault

import "math/big"

// Read-only introspection. These settle virtually: owed amounts reflect the
// current time without writing the snapshot back.

// HealthReport is the per-vault solvency view served by monitoring tools.
type HealthReport struct {
	VaultID uint64 `json:"vaultId"`
	// Owed is principal plus fee settled to now.
	Owed *big.Int `json:"owed"`
	// CollateralValue is the raw collateral value.
	CollateralValue *big.Int `json:"collateralValue"`
	// AdjustedValue applies the per-pool liquidation thresholds.
	AdjustedValue *big.Int `json:"adjustedValue"`
	// Healthy is false when the vault is eligible for liquidation.
	Healthy bool `json:"healthy"`
}

// Vault returns a copy of the vault record with fees settled to now.
func (l *Ledger) Vault(vaultID uint64) (*Vault, error) {
	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return nil, err
	}
	return vault, nil
}

// VaultOwed returns principal plus fee accrued to now.
func (l *Ledger) VaultOwed(vaultID uint64) (*big.Int, error) {
	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return nil, err
	}
	return vault.Owed(), nil
}

// VaultCollateralValue values the vault's collateral; riskAdjusted applies
// the per-pool liquidation thresholds.
func (l *Ledger) VaultCollateralValue(vaultID uint64, riskAdjusted bool) (*big.Int, error) {
	vault, err := l.state.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	return l.collateralValue(vault, riskAdjusted)
}

// Health reports the vault's solvency standing.
func (l *Ledger) Health(vaultID uint64) (*HealthReport, error) {
	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return nil, err
	}
	raw, err := l.collateralValue(vault, false)
	if err != nil {
		return nil, err
	}
	adjusted, err := l.collateralValue(vault, true)
	if err != nil {
		return nil, err
	}
	owed := vault.Owed()
	return &HealthReport{
		VaultID:         vaultID,
		Owed:            owed,
		CollateralValue: raw,
		AdjustedValue:   adjusted,
		Healthy:         adjusted.Cmp(owed) >= 0,
	}, nil
}

// FeeIndex returns the global fee index extrapolated to now.
func (l *Ledger) FeeIndex() (*big.Int, error) {
	feeState, err := l.state.GetFeeState()
	if err != nil {
		return nil, err
	}
	return IndexAt(feeState, l.clock()), nil
}

// FeeRateBps returns the current annual stability fee rate.
func (l *Ledger) FeeRateBps() (uint64, error) {
	feeState, err := l.state.GetFeeState()
	if err != nil {
		return 0, err
	}
	return feeState.RateBps, nil
}
