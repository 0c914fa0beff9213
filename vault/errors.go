package vault

import "errors"

// Every mutating entry point aborts on the first failed check with one of
// these, leaving storage untouched. The kinds let off-chain tooling separate
// "try again later" (ErrPriceUnavailable) from "fundamentally invalid".
var (
	ErrVaultNotFound       = errors.New("vault: not found")
	ErrAccessDenied        = errors.New("vault: access denied")
	ErrCollateralUnderflow = errors.New("vault: position below minimum collateral value")
	ErrCollateralOverflow  = errors.New("vault: asset exposure cap exceeded")
	ErrPositionUnhealthy   = errors.New("vault: collateral below owed debt")
	ErrPositionHealthy     = errors.New("vault: position not eligible for liquidation")
	ErrDebtCeilingExceeded = errors.New("vault: per-vault debt ceiling exceeded")
	ErrUnpaidDebt          = errors.New("vault: outstanding debt must be zero")
	ErrInvalidParameter    = errors.New("vault: parameter out of range")
	ErrPoolNotWhitelisted  = errors.New("vault: pool not whitelisted")
	ErrTooManyPositions    = errors.New("vault: positions-per-vault cap reached")
	ErrPositionNotHeld     = errors.New("vault: position not held by vault")
	ErrReentrancy          = errors.New("vault: reentrant call")
)
