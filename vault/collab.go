package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-vault-go/protocols"
)

// External collaborators. Each is consumed through the narrowest surface the
// ledger needs; failures propagate and abort the calling operation.

// DebtToken is the pegged debt asset. Mint and burn are restricted to this
// ledger by the token's own access control.
type DebtToken interface {
	Mint(to common.Address, amount *big.Int) error
	Burn(from common.Address, amount *big.Int) error
	Transfer(from, to common.Address, amount *big.Int) error
}

// OwnerRegistry issues vault ownership tokens and answers authorization.
type OwnerRegistry interface {
	Mint(owner common.Address) (uint64, error)
	Burn(vaultID uint64) error
	IsAuthorized(vaultID uint64, caller common.Address) bool
}

// Valuer prices a position at a risk factor. valuation.Valuer satisfies it.
type Valuer interface {
	ValuePosition(venue protocols.VenueID, positionID uint64, riskFactorBps uint64) (*big.Int, error)
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
