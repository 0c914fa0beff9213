package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MemState is an in-memory State for tests and vaultd dev mode. All reads
// return deep copies, so a caller mutating a loaded record changes nothing
// until it is put back.
type MemState struct {
	vaults    map[uint64]*Vault
	feeState  *GlobalFeeState
	exposures map[common.Address]*big.Int
}

func NewMemState() *MemState {
	return &MemState{
		vaults:    make(map[uint64]*Vault),
		exposures: make(map[common.Address]*big.Int),
	}
}

func (s *MemState) GetVault(id uint64) (*Vault, error) {
	v, ok := s.vaults[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrVaultNotFound, id)
	}
	return v.clone(), nil
}

func (s *MemState) PutVault(v *Vault) error {
	s.vaults[v.ID] = v.clone()
	return nil
}

func (s *MemState) DeleteVault(id uint64) error {
	delete(s.vaults, id)
	return nil
}

func (s *MemState) GetFeeState() (*GlobalFeeState, error) {
	if s.feeState == nil {
		return NewGlobalFeeState(0, 0), nil
	}
	return s.feeState.clone(), nil
}

func (s *MemState) PutFeeState(g *GlobalFeeState) error {
	s.feeState = g.clone()
	return nil
}

func (s *MemState) GetExposure(asset common.Address) (*big.Int, error) {
	if amount, ok := s.exposures[asset]; ok {
		return new(big.Int).Set(amount), nil
	}
	return new(big.Int), nil
}

func (s *MemState) PutExposure(asset common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		delete(s.exposures, asset)
		return nil
	}
	s.exposures[asset] = new(big.Int).Set(amount)
	return nil
}
