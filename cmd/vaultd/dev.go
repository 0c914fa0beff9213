package main

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Dev-mode collaborators. vaultd only serves the read API, but the ledger
// wires its full collaborator set; these in-memory stand-ins take the place
// of the on-chain debt token and ownership registry.

type devToken struct {
	balances map[common.Address]*big.Int
}

func newDevToken() *devToken {
	return &devToken{balances: make(map[common.Address]*big.Int)}
}

func (t *devToken) balance(addr common.Address) *big.Int {
	if bal, ok := t.balances[addr]; ok {
		return bal
	}
	return new(big.Int)
}

func (t *devToken) Mint(to common.Address, amount *big.Int) error {
	t.balances[to] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func (t *devToken) Burn(from common.Address, amount *big.Int) error {
	bal := t.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("dev token: insufficient balance %s < %s", bal, amount)
	}
	t.balances[from] = new(big.Int).Sub(bal, amount)
	return nil
}

func (t *devToken) Transfer(from, to common.Address, amount *big.Int) error {
	if err := t.Burn(from, amount); err != nil {
		return err
	}
	return t.Mint(to, amount)
}

type devOwners struct {
	next   uint64
	owners map[uint64]common.Address
}

func newDevOwners() *devOwners {
	return &devOwners{owners: make(map[uint64]common.Address)}
}

func (o *devOwners) Mint(owner common.Address) (uint64, error) {
	o.next++
	o.owners[o.next] = owner
	return o.next, nil
}

func (o *devOwners) Burn(vaultID uint64) error {
	if _, ok := o.owners[vaultID]; !ok {
		return errors.New("dev owners: unknown vault")
	}
	delete(o.owners, vaultID)
	return nil
}

func (o *devOwners) IsAuthorized(vaultID uint64, caller common.Address) bool {
	return o.owners[vaultID] == caller
}
