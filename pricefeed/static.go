package pricefeed

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StaticFeed serves fixed prices from memory. Used in tests and in vaultd's
// dev mode; not a production price source.
type StaticFeed struct {
	prices map[common.Address]*big.Int
	// updatedAt is reported for every answer; zero means "just now" to the
	// Adapter, which applies its own staleness policy on fetch time.
	updatedAt int64
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{prices: make(map[common.Address]*big.Int)}
}

// Set fixes the wad-scaled price for asset. A nil price removes the entry,
// which makes subsequent queries fail — handy for simulating feed outages.
func (f *StaticFeed) Set(asset common.Address, price *big.Int) {
	if price == nil {
		delete(f.prices, asset)
		return
	}
	f.prices[asset] = new(big.Int).Set(price)
}

func (f *StaticFeed) Latest(asset common.Address) (*big.Int, int64, error) {
	price, ok := f.prices[asset]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return new(big.Int).Set(price), f.updatedAt, nil
}
