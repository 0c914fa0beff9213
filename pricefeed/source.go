// Package pricefeed provides the uniform price query the valuation engine
// consumes. One or more feeds are wrapped behind an Adapter that falls back
// across feeds and, within a staleness window, to the last good value. A
// failed price is always an error; it must never be read as a price of zero.
package pricefeed

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrPriceUnavailable is returned when no feed and no fresh cached value
	// can answer a query. Callers treat it as "try again later", never zero.
	ErrPriceUnavailable = errors.New("pricefeed: price unavailable")

	// ErrUnknownAsset is returned by feeds that have no mapping for an asset.
	ErrUnknownAsset = errors.New("pricefeed: unknown asset")
)

// Source answers the quote-currency price of one unit of an asset, scaled by
// 1e18. This is the only surface the valuation engine sees.
type Source interface {
	Price(asset common.Address) (*big.Int, error)
}

// Feed is one upstream price provider.
type Feed interface {
	// Latest returns the wad-scaled price and the unix time it was produced.
	Latest(asset common.Address) (price *big.Int, updatedAt int64, err error)
}
