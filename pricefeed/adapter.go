package pricefeed

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type cached struct {
	price     *big.Int
	fetchedAt time.Time
}

// Adapter implements Source over an ordered list of feeds. Feeds are queried
// in priority order; the first answer wins and refreshes the cache. When all
// feeds fail, a cached answer younger than the staleness window is served
// instead. Past the window the query fails with ErrPriceUnavailable.
type Adapter struct {
	feeds        []Feed
	maxStaleness time.Duration
	cache        map[common.Address]cached

	// now is swappable for tests.
	now func() time.Time
}

// NewAdapter constructs an adapter over feeds in priority order.
func NewAdapter(maxStaleness time.Duration, feeds ...Feed) *Adapter {
	return &Adapter{
		feeds:        feeds,
		maxStaleness: maxStaleness,
		cache:        make(map[common.Address]cached),
		now:          time.Now,
	}
}

// Price returns the wad-scaled quote price of asset.
func (a *Adapter) Price(asset common.Address) (*big.Int, error) {
	var lastErr error
	for _, feed := range a.feeds {
		price, _, err := feed.Latest(asset)
		if err != nil {
			lastErr = err
			continue
		}
		if price == nil || price.Sign() <= 0 {
			lastErr = fmt.Errorf("%w: non-positive answer for %s", ErrPriceUnavailable, asset)
			continue
		}
		a.cache[asset] = cached{price: new(big.Int).Set(price), fetchedAt: a.now()}
		return new(big.Int).Set(price), nil
	}

	if entry, ok := a.cache[asset]; ok {
		if a.now().Sub(entry.fetchedAt) <= a.maxStaleness {
			return new(big.Int).Set(entry.price), nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, asset, lastErr)
	}
	return nil, fmt.Errorf("%w: %s: no feeds configured", ErrPriceUnavailable, asset)
}
