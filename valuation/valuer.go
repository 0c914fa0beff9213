// Package valuation converts custodied liquidity positions into risk-adjusted
// quote-currency values. It is a pure read path: safe to call from any
// liquidator or monitoring tool, no authorization, no state mutation.
package valuation

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-vault-go/pricefeed"
	"github.com/defistate/defistate-vault-go/protocols"
)

var (
	ErrInvalidRiskFactor = errors.New("valuation: risk factor above 10000 bps")

	bps = big.NewInt(10_000)
	wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// FullValueBps is the risk factor for raw collateral totals.
const FullValueBps = 10_000

// Breakdown is the decomposition behind a valuation, exposed for
// introspection tooling.
type Breakdown struct {
	Amount0 *big.Int `json:"amount0"`
	Amount1 *big.Int `json:"amount1"`
	Fees0   *big.Int `json:"fees0"`
	Fees1   *big.Int `json:"fees1"`
	Value   *big.Int `json:"value"`
}

// Valuer values positions across the registered venues using a single price
// source.
type Valuer struct {
	venues *protocols.Registry
	prices pricefeed.Source
}

func NewValuer(venues *protocols.Registry, prices pricefeed.Source) *Valuer {
	return &Valuer{venues: venues, prices: prices}
}

// ValuePosition computes the quote value of a position scaled by
// riskFactorBps (10000 = 1.0). Principal and uncollected yield are both
// included; a failed price query fails the whole valuation rather than
// contributing zero.
func (v *Valuer) ValuePosition(venueID protocols.VenueID, positionID uint64, riskFactorBps uint64) (*big.Int, error) {
	breakdown, err := v.Breakdown(venueID, positionID, riskFactorBps)
	if err != nil {
		return nil, err
	}
	return breakdown.Value, nil
}

// Breakdown returns the valuation together with its asset decomposition.
func (v *Valuer) Breakdown(venueID protocols.VenueID, positionID uint64, riskFactorBps uint64) (*Breakdown, error) {
	if riskFactorBps > FullValueBps {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRiskFactor, riskFactorBps)
	}

	venue, err := v.venues.Resolve(venueID)
	if err != nil {
		return nil, err
	}
	details, err := venue.PositionDetails(positionID)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := venue.PrincipalAmounts(positionID)
	if err != nil {
		return nil, err
	}
	fees0, fees1, err := venue.UncollectedYield(positionID)
	if err != nil {
		return nil, err
	}

	price0, err := v.prices.Price(details.Token0)
	if err != nil {
		return nil, err
	}
	price1, err := v.prices.Price(details.Token1)
	if err != nil {
		return nil, err
	}

	total0 := new(big.Int).Add(amount0, fees0)
	total1 := new(big.Int).Add(amount1, fees1)

	value := new(big.Int).Mul(total0, price0)
	value.Add(value, new(big.Int).Mul(total1, price1))
	value.Div(value, wad)

	if riskFactorBps != FullValueBps {
		value.Mul(value, new(big.Int).SetUint64(riskFactorBps))
		value.Div(value, bps)
	}

	return &Breakdown{
		Amount0: amount0,
		Amount1: amount1,
		Fees0:   fees0,
		Fees1:   fees1,
		Value:   value,
	}, nil
}
