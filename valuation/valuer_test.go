package valuation

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-vault-go/pricefeed"
	"github.com/defistate/defistate-vault-go/protocols"
	"github.com/defistate/defistate-vault-go/protocols/uniswapv2"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	owner  = common.HexToAddress("0x0000000000000000000000000000000000000123")
)

func ether(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), wad)
}

func testFixture(t *testing.T) (*Valuer, *pricefeed.StaticFeed) {
	t.Helper()

	venue := uniswapv2.NewVenue("uniswap-v2")
	require.NoError(t, venue.SetPool(&uniswapv2.Pool{
		ID:          1,
		Token0:      tokenA,
		Token1:      tokenB,
		Reserve0:    ether(1000),
		Reserve1:    ether(2000),
		TotalSupply: ether(1000),
	}))
	require.NoError(t, venue.CapturePosition(&uniswapv2.Position{
		ID:       7,
		PoolID:   1,
		LPAmount: ether(100),
	}, owner))

	feed := pricefeed.NewStaticFeed()
	feed.Set(tokenA, ether(2))
	feed.Set(tokenB, ether(1))

	registry, err := protocols.NewRegistry(venue)
	require.NoError(t, err)
	return NewValuer(registry, pricefeed.NewAdapter(time.Minute, feed)), feed
}

func TestValuer_SumsBothAssets(t *testing.T) {
	valuer, _ := testFixture(t)

	// 100 tokenA at 2 + 200 tokenB at 1 = 400 quote units.
	value, err := valuer.ValuePosition("uniswap-v2", 7, FullValueBps)
	require.NoError(t, err)
	assert.Equal(t, ether(400), value)
}

func TestValuer_AppliesRiskFactor(t *testing.T) {
	valuer, _ := testFixture(t)

	value, err := valuer.ValuePosition("uniswap-v2", 7, 8000)
	require.NoError(t, err)
	assert.Equal(t, ether(320), value)

	_, err = valuer.ValuePosition("uniswap-v2", 7, 10_001)
	assert.ErrorIs(t, err, ErrInvalidRiskFactor)
}

func TestValuer_PriceFailureIsAnError(t *testing.T) {
	valuer, feed := testFixture(t)

	// One asset losing its feed must fail the valuation, never value at zero.
	feed.Set(tokenB, nil)
	_, err := valuer.ValuePosition("uniswap-v2", 7, FullValueBps)
	assert.ErrorIs(t, err, pricefeed.ErrPriceUnavailable)
}

func TestValuer_UnknownVenueAndPosition(t *testing.T) {
	valuer, _ := testFixture(t)

	_, err := valuer.ValuePosition("no-such-venue", 7, FullValueBps)
	assert.ErrorIs(t, err, protocols.ErrUnknownVenue)

	_, err = valuer.ValuePosition("uniswap-v2", 999, FullValueBps)
	assert.ErrorIs(t, err, uniswapv2.ErrPositionNotFound)
}

func TestValuer_BreakdownExposesComponents(t *testing.T) {
	valuer, _ := testFixture(t)

	breakdown, err := valuer.Breakdown("uniswap-v2", 7, FullValueBps)
	require.NoError(t, err)
	assert.Equal(t, ether(100), breakdown.Amount0)
	assert.Equal(t, ether(200), breakdown.Amount1)
	assert.Zero(t, breakdown.Fees0.Sign())
	assert.Zero(t, breakdown.Fees1.Sign())
	assert.Equal(t, ether(400), breakdown.Value)
}
