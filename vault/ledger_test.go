package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-vault-go/pricefeed"
	"github.com/defistate/defistate-vault-go/protocols"
	"github.com/defistate/defistate-vault-go/protocols/uniswapv2"
	"github.com/defistate/defistate-vault-go/valuation"
)

var (
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	treasury = common.HexToAddress("0x000000000000000000000000000000000000fee5")
	custody  = common.HexToAddress("0x0000000000000000000000000000000000005afe")
)

func ether(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), wad)
}

// fakeToken is an in-memory debt token. Mint can be hooked to model a
// hostile token calling back into the ledger.
type fakeToken struct {
	balances map[common.Address]*big.Int
	minted   *big.Int
	burned   *big.Int
	onMint   func(to common.Address, amount *big.Int) error
}

func newFakeToken() *fakeToken {
	return &fakeToken{
		balances: make(map[common.Address]*big.Int),
		minted:   new(big.Int),
		burned:   new(big.Int),
	}
}

func (f *fakeToken) balance(addr common.Address) *big.Int {
	if bal, ok := f.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (f *fakeToken) credit(addr common.Address, amount *big.Int) {
	f.balances[addr] = new(big.Int).Add(f.balance(addr), amount)
}

func (f *fakeToken) Mint(to common.Address, amount *big.Int) error {
	if f.onMint != nil {
		if err := f.onMint(to, amount); err != nil {
			return err
		}
	}
	f.credit(to, amount)
	f.minted.Add(f.minted, amount)
	return nil
}

func (f *fakeToken) Burn(from common.Address, amount *big.Int) error {
	bal := f.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("fake token: insufficient balance %s < %s", bal, amount)
	}
	f.balances[from] = bal.Sub(bal, amount)
	f.burned.Add(f.burned, amount)
	return nil
}

func (f *fakeToken) Transfer(from, to common.Address, amount *big.Int) error {
	bal := f.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("fake token: insufficient balance %s < %s", bal, amount)
	}
	f.balances[from] = bal.Sub(bal, amount)
	f.credit(to, amount)
	return nil
}

type fakeOwners struct {
	next   uint64
	owners map[uint64]common.Address
}

func newFakeOwners() *fakeOwners {
	return &fakeOwners{owners: make(map[uint64]common.Address)}
}

func (f *fakeOwners) Mint(owner common.Address) (uint64, error) {
	f.next++
	f.owners[f.next] = owner
	return f.next, nil
}

func (f *fakeOwners) Burn(vaultID uint64) error {
	if _, ok := f.owners[vaultID]; !ok {
		return errors.New("fake owners: unknown vault")
	}
	delete(f.owners, vaultID)
	return nil
}

func (f *fakeOwners) IsAuthorized(vaultID uint64, caller common.Address) bool {
	return f.owners[vaultID] == caller
}

type fixture struct {
	ledger *Ledger
	state  *MemState
	token  *fakeToken
	owners *fakeOwners
	venue  *uniswapv2.Venue
	feed   *pricefeed.StaticFeed
	params *StaticParams
	now    int64
}

// newFixture wires the ledger over a constant-product venue with one pool:
// reserves 5000/5000, supply 1000, prices 1.0, so an LP balance of N is
// worth 10·N quote units and its boundary exposure is 10·N per asset.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	venue := uniswapv2.NewVenue("uniswap-v2")
	require.NoError(t, venue.SetPool(&uniswapv2.Pool{
		ID:          1,
		Token0:      tokenA,
		Token1:      tokenB,
		Reserve0:    ether(5000),
		Reserve1:    ether(5000),
		TotalSupply: ether(1000),
	}))

	feed := pricefeed.NewStaticFeed()
	feed.Set(tokenA, ether(1))
	feed.Set(tokenB, ether(1))

	registry, err := protocols.NewRegistry(venue)
	require.NoError(t, err)

	params := &StaticParams{
		DebtCeiling:      ether(10_000),
		MinCollateral:    ether(10),
		MaxPositions:     4,
		LiquidationFee:   500,
		LiquidationBonus: 1000,
		DefaultThreshold: 8000,
		Whitelist: map[PoolKey]bool{
			{Venue: "uniswap-v2", PoolID: 1}: true,
		},
	}
	require.NoError(t, params.Validate())

	fx := &fixture{
		state:  NewMemState(),
		token:  newFakeToken(),
		owners: newFakeOwners(),
		venue:  venue,
		feed:   feed,
		params: params,
	}
	// Zero staleness: a dead feed fails immediately instead of serving cache.
	valuer := valuation.NewValuer(registry, pricefeed.NewAdapter(0, feed))
	fx.ledger, err = NewLedger(&LedgerConfig{
		State:    fx.state,
		Venues:   registry,
		Valuer:   valuer,
		Token:    fx.token,
		Owners:   fx.owners,
		Params:   params,
		Treasury: treasury,
		Custody:  custody,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	fx.ledger.SetClock(func() int64 { return fx.now })
	return fx
}

// addPosition captures an LP balance worth 10·units under alice.
func (fx *fixture) addPosition(t *testing.T, id uint64, lpUnits int64) {
	t.Helper()
	require.NoError(t, fx.venue.CapturePosition(&uniswapv2.Position{
		ID:       id,
		PoolID:   1,
		LPAmount: ether(lpUnits),
	}, alice))
}

func (fx *fixture) exposure(t *testing.T, asset common.Address) *big.Int {
	t.Helper()
	amount, err := fx.state.GetExposure(asset)
	require.NoError(t, err)
	return amount
}

func TestLedger_MintAgainstAdjustedValue(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100) // worth 1000, adjusted 800 at the 0.8 threshold

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))

	require.NoError(t, fx.ledger.MintDebt(alice, id, ether(800)))
	assert.Equal(t, ether(800), fx.token.balance(alice))

	// One more unit exceeds the adjusted value; the mint reverts whole.
	err = fx.ledger.MintDebt(alice, id, ether(1))
	assert.ErrorIs(t, err, ErrPositionUnhealthy)

	vault, err := fx.state.GetVault(id)
	require.NoError(t, err)
	assert.Equal(t, ether(800), vault.Principal)
	assert.Equal(t, ether(800), fx.token.balance(alice))
}

func TestLedger_OpenRespectsAllowList(t *testing.T) {
	fx := newFixture(t)
	fx.params.Private = true
	fx.params.AllowList = map[common.Address]bool{alice: true}

	_, err := fx.ledger.Open(alice)
	require.NoError(t, err)

	_, err = fx.ledger.Open(bob)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestLedger_DepositRejectsDust(t *testing.T) {
	fx := newFixture(t)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)

	// Worth 5, below the 10 minimum.
	require.NoError(t, fx.venue.CapturePosition(&uniswapv2.Position{
		ID:       3,
		PoolID:   1,
		LPAmount: new(big.Int).Div(wad, big.NewInt(2)),
	}, alice))
	err = fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 3)
	assert.ErrorIs(t, err, ErrCollateralUnderflow)

	vault, err := fx.state.GetVault(id)
	require.NoError(t, err)
	assert.Empty(t, vault.Positions)
}

func TestLedger_DepositRequiresWhitelistedPool(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.venue.SetPool(&uniswapv2.Pool{
		ID:          2,
		Token0:      tokenA,
		Token1:      tokenB,
		Reserve0:    ether(5000),
		Reserve1:    ether(5000),
		TotalSupply: ether(1000),
	}))
	require.NoError(t, fx.venue.CapturePosition(&uniswapv2.Position{
		ID:       9,
		PoolID:   2,
		LPAmount: ether(100),
	}, alice))

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)

	err = fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 9)
	assert.ErrorIs(t, err, ErrPoolNotWhitelisted)
}

func TestLedger_DepositEnforcesExposureCap(t *testing.T) {
	fx := newFixture(t)
	fx.params.AssetLimits = map[common.Address]*big.Int{tokenA: ether(1500)}
	fx.addPosition(t, 1, 100)
	fx.addPosition(t, 2, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)

	// First deposit records a 1000 max exposure per asset.
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))
	assert.Equal(t, ether(1000), fx.exposure(t, tokenA))

	// The second would push tokenA to 2000, past its 1500 cap.
	err = fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 2)
	assert.ErrorIs(t, err, ErrCollateralOverflow)
	assert.Equal(t, ether(1000), fx.exposure(t, tokenA))
}

func TestLedger_DepositPositionCap(t *testing.T) {
	fx := newFixture(t)
	fx.params.MaxPositions = 1
	fx.addPosition(t, 1, 100)
	fx.addPosition(t, 2, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))

	err = fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 2)
	assert.ErrorIs(t, err, ErrTooManyPositions)
}

func TestLedger_DepositRequiresOwnership(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)

	err = fx.ledger.DepositCollateral(bob, id, "uniswap-v2", 1)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestLedger_DepositWithdrawRoundTrip(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))
	assert.Equal(t, ether(1000), fx.exposure(t, tokenA))
	assert.Equal(t, ether(1000), fx.exposure(t, tokenB))

	require.NoError(t, fx.ledger.WithdrawCollateral(alice, id, "uniswap-v2", 1))

	// Everything back exactly as before the deposit.
	vault, err := fx.state.GetVault(id)
	require.NoError(t, err)
	assert.Empty(t, vault.Positions)
	assert.Zero(t, fx.exposure(t, tokenA).Sign())
	assert.Zero(t, fx.exposure(t, tokenB).Sign())
	assert.NoError(t, fx.venue.TransferPosition(alice, alice, 1)) // alice holds it again
}

func TestLedger_WithdrawChecksPostState(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)
	fx.addPosition(t, 2, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 2))
	require.NoError(t, fx.ledger.MintDebt(alice, id, ether(1600)))

	// Removing either position leaves 800 adjusted against 1600 owed.
	err = fx.ledger.WithdrawCollateral(alice, id, "uniswap-v2", 1)
	assert.ErrorIs(t, err, ErrPositionUnhealthy)

	vault, err := fx.state.GetVault(id)
	require.NoError(t, err)
	assert.Len(t, vault.Positions, 2)
	assert.Equal(t, ether(2000), fx.exposure(t, tokenA))
}

func TestLedger_WithdrawUnknownPosition(t *testing.T) {
	fx := newFixture(t)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)

	err = fx.ledger.WithdrawCollateral(alice, id, "uniswap-v2", 42)
	assert.ErrorIs(t, err, ErrPositionNotHeld)
}

func TestLedger_MintDebtCeiling(t *testing.T) {
	fx := newFixture(t)
	fx.params.DebtCeiling = ether(500)
	fx.addPosition(t, 1, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))

	err = fx.ledger.MintDebt(alice, id, ether(600))
	assert.ErrorIs(t, err, ErrDebtCeilingExceeded)
}

func TestLedger_FeeAccruesAndBurnPaysTreasury(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)
	fx.addPosition(t, 2, 100)

	require.NoError(t, fx.ledger.SetStabilityFeeRate(500))

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 2))
	require.NoError(t, fx.ledger.MintDebt(alice, id, ether(1000)))

	fx.now += secondsPerYear

	owed, err := fx.ledger.VaultOwed(id)
	require.NoError(t, err)
	assert.Equal(t, ether(1050), owed)

	// Cover the fee out of extra balance, then repay everything.
	fx.token.credit(alice, ether(50))
	require.NoError(t, fx.ledger.BurnDebt(alice, id, ether(2000)))

	assert.Equal(t, ether(50), fx.token.balance(treasury))
	assert.Zero(t, fx.token.balance(alice).Sign())

	owed, err = fx.ledger.VaultOwed(id)
	require.NoError(t, err)
	assert.Zero(t, owed.Sign())
}

func TestLedger_BurnPaysPrincipalFirst(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)

	require.NoError(t, fx.ledger.SetStabilityFeeRate(500))

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))
	require.NoError(t, fx.ledger.MintDebt(alice, id, ether(100)))

	fx.now += secondsPerYear // fee 5

	require.NoError(t, fx.ledger.BurnDebt(alice, id, ether(60)))

	vault, err := fx.state.GetVault(id)
	require.NoError(t, err)
	assert.Equal(t, ether(40), vault.Principal)
	assert.Equal(t, ether(5), vault.OutstandingFee)
	assert.Zero(t, fx.token.balance(treasury).Sign())
}

func TestLedger_CloseRequiresZeroOwed(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))
	require.NoError(t, fx.ledger.MintDebt(alice, id, ether(100)))

	err = fx.ledger.CloseVault(alice, id, alice)
	assert.ErrorIs(t, err, ErrUnpaidDebt)

	require.NoError(t, fx.ledger.BurnDebt(alice, id, ether(100)))
	require.NoError(t, fx.ledger.CloseVault(alice, id, bob))

	_, err = fx.state.GetVault(id)
	assert.ErrorIs(t, err, ErrVaultNotFound)
	assert.Zero(t, fx.exposure(t, tokenA).Sign())
	// Positions went to the recipient, not back to the original owner.
	assert.NoError(t, fx.venue.TransferPosition(bob, bob, 1))
	assert.False(t, fx.owners.IsAuthorized(id, alice))
}

func TestLedger_ReentrantMintRejected(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))

	// Hostile token re-enters the ledger during Mint.
	fx.token.onMint = func(common.Address, *big.Int) error {
		return fx.ledger.MintDebt(alice, id, ether(1))
	}

	err = fx.ledger.MintDebt(alice, id, ether(100))
	assert.ErrorIs(t, err, ErrReentrancy)

	vault, err := fx.state.GetVault(id)
	require.NoError(t, err)
	assert.Zero(t, vault.Principal.Sign())
	assert.Zero(t, fx.token.balance(alice).Sign())
}

func TestLedger_PriceOutageBlocksMint(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))

	fx.feed.Set(tokenB, nil)

	err = fx.ledger.MintDebt(alice, id, ether(100))
	assert.ErrorIs(t, err, pricefeed.ErrPriceUnavailable)

	vault, err := fx.state.GetVault(id)
	require.NoError(t, err)
	assert.Zero(t, vault.Principal.Sign())
}

func TestLedger_HealthReport(t *testing.T) {
	fx := newFixture(t)
	fx.addPosition(t, 1, 100)

	id, err := fx.ledger.Open(alice)
	require.NoError(t, err)
	require.NoError(t, fx.ledger.DepositCollateral(alice, id, "uniswap-v2", 1))
	require.NoError(t, fx.ledger.MintDebt(alice, id, ether(700)))

	report, err := fx.ledger.Health(id)
	require.NoError(t, err)
	assert.Equal(t, ether(700), report.Owed)
	assert.Equal(t, ether(1000), report.CollateralValue)
	assert.Equal(t, ether(800), report.AdjustedValue)
	assert.True(t, report.Healthy)

	fx.feed.Set(tokenA, new(big.Int).Div(ether(8), big.NewInt(10)))
	fx.feed.Set(tokenB, new(big.Int).Div(ether(8), big.NewInt(10)))

	report, err = fx.ledger.Health(id)
	require.NoError(t, err)
	assert.Equal(t, ether(640), report.AdjustedValue)
	assert.False(t, report.Healthy)
}

func TestLedger_SetStabilityFeeRateValidation(t *testing.T) {
	fx := newFixture(t)

	err := fx.ledger.SetStabilityFeeRate(10_001)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	require.NoError(t, fx.ledger.SetStabilityFeeRate(10_000))
	rate, err := fx.ledger.FeeRateBps()
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), rate)
}
