package vault

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-vault-go/protocols"
)

// LedgerConfig wires the ledger to its collaborators.
type LedgerConfig struct {
	State    State
	Venues   *protocols.Registry
	Valuer   Valuer
	Token    DebtToken
	Owners   OwnerRegistry
	Params   ParamView
	Treasury common.Address
	// Custody is the address positions are held under while deposited.
	Custody  common.Address
	Registry prometheus.Registerer
	Logger   Logger
}

func (c *LedgerConfig) validate() error {
	if c.State == nil {
		return errors.New("config: State cannot be nil")
	}
	if c.Venues == nil {
		return errors.New("config: Venues cannot be nil")
	}
	if c.Valuer == nil {
		return errors.New("config: Valuer cannot be nil")
	}
	if c.Token == nil {
		return errors.New("config: Token cannot be nil")
	}
	if c.Owners == nil {
		return errors.New("config: Owners cannot be nil")
	}
	if c.Params == nil {
		return errors.New("config: Params cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	return nil
}

// Ledger is the vault state machine. The execution environment serializes
// top-level calls, so the only concurrency concern is reentrancy: a hostile
// collaborator calling back into a mutating operation mid-call. Every
// mutating entry point takes the transaction-scoped guard, and external
// transfers run last, after all internal mutation and invariant checks, so a
// failed call commits nothing.
type Ledger struct {
	state    State
	venues   *protocols.Registry
	valuer   Valuer
	token    DebtToken
	owners   OwnerRegistry
	params   ParamView
	treasury common.Address
	custody  common.Address
	logger   Logger
	metrics  *Metrics

	// clock is swappable for tests; unix seconds.
	clock func() int64
	busy  bool
}

func NewLedger(cfg *LedgerConfig) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Ledger{
		state:    cfg.State,
		venues:   cfg.Venues,
		valuer:   cfg.Valuer,
		token:    cfg.Token,
		owners:   cfg.Owners,
		params:   cfg.Params,
		treasury: cfg.Treasury,
		custody:  cfg.Custody,
		logger:   logger,
		metrics:  NewMetrics(cfg.Registry),
		clock:    func() int64 { return time.Now().Unix() },
	}, nil
}

// SetClock replaces the time source. Deterministic tests and block-time
// driven environments use this; the default is wall time.
func (l *Ledger) SetClock(clock func() int64) {
	if clock != nil {
		l.clock = clock
	}
}

func (l *Ledger) enter() error {
	if l.busy {
		return ErrReentrancy
	}
	l.busy = true
	return nil
}

func (l *Ledger) exit() { l.busy = false }

// Open creates a new vault owned by caller and mints its ownership token.
func (l *Ledger) Open(caller common.Address) (id uint64, err error) {
	if err := l.enter(); err != nil {
		return 0, err
	}
	defer l.exit()
	defer func() { l.metrics.observe("open", err) }()

	if l.params.IsPrivate() && !l.params.IsAllowed(caller) {
		return 0, fmt.Errorf("%w: %s not allow-listed", ErrAccessDenied, caller)
	}

	feeState, err := l.state.GetFeeState()
	if err != nil {
		return 0, err
	}
	id, err = l.owners.Mint(caller)
	if err != nil {
		return 0, err
	}

	vault := &Vault{
		ID:               id,
		Owner:            caller,
		Principal:        new(big.Int),
		OutstandingFee:   new(big.Int),
		FeeIndexSnapshot: IndexAt(feeState, l.clock()),
	}
	if err := l.state.PutVault(vault); err != nil {
		return 0, err
	}
	l.metrics.openVaults.Inc()
	l.logger.Info("vault opened", "vault", id, "owner", caller)
	return id, nil
}

// DepositCollateral transfers a position into custody and adds it to the
// vault. The position must clear the minimum-value floor and must not push
// any underlying asset's running exposure past its cap.
func (l *Ledger) DepositCollateral(caller common.Address, vaultID uint64, venueID protocols.VenueID, positionID uint64) (err error) {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()
	defer func() { l.metrics.observe("deposit", err) }()

	if err := l.authorize(vaultID, caller); err != nil {
		return err
	}
	vault, err := l.state.GetVault(vaultID)
	if err != nil {
		return err
	}
	if len(vault.Positions) >= l.params.MaxPositionsPerVault() {
		return fmt.Errorf("%w: %d", ErrTooManyPositions, len(vault.Positions))
	}

	venue, err := l.venues.Resolve(venueID)
	if err != nil {
		return err
	}
	details, err := venue.PositionDetails(positionID)
	if err != nil {
		return err
	}
	if !l.params.IsPoolWhitelisted(venueID, details.PoolID) {
		return fmt.Errorf("%w: %s/%d", ErrPoolNotWhitelisted, venueID, details.PoolID)
	}

	value, err := l.valuer.ValuePosition(venueID, positionID, FullValueBps)
	if err != nil {
		return err
	}
	if value.Cmp(l.params.MinCollateralValue()) < 0 {
		return fmt.Errorf("%w: value %s below minimum", ErrCollateralUnderflow, value)
	}

	max0, max1, err := venue.MaxAmounts(positionID)
	if err != nil {
		return err
	}
	exposures, err := l.loadExposures(details.Token0, details.Token1)
	if err != nil {
		return err
	}
	if err := l.raiseExposure(exposures, details.Token0, max0); err != nil {
		return err
	}
	if err := l.raiseExposure(exposures, details.Token1, max1); err != nil {
		return err
	}

	vault.Positions = append(vault.Positions, &Position{
		VenueID:    venueID,
		PositionID: positionID,
		PoolID:     details.PoolID,
		Token0:     details.Token0,
		Token1:     details.Token1,
		Max0:       max0,
		Max1:       max1,
	})

	if err := venue.TransferPosition(caller, l.custody, positionID); err != nil {
		return err
	}
	if err := l.persistExposures(exposures); err != nil {
		return err
	}
	if err := l.state.PutVault(vault); err != nil {
		return err
	}
	l.logger.Info("collateral deposited",
		"vault", vaultID, "venue", venueID, "position", positionID, "value", value)
	return nil
}

// WithdrawCollateral removes a position from the vault and returns it to the
// caller. The position and its counters are removed first; the health check
// then runs against the post-withdrawal state.
func (l *Ledger) WithdrawCollateral(caller common.Address, vaultID uint64, venueID protocols.VenueID, positionID uint64) (err error) {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()
	defer func() { l.metrics.observe("withdraw", err) }()

	if err := l.authorize(vaultID, caller); err != nil {
		return err
	}
	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return err
	}

	removed := l.removePosition(vault, venueID, positionID)
	if removed == nil {
		return fmt.Errorf("%w: %s/%d", ErrPositionNotHeld, venueID, positionID)
	}
	exposures, err := l.loadExposures(removed.Token0, removed.Token1)
	if err != nil {
		return err
	}
	lowerExposure(exposures, removed.Token0, removed.Max0)
	lowerExposure(exposures, removed.Token1, removed.Max1)

	if err := l.requireHealthy(vault); err != nil {
		return err
	}

	venue, err := l.venues.Resolve(venueID)
	if err != nil {
		return err
	}
	if err := venue.TransferPosition(l.custody, caller, positionID); err != nil {
		return err
	}
	if err := l.persistExposures(exposures); err != nil {
		return err
	}
	if err := l.state.PutVault(vault); err != nil {
		return err
	}
	l.logger.Info("collateral withdrawn", "vault", vaultID, "venue", venueID, "position", positionID)
	return nil
}

// MintDebt increases the vault's principal and mints debt tokens to the
// caller. Health and ceiling checks run after the mutation so they reflect
// the post-mint state.
func (l *Ledger) MintDebt(caller common.Address, vaultID uint64, amount *big.Int) (err error) {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()
	defer func() { l.metrics.observe("mint_debt", err) }()

	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: mint amount must be positive", ErrInvalidParameter)
	}
	if err := l.authorize(vaultID, caller); err != nil {
		return err
	}
	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return err
	}

	vault.Principal.Add(vault.Principal, amount)
	owed := vault.Owed()
	if owed.Cmp(l.params.MaxDebtPerVault()) > 0 {
		return fmt.Errorf("%w: owed %s", ErrDebtCeilingExceeded, owed)
	}
	if err := l.requireHealthy(vault); err != nil {
		return err
	}

	if err := l.token.Mint(caller, amount); err != nil {
		return err
	}
	if err := l.state.PutVault(vault); err != nil {
		return err
	}
	l.logger.Info("debt minted", "vault", vaultID, "amount", amount, "owed", owed)
	return nil
}

// BurnDebt repays up to the vault's total owed from the caller's balance.
// Any caller may repay; only the burn touches the caller's funds.
// The portion above principal is fee payment: it is minted to the treasury
// as realized revenue and removed from the outstanding fee balance, and the
// full capped amount is burned from the caller.
func (l *Ledger) BurnDebt(caller common.Address, vaultID uint64, amount *big.Int) (err error) {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()
	defer func() { l.metrics.observe("burn_debt", err) }()

	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: burn amount must be positive", ErrInvalidParameter)
	}
	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return err
	}

	capped := new(big.Int).Set(amount)
	if owed := vault.Owed(); capped.Cmp(owed) > 0 {
		capped.Set(owed)
	}
	if capped.Sign() == 0 {
		return l.state.PutVault(vault)
	}

	principalPortion := new(big.Int).Set(capped)
	if principalPortion.Cmp(vault.Principal) > 0 {
		principalPortion.Set(vault.Principal)
	}
	feePortion := new(big.Int).Sub(capped, principalPortion)

	vault.Principal.Sub(vault.Principal, principalPortion)
	vault.OutstandingFee.Sub(vault.OutstandingFee, feePortion)

	if feePortion.Sign() > 0 {
		if err := l.token.Mint(l.treasury, feePortion); err != nil {
			return err
		}
	}
	if err := l.token.Burn(caller, capped); err != nil {
		return err
	}
	if err := l.state.PutVault(vault); err != nil {
		return err
	}
	l.logger.Info("debt burned",
		"vault", vaultID, "amount", capped, "principal", principalPortion, "fee", feePortion)
	return nil
}

// CloseVault returns every held position to recipient, burns the ownership
// token and deletes the vault. Total owed must be zero.
func (l *Ledger) CloseVault(caller common.Address, vaultID uint64, recipient common.Address) (err error) {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()
	defer func() { l.metrics.observe("close", err) }()

	if err := l.authorize(vaultID, caller); err != nil {
		return err
	}
	vault, _, err := l.loadSettled(vaultID)
	if err != nil {
		return err
	}
	if vault.Owed().Sign() != 0 {
		return fmt.Errorf("%w: owed %s", ErrUnpaidDebt, vault.Owed())
	}

	exposures, err := l.releaseAll(vault)
	if err != nil {
		return err
	}
	if err := l.transferAll(vault, recipient); err != nil {
		return err
	}
	if err := l.owners.Burn(vaultID); err != nil {
		return err
	}
	if err := l.persistExposures(exposures); err != nil {
		return err
	}
	if err := l.state.DeleteVault(vaultID); err != nil {
		return err
	}
	l.metrics.openVaults.Dec()
	l.logger.Info("vault closed", "vault", vaultID, "recipient", recipient)
	return nil
}

// SetStabilityFeeRate changes the annual fee rate, folding elapsed accrual
// into the stored index at the old rate first. Authorization is the
// execution environment's concern; governance is the only caller.
func (l *Ledger) SetStabilityFeeRate(rateBps uint64) (err error) {
	if err := l.enter(); err != nil {
		return err
	}
	defer l.exit()
	defer func() { l.metrics.observe("set_fee_rate", err) }()

	if rateBps > FullValueBps {
		return fmt.Errorf("%w: fee rate %d bps", ErrInvalidParameter, rateBps)
	}
	feeState, err := l.state.GetFeeState()
	if err != nil {
		return err
	}
	now := l.clock()
	foldRate(feeState, rateBps, now)
	if err := l.state.PutFeeState(feeState); err != nil {
		return err
	}
	l.metrics.feeIndex.Set(indexGauge(feeState.StoredIndex))
	l.logger.Info("stability fee rate set", "rate_bps", rateBps)
	return nil
}

// --- internal helpers ---

func (l *Ledger) authorize(vaultID uint64, caller common.Address) error {
	if !l.owners.IsAuthorized(vaultID, caller) {
		return fmt.Errorf("%w: %s on vault %d", ErrAccessDenied, caller, vaultID)
	}
	return nil
}

// loadSettled loads the vault with its fee settled to now. Settlement always
// precedes any read or change of debt within the same call.
func (l *Ledger) loadSettled(vaultID uint64) (*Vault, *GlobalFeeState, error) {
	vault, err := l.state.GetVault(vaultID)
	if err != nil {
		return nil, nil, err
	}
	feeState, err := l.state.GetFeeState()
	if err != nil {
		return nil, nil, err
	}
	settleVault(vault, feeState, l.clock())
	return vault, feeState, nil
}

// collateralValue sums position values; riskAdjusted selects the per-pool
// liquidation threshold instead of full value.
func (l *Ledger) collateralValue(v *Vault, riskAdjusted bool) (*big.Int, error) {
	total := new(big.Int)
	for _, p := range v.Positions {
		risk := uint64(FullValueBps)
		if riskAdjusted {
			risk = l.params.LiquidationThresholdBps(p.VenueID, p.PoolID)
		}
		value, err := l.valuer.ValuePosition(p.VenueID, p.PositionID, risk)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// requireHealthy verifies threshold-adjusted collateral covers total owed.
// Vaults with no debt pass without touching the price source.
func (l *Ledger) requireHealthy(v *Vault) error {
	owed := v.Owed()
	if owed.Sign() == 0 {
		return nil
	}
	adjusted, err := l.collateralValue(v, true)
	if err != nil {
		return err
	}
	if adjusted.Cmp(owed) < 0 {
		return fmt.Errorf("%w: adjusted value %s, owed %s", ErrPositionUnhealthy, adjusted, owed)
	}
	return nil
}

func (l *Ledger) removePosition(v *Vault, venueID protocols.VenueID, positionID uint64) *Position {
	for i, p := range v.Positions {
		if p.VenueID == venueID && p.PositionID == positionID {
			v.Positions = append(v.Positions[:i], v.Positions[i+1:]...)
			return p
		}
	}
	return nil
}

func (l *Ledger) loadExposures(assets ...common.Address) (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(assets))
	for _, asset := range assets {
		if _, ok := out[asset]; ok {
			continue
		}
		amount, err := l.state.GetExposure(asset)
		if err != nil {
			return nil, err
		}
		out[asset] = amount
	}
	return out, nil
}

func (l *Ledger) raiseExposure(exposures map[common.Address]*big.Int, asset common.Address, delta *big.Int) error {
	next := exposures[asset].Add(exposures[asset], delta)
	if limit := l.params.AssetLimit(asset); limit != nil && next.Cmp(limit) > 0 {
		return fmt.Errorf("%w: %s exposure %s", ErrCollateralOverflow, asset, next)
	}
	return nil
}

func lowerExposure(exposures map[common.Address]*big.Int, asset common.Address, delta *big.Int) {
	next := exposures[asset].Sub(exposures[asset], delta)
	// Counters move in lockstep with position lifecycle; clamp rather than
	// persist a negative total if an upstream venue misreports.
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
}

func (l *Ledger) persistExposures(exposures map[common.Address]*big.Int) error {
	for asset, amount := range exposures {
		if err := l.state.PutExposure(asset, amount); err != nil {
			return err
		}
	}
	return nil
}

// releaseAll lowers the counters for every held position.
func (l *Ledger) releaseAll(v *Vault) (map[common.Address]*big.Int, error) {
	assets := make([]common.Address, 0, 2*len(v.Positions))
	for _, p := range v.Positions {
		assets = append(assets, p.Token0, p.Token1)
	}
	exposures, err := l.loadExposures(assets...)
	if err != nil {
		return nil, err
	}
	for _, p := range v.Positions {
		lowerExposure(exposures, p.Token0, p.Max0)
		lowerExposure(exposures, p.Token1, p.Max1)
	}
	return exposures, nil
}

// transferAll moves every held position from custody to recipient.
func (l *Ledger) transferAll(v *Vault, recipient common.Address) error {
	for _, p := range v.Positions {
		venue, err := l.venues.Resolve(p.VenueID)
		if err != nil {
			return err
		}
		if err := venue.TransferPosition(l.custody, recipient, p.PositionID); err != nil {
			return err
		}
	}
	return nil
}

func indexGauge(index *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(index), new(big.Float).SetInt(wad)).Float64()
	return f
}
