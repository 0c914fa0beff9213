package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-vault-go/cmd/vaultd/config"
	"github.com/defistate/defistate-vault-go/pricefeed"
	"github.com/defistate/defistate-vault-go/protocols"
	"github.com/defistate/defistate-vault-go/protocols/uniswapv2"
	"github.com/defistate/defistate-vault-go/protocols/uniswapv3"
	"github.com/defistate/defistate-vault-go/valuation"
	"github.com/defistate/defistate-vault-go/vault"
)

const shutdownGrace = 10 * time.Second

func main() {
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	rootLogger := slog.New(rootLogHandler)
	close := func() {
		os.Exit(1)
	}

	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := protocols.NewRegistry(
		uniswapv3.NewVenue("uniswap-v3"),
		uniswapv2.NewVenue("uniswap-v2"),
	)
	if err != nil {
		rootLogger.Error("Failed to build venue registry", "error", err)
		close()
	}

	prices, err := buildPriceSource(ctx, cfg)
	if err != nil {
		rootLogger.Error("Failed to build price source", "error", err)
		close()
	}

	params, err := buildParams(cfg)
	if err != nil {
		rootLogger.Error("Invalid governance parameters", "error", err)
		close()
	}

	ledger, err := vault.NewLedger(&vault.LedgerConfig{
		State:    vault.NewMemState(),
		Venues:   registry,
		Valuer:   valuation.NewValuer(registry, prices),
		Token:    newDevToken(),
		Owners:   newDevOwners(),
		Params:   params,
		Treasury: common.HexToAddress(cfg.Treasury),
		Custody:  common.HexToAddress(cfg.Custody),
		Registry: prometheusRegistry,
		Logger:   rootLogger.With("component", "ledger"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize ledger", "error", err)
		close()
	}
	if cfg.StabilityFeeRateBps > 0 {
		if err := ledger.SetStabilityFeeRate(cfg.StabilityFeeRateBps); err != nil {
			rootLogger.Error("Failed to set stability fee rate", "error", err)
			close()
		}
	}

	api := newAPIServer(ledger, rootLogger.With("component", "api"))
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		rootLogger.Info("vaultd listening", "addr", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		rootLogger.Error("Server failed", "error", err)
		close()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rootLogger.Error("Shutdown failed", "error", err)
	}
}

// buildPriceSource selects aggregator feeds over JSON-RPC when configured,
// static dev prices otherwise.
func buildPriceSource(ctx context.Context, cfg *config.Config) (pricefeed.Source, error) {
	if cfg.PriceRPCURL == "" {
		feed := pricefeed.NewStaticFeed()
		for asset, price := range cfg.DevPrices {
			wad, err := cfg.Amount(price)
			if err != nil {
				return nil, err
			}
			feed.Set(common.HexToAddress(asset), wad)
		}
		return pricefeed.NewAdapter(cfg.MaxPriceStaleness, feed), nil
	}

	client, err := rpc.DialContext(ctx, cfg.PriceRPCURL)
	if err != nil {
		return nil, err
	}
	feed := pricefeed.NewAggregatorFeed(client, 5*time.Second)
	for asset, aggregator := range cfg.Aggregators {
		if err := feed.Register(ctx, common.HexToAddress(asset), common.HexToAddress(aggregator)); err != nil {
			return nil, err
		}
	}
	return pricefeed.NewAdapter(cfg.MaxPriceStaleness, feed), nil
}

func buildParams(cfg *config.Config) (*vault.StaticParams, error) {
	maxDebt, err := cfg.Amount(cfg.MaxDebtPerVault)
	if err != nil {
		return nil, err
	}
	minCollateral, err := cfg.Amount(cfg.MinCollateralValue)
	if err != nil {
		return nil, err
	}
	params := &vault.StaticParams{
		DebtCeiling:      maxDebt,
		MinCollateral:    minCollateral,
		MaxPositions:     cfg.MaxPositionsPerVault,
		LiquidationFee:   cfg.LiquidationFeeBps,
		LiquidationBonus: cfg.LiquidationPremiumBps,
		DefaultThreshold: cfg.DefaultThresholdBps,
		Thresholds:       make(map[vault.PoolKey]uint64),
		Whitelist:        make(map[vault.PoolKey]bool),
	}
	for _, pool := range cfg.Pools {
		key := vault.PoolKey{Venue: protocols.VenueID(pool.Venue), PoolID: pool.PoolID}
		params.Whitelist[key] = true
		if pool.ThresholdBps > 0 {
			params.Thresholds[key] = pool.ThresholdBps
		}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func loadConfig() (*config.Config, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
