// Package config loads the vaultd configuration from a yaml file.
package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// PoolConfig whitelists one pool and sets its liquidation threshold.
type PoolConfig struct {
	Venue        string `yaml:"venue"`
	PoolID       uint64 `yaml:"pool_id"`
	ThresholdBps uint64 `yaml:"threshold_bps"`
}

// Config is the daemon configuration. Amount-valued fields are decimal
// strings in wei to avoid float rounding.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// PriceRPCURL points at an execution-layer JSON-RPC endpoint for
	// aggregator feeds. Empty selects static dev prices.
	PriceRPCURL       string        `yaml:"price_rpc_url"`
	MaxPriceStaleness time.Duration `yaml:"max_price_staleness"`
	// Aggregators maps asset address to its price aggregator contract.
	Aggregators map[string]string `yaml:"aggregators"`
	// DevPrices maps asset address to a fixed wad price, for dev mode.
	DevPrices map[string]string `yaml:"dev_prices"`

	StabilityFeeRateBps uint64 `yaml:"stability_fee_rate_bps"`
	Treasury            string `yaml:"treasury"`
	Custody             string `yaml:"custody"`

	MaxDebtPerVault       string       `yaml:"max_debt_per_vault"`
	MinCollateralValue    string       `yaml:"min_collateral_value"`
	MaxPositionsPerVault  int          `yaml:"max_positions_per_vault"`
	LiquidationFeeBps     uint64       `yaml:"liquidation_fee_bps"`
	LiquidationPremiumBps uint64       `yaml:"liquidation_premium_bps"`
	DefaultThresholdBps   uint64       `yaml:"default_threshold_bps"`
	Pools                 []PoolConfig `yaml:"pools"`
}

// LoadConfig reads and validates the configuration at path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{
		ListenAddr:           ":8080",
		MaxPriceStaleness:    time.Minute,
		MaxPositionsPerVault: 8,
		DefaultThresholdBps:  8000,
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr cannot be empty")
	}
	if c.PriceRPCURL == "" && len(c.DevPrices) == 0 {
		return fmt.Errorf("config: need price_rpc_url or dev_prices")
	}
	if c.PriceRPCURL != "" && len(c.Aggregators) == 0 {
		return fmt.Errorf("config: price_rpc_url set but no aggregators configured")
	}
	if _, err := c.Amount(c.MaxDebtPerVault); err != nil {
		return fmt.Errorf("config: max_debt_per_vault: %w", err)
	}
	if _, err := c.Amount(c.MinCollateralValue); err != nil {
		return fmt.Errorf("config: min_collateral_value: %w", err)
	}
	for _, field := range []string{c.Treasury, c.Custody} {
		if !common.IsHexAddress(field) {
			return fmt.Errorf("config: %q is not a hex address", field)
		}
	}
	for asset, price := range c.DevPrices {
		if !common.IsHexAddress(asset) {
			return fmt.Errorf("config: dev price asset %q is not a hex address", asset)
		}
		if _, err := c.Amount(price); err != nil {
			return fmt.Errorf("config: dev price for %s: %w", asset, err)
		}
	}
	for asset, aggregator := range c.Aggregators {
		if !common.IsHexAddress(asset) || !common.IsHexAddress(aggregator) {
			return fmt.Errorf("config: aggregator mapping %s -> %s is not hex addresses", asset, aggregator)
		}
	}
	return nil
}

// Amount parses a decimal wei string.
func (c *Config) Amount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a non-negative decimal", s)
	}
	return v, nil
}
