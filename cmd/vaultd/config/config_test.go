package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DevMode(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
dev_prices:
  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2": "3000000000000000000000"
treasury: "0x000000000000000000000000000000000000fEE5"
custody: "0x0000000000000000000000000000000000005AFE"
max_debt_per_vault: "1000"
min_collateral_value: "10"
pools:
  - venue: uniswap-v2
    pool_id: 1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, time.Minute, cfg.MaxPriceStaleness) // default
	assert.Equal(t, 8, cfg.MaxPositionsPerVault)        // default
	require.Len(t, cfg.Pools, 1)
	assert.Equal(t, uint64(1), cfg.Pools[0].PoolID)
}

func TestLoadConfig_RequiresPriceSource(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
treasury: "0x000000000000000000000000000000000000fEE5"
custody: "0x0000000000000000000000000000000000005AFE"
max_debt_per_vault: "1000"
min_collateral_value: "10"
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "price_rpc_url or dev_prices")
}

func TestLoadConfig_RejectsBadAmounts(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
dev_prices:
  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2": "1"
treasury: "0x000000000000000000000000000000000000fEE5"
custody: "0x0000000000000000000000000000000000005AFE"
max_debt_per_vault: "-5"
min_collateral_value: "10"
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "max_debt_per_vault")
}
