package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyHashLE = "0x2c9d8f0b1d3f4b2e6fd86a7c1b9b6bb6a6b7b2a1"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))
	return configFile
}

func TestLoadMigratorConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *MigratorConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
rpc:
  endpoint: "http://localhost:30333"
  dial_timeout: "5s"
  request_timeout: "10s"
wallet:
  path: "/wallets/relay.json"
  address: ""
  password: "pass"
contracts:
  legacy: "` + legacyHashLE + `"
  issuer: "` + legacyHashLE + `"
migration:
  batch_limit: 10
  max_batches: 3
  relay: false
retry:
  initial_interval: "2s"
  max_retries: 4
`,
			validate: func(t *testing.T, cfg *MigratorConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "http://localhost:30333", cfg.RPC.Endpoint)
				assert.Equal(t, 5*time.Second, cfg.RPC.DialTimeout)
				assert.Equal(t, 10*time.Second, cfg.RPC.RequestTimeout)
				assert.Equal(t, "/wallets/relay.json", cfg.Wallet.Path)
				assert.Equal(t, "pass", cfg.Wallet.Password)
				assert.Equal(t, legacyHashLE, cfg.Contracts.Legacy)
				assert.Equal(t, 10, cfg.Migration.BatchLimit)
				assert.Equal(t, 3, cfg.Migration.MaxBatches)
				assert.False(t, cfg.Migration.Relay)
				assert.Equal(t, 2*time.Second, cfg.Retry.InitialInterval)
				assert.Equal(t, uint64(4), cfg.Retry.MaxRetries)
				assert.NoError(t, cfg.Validate())
			},
		},
		{
			name: "config with defaults",
			configFile: `
rpc:
  endpoint: "http://localhost:30333"
wallet:
  path: "/wallets/relay.json"
contracts:
  legacy: "` + legacyHashLE + `"
`,
			validate: func(t *testing.T, cfg *MigratorConfig) {
				assert.Equal(t, 15*time.Second, cfg.RPC.DialTimeout)
				assert.Equal(t, 30, cfg.Migration.BatchLimit)
				assert.Equal(t, 0, cfg.Migration.MaxBatches)
				assert.True(t, cfg.Migration.Relay)
				assert.Equal(t, 30*time.Second, cfg.Retry.MaxInterval)
				assert.Equal(t, 5*time.Minute, cfg.Retry.MaxElapsedTime)
				assert.EqualError(t, cfg.Validate(), "missing contracts.issuer required by relay")
			},
		},
		{
			name: "invalid yaml",
			configFile: `
				migration:
				  batch_limit: many
			`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadMigratorConfig(writeConfig(t, tt.configFile), t.TempDir())
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadMigratorConfigFromEnv(t *testing.T) {
	envDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte(
		"TOKENFACTORY_WALLET_PASSWORD=from-dotenv\nTOKENFACTORY_MIGRATION_BATCH_LIMIT=7\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env.migrator.local"), []byte(
		"TOKENFACTORY_MIGRATION_BATCH_LIMIT=12\n"), 0600))

	// Registers cleanup of the variables godotenv sets.
	t.Setenv("TOKENFACTORY_WALLET_PASSWORD", "")
	t.Setenv("TOKENFACTORY_MIGRATION_BATCH_LIMIT", "")
	t.Setenv("TOKENFACTORY_RPC_ENDPOINT", "http://node:30333")

	cfg, err := LoadMigratorConfig(writeConfig(t, `
rpc:
  endpoint: "http://localhost:30333"
`), envDir)
	require.NoError(t, err)

	assert.Equal(t, "http://node:30333", cfg.RPC.Endpoint)
	assert.Equal(t, "from-dotenv", cfg.Wallet.Password)
	assert.Equal(t, 12, cfg.Migration.BatchLimit)
}

func TestMigratorConfigValidate(t *testing.T) {
	valid := func() MigratorConfig {
		return MigratorConfig{
			RPC:       RPCConfig{Endpoint: "http://localhost:30333"},
			Wallet:    WalletConfig{Path: "wallet.json"},
			Contracts: ContractsConfig{Legacy: legacyHashLE, Issuer: legacyHashLE},
			Migration: MigrationConfig{BatchLimit: 30, Relay: true},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.RPC.Endpoint = ""
	require.EqualError(t, cfg.Validate(), "missing rpc.endpoint")

	cfg = valid()
	cfg.Wallet.Path = ""
	require.EqualError(t, cfg.Validate(), "missing wallet.path")

	cfg = valid()
	cfg.Contracts.Legacy = "not a hash"
	require.ErrorContains(t, cfg.Validate(), "contracts.legacy")

	cfg = valid()
	cfg.Migration.BatchLimit = -1
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Migration.Relay = false
	cfg.Contracts.Issuer = ""
	require.NoError(t, cfg.Validate())
}

func TestParseHash(t *testing.T) {
	h := util.Uint160{1, 2, 3, 4, 5}

	res, err := ParseHash(h.StringLE())
	require.NoError(t, err)
	require.Equal(t, h, res)

	res, err = ParseHash("0x" + h.StringLE())
	require.NoError(t, err)
	require.Equal(t, h, res)

	res, err = ParseHash(address.Uint160ToString(h))
	require.NoError(t, err)
	require.Equal(t, h, res)

	_, err = ParseHash("usdc")
	require.Error(t, err)
}
