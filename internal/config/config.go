package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/spf13/viper"
)

// EnvPrefix is a prefix of environment variables overriding config values,
// e.g. TOKENFACTORY_RPC_ENDPOINT.
const EnvPrefix = "TOKENFACTORY"

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug bool `mapstructure:"debug"`
}

// RPCConfig holds Neo RPC node connection configuration
type RPCConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WalletConfig holds the signing account configuration
type WalletConfig struct {
	Path     string `mapstructure:"path"`
	Address  string `mapstructure:"address"` // default wallet account is used if empty
	Password string `mapstructure:"password"`
}

// ContractsConfig holds contract script hashes (LE hex or Neo address)
type ContractsConfig struct {
	Legacy string `mapstructure:"legacy"`
	Issuer string `mapstructure:"issuer"`
}

// MigrationConfig holds batch driver configuration
type MigrationConfig struct {
	BatchLimit int  `mapstructure:"batch_limit"`
	MaxBatches int  `mapstructure:"max_batches"` // 0 means until the ledger is exhausted
	Relay      bool `mapstructure:"relay"`
}

// RetryConfig holds exponential backoff configuration
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
	MaxRetries      uint64        `mapstructure:"max_retries"`
}

// MigratorConfig holds configuration for the migrator command
type MigratorConfig struct {
	BaseConfig `mapstructure:",squash"`
	RPC        RPCConfig       `mapstructure:"rpc"`
	Wallet     WalletConfig    `mapstructure:"wallet"`
	Contracts  ContractsConfig `mapstructure:"contracts"`
	Migration  MigrationConfig `mapstructure:"migration"`
	Retry      RetryConfig     `mapstructure:"retry"`
}

// LoadMigratorConfig loads configuration for the migrator command
func LoadMigratorConfig(configFile string, envPath string) (*MigratorConfig, error) {
	v := configureViper("migrator", configFile, envPath)

	// Set defaults
	v.SetDefault("rpc.dial_timeout", "15s")
	v.SetDefault("rpc.request_timeout", "15s")
	v.SetDefault("migration.batch_limit", 30)
	v.SetDefault("migration.max_batches", 0)
	v.SetDefault("migration.relay", true)
	v.SetDefault("retry.initial_interval", "1s")
	v.SetDefault("retry.max_interval", "30s")
	v.SetDefault("retry.max_elapsed_time", "5m")
	v.SetDefault("retry.max_retries", 10)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use environment variables
	}

	var config MigratorConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate checks that every required value is set
func (c *MigratorConfig) Validate() error {
	switch {
	case c.RPC.Endpoint == "":
		return errors.New("missing rpc.endpoint")
	case c.Wallet.Path == "":
		return errors.New("missing wallet.path")
	case c.Contracts.Legacy == "":
		return errors.New("missing contracts.legacy")
	case c.Migration.Relay && c.Contracts.Issuer == "":
		return errors.New("missing contracts.issuer required by relay")
	case c.Migration.BatchLimit < 0:
		return errors.New("negative migration.batch_limit")
	}

	if _, err := ParseHash(c.Contracts.Legacy); err != nil {
		return fmt.Errorf("contracts.legacy: %w", err)
	}
	if c.Contracts.Issuer != "" {
		if _, err := ParseHash(c.Contracts.Issuer); err != nil {
			return fmt.Errorf("contracts.issuer: %w", err)
		}
	}

	return nil
}

// ParseHash decodes a script hash given either as LE hex string (with or
// without 0x prefix) or as a Neo address.
func ParseHash(s string) (util.Uint160, error) {
	h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err == nil {
		return h, nil
	}

	h, err = address.StringToUint160(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("neither LE hex nor address: %q", s)
	}
	return h, nil
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"rpc.endpoint",
		"rpc.dial_timeout",
		"rpc.request_timeout",
		"wallet.path",
		"wallet.address",
		"wallet.password",
		"contracts.legacy",
		"contracts.issuer",
		"migration.batch_limit",
		"migration.max_batches",
		"migration.relay",
		"retry.initial_interval",
		"retry.max_interval",
		"retry.max_elapsed_time",
		"retry.max_retries",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile)) // later files override earlier ones
	}
}
