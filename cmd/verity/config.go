package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"Verity/internal/contracts"
	"Verity/internal/contractvm"
	"Verity/internal/crypto"
	"Verity/internal/ledger"
	"Verity/internal/storage"
	"Verity/internal/txstore"
)

// Config holds the CLI configuration.
type Config struct {
	// DataPath is the directory of the transaction store.
	DataPath string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// CacheSize is the number of decoded transactions kept in memory.
	CacheSize int

	// MaxDepth bounds the dependency walk of verify.
	MaxDepth int

	// ContractsDir holds "<contract id>.wasm" modules. Empty disables wasm contracts.
	ContractsDir string

	// GasLimit is the gas granted to one wasm contract verification.
	GasLimit uint64

	// SyncInterval is the interval between background WAL syncs.
	SyncInterval time.Duration

	// Identities are the well-known parties command signers resolve to.
	Identities []contracts.Party
}

// bindFlags declares the persistent flags and binds them to v.
// Every key can also be set as VERITY_<KEY> with dots replaced by underscores.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()

	flags.String("config", "", "Config file (yaml, toml or json)")
	flags.StringP("data", "d", "./data", "Transaction store directory")
	flags.String("log.level", "info", "Log level: debug, info, warn, error")
	flags.Int("cache.size", txstore.DefaultConfig().CacheSize, "Decoded transactions kept in memory")
	flags.Int("resolve.max_depth", ledger.DefaultResolverConfig().MaxDepth, "Maximum dependency depth")
	flags.String("contracts.dir", "", "Directory of wasm contracts")
	flags.Uint64("contracts.gas_limit", contractvm.DefaultGasLimit, "Gas per wasm contract verification")
	flags.Duration("storage.sync_interval", storage.DefaultOptions().SyncInterval, "Interval between WAL syncs")
	flags.StringSlice("identities", nil, "Well-known parties as <name>=<scheme>:<hex key>")

	for _, key := range []string{
		"data", "log.level", "cache.size", "resolve.max_depth",
		"contracts.dir", "contracts.gas_limit", "storage.sync_interval", "identities",
	} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}

	v.SetEnvPrefix("VERITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig reads the optional config file and returns the merged settings.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config:\n%w", err)
		}
	}

	cfg := &Config{
		DataPath:     v.GetString("data"),
		LogLevel:     v.GetString("log.level"),
		CacheSize:    v.GetInt("cache.size"),
		MaxDepth:     v.GetInt("resolve.max_depth"),
		ContractsDir: v.GetString("contracts.dir"),
		GasLimit:     v.GetUint64("contracts.gas_limit"),
		SyncInterval: v.GetDuration("storage.sync_interval"),
	}

	identities, err := parseIdentities(v.GetStringSlice("identities"))
	if err != nil {
		return nil, err
	}
	cfg.Identities = identities

	if cfg.DataPath == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("cache.size must be positive, got %d", cfg.CacheSize)
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("resolve.max_depth must not be negative, got %d", cfg.MaxDepth)
	}

	return cfg, nil
}

// parseIdentities decodes "<name>=<scheme>:<hex key>" entries.
func parseIdentities(entries []string) ([]contracts.Party, error) {
	parties := make([]contracts.Party, 0, len(entries))

	for _, e := range entries {
		name, encoded, ok := strings.Cut(e, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid identity %q: want <name>=<scheme>:<hex>", e)
		}

		key, err := crypto.ParsePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("identity %s:\n%w", name, err)
		}

		parties = append(parties, contracts.Party{Name: name, Key: key})
	}

	return parties, nil
}
