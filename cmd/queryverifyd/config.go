package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"QueryVerify/internal/api"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/program"
	"QueryVerify/internal/recovery"
)

const (
	// envPrefix prefixes environment overrides, e.g. QUERYVERIFY_HTTP_ADDRESS.
	envPrefix = "QUERYVERIFY"

	// configFileName is looked up in the data directory.
	configFileName = "queryverify.yaml"
)

// Config holds the node configuration.
type Config struct {
	// DataDir is the directory for persistent storage and snapshots.
	DataDir string

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string

	// ProgramID owns signature buffers.
	ProgramID ledger.Pubkey

	// Governance owns guardian sets.
	Governance ledger.Pubkey

	// RecoveryCacheSize is the number of memoized signature recoveries; 0 disables the cache.
	RecoveryCacheSize int

	// MaxBodySize limits HTTP request bodies in bytes.
	MaxBodySize int64

	// GenesisPath is applied at startup when set.
	GenesisPath string

	// SnapshotInterval is the period between automatic snapshots; 0 disables them.
	SnapshotInterval time.Duration

	// SnapshotKeep is how many automatic snapshots are retained.
	SnapshotKeep int
}

// dbPath returns the pebble directory.
func (c *Config) dbPath() string {
	return filepath.Join(c.DataDir, "db")
}

// snapshotDir returns the directory of automatic snapshots.
func (c *Config) snapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// addLedgerFlags registers the flags shared by every command touching the ledger.
func addLedgerFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "./data", "Data directory path")
	fs.String("program-id", program.DefaultProgramID.String(), "Program id owning signature buffers")
	fs.String("governance", program.MainnetCoreBridge.String(), "Program id owning guardian sets")
}

// addNodeFlags registers the flags of the run command.
func addNodeFlags(fs *pflag.FlagSet) {
	fs.String("http-address", ":8080", "HTTP API address")
	fs.Int("recovery-cache-size", recovery.DefaultCacheSize, "Memoized signature recoveries (0 disables)")
	fs.Int64("max-body-size", api.DefaultMaxBodySize, "Maximum HTTP request body in bytes")
	fs.String("genesis", "", "Genesis file applied at startup")
	fs.Duration("snapshot-interval", 0, "Automatic snapshot period (0 disables)")
	fs.Int("snapshot-keep", 3, "Automatic snapshots to retain")
}

// loadConfig merges flags, environment and the config file.
// Precedence: flag, then QUERYVERIFY_* environment, then file, then default.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags:\n%w", err)
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:           v.GetString("data-dir"),
		HTTPAddress:       v.GetString("http-address"),
		RecoveryCacheSize: v.GetInt("recovery-cache-size"),
		MaxBodySize:       v.GetInt64("max-body-size"),
		GenesisPath:       v.GetString("genesis"),
		SnapshotInterval:  v.GetDuration("snapshot-interval"),
		SnapshotKeep:      v.GetInt("snapshot-keep"),
	}

	var err error
	if cfg.ProgramID, err = ledger.ParsePubkey(v.GetString("program-id")); err != nil {
		return nil, fmt.Errorf("program-id:\n%w", err)
	}
	if cfg.Governance, err = ledger.ParsePubkey(v.GetString("governance")); err != nil {
		return nil, fmt.Errorf("governance:\n%w", err)
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data-dir is required")
	}

	return cfg, nil
}

// readConfigFile reads --config, or queryverify.yaml in the data directory if present.
func readConfigFile(v *viper.Viper) error {
	path := flagMain.ConfigFile
	if path == "" {
		path = filepath.Join(v.GetString("data-dir"), configFileName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
	}

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s:\n%w", path, err)
	}

	return nil
}
