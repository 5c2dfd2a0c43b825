// Package genesis seeds a fresh ledger with funded accounts and guardian sets.
package genesis

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/guardian"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
)

// Config holds the genesis state of a node.
type Config struct {
	// Accounts are wallets funded at genesis.
	Accounts []AccountConfig `mapstructure:"accounts"`

	// GuardianSets are published under the governance program at genesis.
	GuardianSets []GuardianSetConfig `mapstructure:"guardian_sets"`
}

// AccountConfig is a funded wallet.
type AccountConfig struct {
	Address  string `mapstructure:"address"`  // Address is base58
	Lamports uint64 `mapstructure:"lamports"` // Lamports is the initial balance
}

// GuardianSetConfig is a guardian set to publish.
type GuardianSetConfig struct {
	Index          uint32   `mapstructure:"index"`           // Index is the set version
	Keys           []string `mapstructure:"keys"`            // Keys are 0x-prefixed guardian addresses
	CreationTime   uint32   `mapstructure:"creation_time"`   // CreationTime is a unix timestamp
	ExpirationTime uint32   `mapstructure:"expiration_time"` // ExpirationTime is a unix timestamp, 0 while current
}

// Load reads a genesis file. The format follows the file extension
// (yaml, json or toml).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read genesis %s:\n%w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode genesis %s:\n%w", path, err)
	}

	return cfg, nil
}

// Write stores cfg at path in the format named by its extension.
func Write(path string, cfg *Config) error {
	v := viper.New()

	accounts := make([]map[string]any, len(cfg.Accounts))
	for i, a := range cfg.Accounts {
		accounts[i] = map[string]any{"address": a.Address, "lamports": a.Lamports}
	}

	sets := make([]map[string]any, len(cfg.GuardianSets))
	for i, s := range cfg.GuardianSets {
		sets[i] = map[string]any{
			"index":           s.Index,
			"keys":            s.Keys,
			"creation_time":   s.CreationTime,
			"expiration_time": s.ExpirationTime,
		}
	}

	v.Set("accounts", accounts)
	v.Set("guardian_sets", sets)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write genesis %s:\n%w", path, err)
	}

	return nil
}

// Set converts c into a guardian set.
func (c GuardianSetConfig) Set() (*guardian.Set, error) {
	if len(c.Keys) == 0 || len(c.Keys) > guardian.MaxKeys {
		return nil, fmt.Errorf("guardian set %d: %d keys, want 1..%d", c.Index, len(c.Keys), guardian.MaxKeys)
	}

	set := &guardian.Set{
		Index:          c.Index,
		Keys:           make([]common.Address, len(c.Keys)),
		CreationTime:   c.CreationTime,
		ExpirationTime: c.ExpirationTime,
	}

	for i, k := range c.Keys {
		if !common.IsHexAddress(k) {
			return nil, fmt.Errorf("guardian set %d: key %d %q is not an address", c.Index, i, k)
		}
		set.Keys[i] = common.HexToAddress(k)
	}

	return set, nil
}

// Apply seeds l. Accounts that already exist and sets that are already
// published are left alone, so applying the same genesis twice is a no-op.
func Apply(ctx context.Context, l *ledger.Ledger, gov *guardian.Governance, cfg *Config) error {
	log := logger.Component("genesis")

	for _, a := range cfg.Accounts {
		addr, err := ledger.ParsePubkey(a.Address)
		if err != nil {
			return fmt.Errorf("genesis account:\n%w", err)
		}

		funded := false
		err = l.Update(ctx, func(tx *ledger.Txn) error {
			existing, err := tx.Get(addr)
			if err != nil || existing != nil {
				return err
			}

			funded = true
			return tx.Credit(addr, a.Lamports)
		})
		if err != nil {
			return fmt.Errorf("fund %s:\n%w", addr, err)
		}

		if funded {
			log.Info("genesis account funded", "address", addr, "lamports", a.Lamports)
		}
	}

	for _, sc := range cfg.GuardianSets {
		set, err := sc.Set()
		if err != nil {
			return err
		}

		if err := publishOnce(ctx, gov, set); err != nil {
			return err
		}
	}

	return nil
}

// publishOnce publishes set unless an identical set is already published.
func publishOnce(ctx context.Context, gov *guardian.Governance, set *guardian.Set) error {
	_, err := gov.Publish(ctx, set)
	if !errors.Is(err, qverrors.ErrAccountInUse) {
		return err
	}

	existing, _, err := gov.Get(ctx, set.Index)
	if err != nil {
		return fmt.Errorf("read guardian set %d:\n%w", set.Index, err)
	}

	if !slices.Equal(existing.Keys, set.Keys) {
		return fmt.Errorf("guardian set %d already published with different keys", set.Index)
	}

	return nil
}

// DevGuardians generates n guardian keys and a genesis publishing them as set 0.
// Intended for local networks only.
func DevGuardians(n int) (*Config, []*ecdsa.PrivateKey, error) {
	if n <= 0 || n > guardian.MaxKeys {
		return nil, nil, fmt.Errorf("guardian count %d, want 1..%d", n, guardian.MaxKeys)
	}

	keys := make([]*ecdsa.PrivateKey, n)
	set := GuardianSetConfig{Index: 0, Keys: make([]string, n)}

	for i := range keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			return nil, nil, fmt.Errorf("generate guardian key:\n%w", err)
		}

		keys[i] = k
		set.Keys[i] = crypto.PubkeyToAddress(k.PublicKey).Hex()
	}

	return &Config{GuardianSets: []GuardianSetConfig{set}}, keys, nil
}
