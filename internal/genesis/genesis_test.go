package genesis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"QueryVerify/internal/guardian"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/storage"
)

const testGenesisYAML = `
accounts:
  - address: 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
    lamports: 5000000000
guardian_sets:
  - index: 0
    keys:
      - "0x58CC3AE5C097b213cE3c81979e1B9f9570746AA5"
      - "0xfF6CB952589BDE862c25Ef4392132fb9D4A42157"
      - "0x114De8460193bdf3A2fCf81f86a09765F4762fD1"
    creation_time: 1700000000
`

var testWallet = ledger.MustPubkey("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

func newTestEnv(t *testing.T) (*ledger.Ledger, *guardian.Governance) {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l := ledger.New(db)

	return l, guardian.NewGovernance(ledger.MustPubkey("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth"), l)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "genesis.yaml", testGenesisYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Lamports != 5_000_000_000 {
		t.Errorf("unexpected accounts %+v", cfg.Accounts)
	}
	if len(cfg.GuardianSets) != 1 || len(cfg.GuardianSets[0].Keys) != 3 || cfg.GuardianSets[0].CreationTime != 1_700_000_000 {
		t.Errorf("unexpected guardian sets %+v", cfg.GuardianSets)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	l, gov := newTestEnv(t)
	ctx := context.Background()

	cfg, err := Load(writeFile(t, "genesis.yaml", testGenesisYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := Apply(ctx, l, gov, cfg); err != nil {
			t.Fatalf("Apply #%d failed: %v", i, err)
		}
	}

	if bal, _ := l.Balance(ctx, testWallet); bal != 5_000_000_000 {
		t.Errorf("wallet balance %d after two applies", bal)
	}

	set, _, err := gov.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if set.Quorum() != 3 || set.Keys[1].Hex() != "0xfF6CB952589BDE862c25Ef4392132fb9D4A42157" {
		t.Errorf("unexpected set %+v", set)
	}
}

func TestApplyRejectsConflictingSet(t *testing.T) {
	l, gov := newTestEnv(t)
	ctx := context.Background()

	cfg, _ := Load(writeFile(t, "genesis.yaml", testGenesisYAML))
	if err := Apply(ctx, l, gov, cfg); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	cfg.GuardianSets[0].Keys = cfg.GuardianSets[0].Keys[:2]
	if err := Apply(ctx, l, gov, cfg); err == nil {
		t.Error("expected error for a conflicting guardian set")
	}
}

func TestGuardianSetConfigValidation(t *testing.T) {
	cases := []GuardianSetConfig{
		{Index: 0},
		{Index: 0, Keys: []string{"not-an-address"}},
		{Index: 0, Keys: make([]string, guardian.MaxKeys+1)},
	}

	for i, c := range cases {
		if _, err := c.Set(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestDevGuardiansRoundTrip(t *testing.T) {
	cfg, keys, err := DevGuardians(13)
	if err != nil {
		t.Fatalf("DevGuardians failed: %v", err)
	}
	if len(keys) != 13 {
		t.Fatalf("got %d keys", len(keys))
	}

	cfg.Accounts = []AccountConfig{{Address: testWallet.String(), Lamports: 42}}

	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	set, err := loaded.GuardianSets[0].Set()
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if set.Quorum() != 9 || loaded.Accounts[0].Lamports != 42 {
		t.Errorf("unexpected round trip %+v", loaded)
	}
}
