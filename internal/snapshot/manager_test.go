package snapshot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerSkipsUnchangedLedger(t *testing.T) {
	ctx := context.Background()
	l := createTestLedger(t)
	l.Airdrop(ctx, testAccount(1, nil).Address, 10)

	dir := t.TempDir()
	m := NewManager(l, dir, time.Hour, 3)

	first, err := m.Snapshot(ctx)
	if err != nil || first == "" {
		t.Fatalf("first Snapshot = %q, %v", first, err)
	}

	second, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("second Snapshot failed: %v", err)
	}
	if second != "" {
		t.Errorf("unchanged ledger produced %s", second)
	}

	l.Airdrop(ctx, testAccount(2, nil).Address, 20)

	third, err := m.Snapshot(ctx)
	if err != nil || third == "" {
		t.Fatalf("third Snapshot = %q, %v", third, err)
	}
	if m.Latest() != third {
		t.Errorf("Latest = %s, want %s", m.Latest(), third)
	}

	data, err := ReadFile(third)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	want, _ := Create(ctx, l)
	if !bytes.Equal(data, want) {
		t.Error("snapshot file does not match the ledger")
	}
}

func TestManagerPrunesOldFiles(t *testing.T) {
	ctx := context.Background()
	l := createTestLedger(t)
	dir := t.TempDir()
	m := NewManager(l, dir, time.Hour, 2)

	for i := byte(1); i <= 4; i++ {
		l.Airdrop(ctx, testAccount(i, nil).Address, uint64(i))
		if _, err := m.Snapshot(ctx); err != nil {
			t.Fatalf("Snapshot %d failed: %v", i, err)
		}
	}

	files, _ := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if len(files) != 2 {
		t.Errorf("kept %d files, want 2", len(files))
	}
}

func TestManagerRunWritesFinalSnapshot(t *testing.T) {
	l := createTestLedger(t)
	l.Airdrop(context.Background(), testAccount(1, nil).Address, 10)

	dir := filepath.Join(t.TempDir(), "snapshots")
	m := NewManager(l, dir, time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := os.Stat(m.Latest()); err != nil {
		t.Errorf("final snapshot missing: %v", err)
	}
}
