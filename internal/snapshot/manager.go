package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
)

const (
	// filePrefix and fileSuffix frame automatic snapshot file names.
	filePrefix = "snapshot-"
	fileSuffix = ".zst"
)

// Manager writes periodic compressed snapshots of a ledger to a directory.
type Manager struct {
	ledger   *ledger.Ledger
	dir      string
	interval time.Duration
	keep     int
	log      *slog.Logger

	mu       sync.RWMutex
	checksum [checksumSize]byte // checksum of the latest written snapshot
	latest   string             // latest is the path of the latest snapshot
}

// NewManager creates a manager writing to dir every interval and keeping
// the keep most recent files.
func NewManager(l *ledger.Ledger, dir string, interval time.Duration, keep int) *Manager {
	if keep < 1 {
		keep = 1
	}

	return &Manager{
		ledger:   l,
		dir:      dir,
		interval: interval,
		keep:     keep,
		log:      logger.Component("snapshot"),
	}
}

// Run snapshots until ctx is done. A final snapshot is taken on the way out.
func (m *Manager) Run(ctx context.Context) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory:\n%w", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := m.Snapshot(context.Background()); err != nil {
				m.log.Error("final snapshot", "error", err)
			}
			return nil
		case <-ticker.C:
			if _, err := m.Snapshot(ctx); err != nil {
				m.log.Error("create snapshot", "error", err)
			}
		}
	}
}

// Latest returns the path of the most recent snapshot written by m, or "".
func (m *Manager) Latest() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.latest
}

// Snapshot writes a snapshot unless the ledger is unchanged since the last one.
// Returns the written path, or "" when skipped.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	start := time.Now()

	data, err := Create(ctx, m.ledger)
	if err != nil {
		return "", err
	}

	sum, err := Checksum(data)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	unchanged := m.latest != "" && sum == m.checksum
	m.mu.RUnlock()

	if unchanged {
		return "", nil
	}

	compressed, err := Compress(data)
	if err != nil {
		return "", err
	}

	path := filepath.Join(m.dir, fmt.Sprintf("%s%d%s", filePrefix, start.UnixNano(), fileSuffix))
	if err := WriteFile(path, compressed); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.checksum = sum
	m.latest = path
	m.mu.Unlock()

	m.log.Debug("snapshot written", "path", path, "bytes", len(compressed), logger.Timed(start))

	return path, m.prune()
}

// prune removes all but the newest keep snapshot files.
func (m *Manager) prune() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("list snapshots:\n%w", err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), fileSuffix) {
			names = append(names, e.Name())
		}
	}

	if len(names) <= m.keep {
		return nil
	}

	// Names embed a fixed-width nanosecond timestamp, so lexical order is age order.
	sort.Strings(names)

	for _, name := range names[:len(names)-m.keep] {
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			return fmt.Errorf("remove %s:\n%w", name, err)
		}
	}

	return nil
}

// WriteFile writes data to path atomically through a temporary file.
func WriteFile(path string, data []byte) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s:\n%w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s:\n%w", tmp, err)
	}

	return nil
}

// ReadFile reads a compressed snapshot file and returns the raw snapshot.
func ReadFile(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s:\n%w", path, err)
	}

	data, err := Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress %s:\n%w", path, err)
	}

	return data, nil
}
