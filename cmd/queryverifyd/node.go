package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"QueryVerify/internal/api"
	"QueryVerify/internal/genesis"
	"QueryVerify/internal/guardian"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
	"QueryVerify/internal/program"
	"QueryVerify/internal/recovery"
	"QueryVerify/internal/snapshot"
	"QueryVerify/internal/storage"
)

// receiptPruneInterval is the period between sweeps of expired instruction receipts.
const receiptPruneInterval = time.Minute

// Node is a running verification node.
type Node struct {
	cfg       *Config
	storage   *storage.Storage
	ledger    *ledger.Ledger
	gov       *guardian.Governance
	program   *program.Program
	recoverer recovery.Recoverer
	api       *api.Server
	snapshots *snapshot.Manager
	log       *slog.Logger
}

// NewNode opens storage and wires the program. Nothing is served until Run.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg, log: logger.Component("node")}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initProgram(); err != nil {
		n.Close()
		return nil, err
	}

	n.api = api.New(api.Config{Addr: cfg.HTTPAddress, MaxBodySize: cfg.MaxBodySize}, n.program, n.gov, n.ledger)

	if cfg.SnapshotInterval > 0 {
		n.snapshots = snapshot.NewManager(n.ledger, cfg.snapshotDir(), cfg.SnapshotInterval, cfg.SnapshotKeep)
	}

	return n, nil
}

// initStorage initializes the Pebble storage and the ledger over it.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(n.cfg.dbPath())
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db
	n.ledger = ledger.New(db)

	return nil
}

// initProgram builds the recoverer, governance view and program.
func (n *Node) initProgram() error {
	n.recoverer = recovery.Secp256k1{}

	if n.cfg.RecoveryCacheSize > 0 {
		cache, err := recovery.NewCache(recovery.Secp256k1{}, n.cfg.RecoveryCacheSize)
		if err != nil {
			return fmt.Errorf("init recovery cache:\n%w", err)
		}

		registerCacheMetrics(cache)
		n.recoverer = cache
	}

	n.gov = guardian.NewGovernance(n.cfg.Governance, n.ledger)
	n.program = program.New(n.ledger, program.Config{
		ProgramID:  n.cfg.ProgramID,
		Governance: n.cfg.Governance,
		Recoverer:  n.recoverer,
	})

	return nil
}

// registerCacheMetrics exports recovery cache hits and misses.
func registerCacheMetrics(cache *recovery.Cache) {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "queryverify",
			Subsystem: "recovery",
			Name:      "cache_hits_total",
			Help:      "Signature recoveries served from cache",
		}, func() float64 { hits, _ := cache.Stats(); return float64(hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "queryverify",
			Subsystem: "recovery",
			Name:      "cache_misses_total",
			Help:      "Signature recoveries computed",
		}, func() float64 { _, misses := cache.Stats(); return float64(misses) }),
	}

	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				logger.Warn("register recovery metrics", "error", err)
			}
		}
	}
}

// Run applies genesis, serves the API and blocks until ctx is done or
// SIGINT/SIGTERM arrives.
func (n *Node) Run(ctx context.Context) error {
	defer n.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n.cfg.GenesisPath != "" {
		if err := n.applyGenesis(ctx); err != nil {
			return err
		}
	}

	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	n.log.Info("node started",
		"program", n.program.ID(),
		"governance", n.program.Governance(),
		"http", n.api.Addr(),
		"data", n.cfg.DataDir,
	)

	g, ctx := errgroup.WithContext(ctx)

	if n.snapshots != nil {
		g.Go(func() error { return n.snapshots.Run(ctx) })
	}

	g.Go(func() error { return n.pruneReceipts(ctx) })

	g.Go(func() error {
		<-ctx.Done()
		n.log.Info("shutting down")

		return n.api.Stop(context.Background())
	})

	return g.Wait()
}

// pruneReceipts periodically drops the receipts of expired instructions.
func (n *Node) pruneReceipts(ctx context.Context) error {
	ticker := time.NewTicker(receiptPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			removed, err := n.ledger.PruneReceipts(ctx, now)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("prune instruction receipts", "error", err)
				continue
			}

			if removed > 0 {
				logger.Debug("instruction receipts pruned", "removed", removed)
			}
		}
	}
}

// applyGenesis seeds the ledger from the configured genesis file.
func (n *Node) applyGenesis(ctx context.Context) error {
	gen, err := genesis.Load(n.cfg.GenesisPath)
	if err != nil {
		return err
	}

	if err := genesis.Apply(ctx, n.ledger, n.gov, gen); err != nil {
		return fmt.Errorf("apply genesis:\n%w", err)
	}

	return nil
}

// Close shuts down all node components.
func (n *Node) Close() error {
	if n.storage != nil {
		err := n.storage.Close()
		n.storage = nil

		return err
	}

	return nil
}
