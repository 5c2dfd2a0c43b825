package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"QueryVerify/internal/guardian"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/storage"
)

// offlineLedger is a ledger opened by a maintenance command.
// The node must not be running on the same data directory.
type offlineLedger struct {
	cfg     *Config
	storage *storage.Storage
	ledger  *ledger.Ledger
	gov     *guardian.Governance
}

func openOffline(cmd *cobra.Command) (*offlineLedger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	db, err := storage.New(cfg.dbPath())
	if err != nil {
		return nil, fmt.Errorf("open storage (is the node running?):\n%w", err)
	}

	l := ledger.New(db)

	return &offlineLedger{
		cfg:     cfg,
		storage: db,
		ledger:  l,
		gov:     guardian.NewGovernance(cfg.Governance, l),
	}, nil
}

func (o *offlineLedger) Close() error {
	return o.storage.Close()
}
