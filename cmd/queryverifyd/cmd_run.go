package main

import (
	"github.com/spf13/cobra"

	"QueryVerify/internal/logger"
)

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the verification node",
	Args:  cobra.NoArgs,
	RunE:  runNode,
}

func init() {
	addNodeFlags(cmdRun.Flags())
	cmdMain.AddCommand(cmdRun)
}

func runNode(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info("starting queryverifyd",
		"data", cfg.DataDir,
		"http", cfg.HTTPAddress,
		"genesis", cfg.GenesisPath,
		"recovery_cache", cfg.RecoveryCacheSize,
		"snapshot_interval", cfg.SnapshotInterval,
	)

	node, err := NewNode(cfg)
	if err != nil {
		return err
	}

	return node.Run(cmd.Context())
}
