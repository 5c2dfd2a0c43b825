package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"QueryVerify/internal/snapshot"
)

var cmdSnapshot = &cobra.Command{
	Use:   "snapshot",
	Short: "Export or import ledger snapshots",
}

var cmdSnapshotExport = &cobra.Command{
	Use:   "export <file>",
	Short: "Write a compressed snapshot of the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  exportSnapshot,
}

var cmdSnapshotImport = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the ledger with a compressed snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  importSnapshot,
}

func init() {
	cmdSnapshot.AddCommand(cmdSnapshotExport, cmdSnapshotImport)
	cmdMain.AddCommand(cmdSnapshot)
}

func exportSnapshot(cmd *cobra.Command, args []string) error {
	o, err := openOffline(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	data, err := snapshot.Create(cmd.Context(), o.ledger)
	if err != nil {
		return err
	}

	compressed, err := snapshot.Compress(data)
	if err != nil {
		return err
	}

	if err := snapshot.WriteFile(args[0], compressed); err != nil {
		return err
	}

	sum, _ := snapshot.Checksum(data)
	fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s written (%d bytes, checksum %s)\n", args[0], len(compressed), hex.EncodeToString(sum[:]))

	return nil
}

func importSnapshot(cmd *cobra.Command, args []string) error {
	data, err := snapshot.ReadFile(args[0])
	if err != nil {
		return err
	}

	o, err := openOffline(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	n, err := snapshot.Apply(cmd.Context(), o.ledger, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "restored %d accounts from %s\n", n, args[0])

	return nil
}
