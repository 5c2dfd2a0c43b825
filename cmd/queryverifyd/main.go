package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"QueryVerify/internal/logger"
)

var cmdMain = &cobra.Command{
	Use:           "queryverifyd",
	Short:         "Guardian-attested query response verification node",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logger.ParseLevel(flagMain.LogLevel)
		if err != nil {
			return err
		}

		logger.Init(level)

		return nil
	},
}

var flagMain struct {
	ConfigFile string
	LogLevel   string
}

func init() {
	cmdMain.PersistentFlags().StringVarP(&flagMain.ConfigFile, "config", "c", "", "Config file (default <data-dir>/queryverify.yaml)")
	cmdMain.PersistentFlags().StringVar(&flagMain.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	addLedgerFlags(cmdMain.PersistentFlags())
}

func main() {
	if err := cmdMain.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
