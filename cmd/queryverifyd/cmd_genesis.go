package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"QueryVerify/internal/genesis"
)

var cmdGenesis = &cobra.Command{
	Use:   "genesis",
	Short: "Create genesis files",
}

var cmdGenesisDev = &cobra.Command{
	Use:   "dev <file>",
	Short: "Generate a development genesis with fresh guardian keys",
	Args:  cobra.ExactArgs(1),
	RunE:  devGenesis,
}

var flagGenesisDev struct {
	Guardians int
	KeysOut   string
	Fund      []string
	Lamports  uint64
}

func init() {
	cmdGenesisDev.Flags().IntVar(&flagGenesisDev.Guardians, "guardians", 13, "Number of guardian keys")
	cmdGenesisDev.Flags().StringVar(&flagGenesisDev.KeysOut, "keys-out", "guardian-keys.txt", "File receiving the guardian private keys, one hex key per line")
	cmdGenesisDev.Flags().StringSliceVar(&flagGenesisDev.Fund, "fund", nil, "Base58 wallets to fund at genesis")
	cmdGenesisDev.Flags().Uint64Var(&flagGenesisDev.Lamports, "lamports", 10_000_000_000, "Lamports per funded wallet")

	cmdGenesis.AddCommand(cmdGenesisDev)
	cmdMain.AddCommand(cmdGenesis)
}

func devGenesis(cmd *cobra.Command, args []string) error {
	cfg, keys, err := genesis.DevGuardians(flagGenesisDev.Guardians)
	if err != nil {
		return err
	}

	for _, addr := range flagGenesisDev.Fund {
		cfg.Accounts = append(cfg.Accounts, genesis.AccountConfig{Address: addr, Lamports: flagGenesisDev.Lamports})
	}

	if err := genesis.Write(args[0], cfg); err != nil {
		return err
	}

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(hex.EncodeToString(crypto.FromECDSA(k)))
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(flagGenesisDev.KeysOut, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("write guardian keys:\n%w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "genesis %s written with %d guardians; keys in %s\n", args[0], len(keys), flagGenesisDev.KeysOut)

	return nil
}
