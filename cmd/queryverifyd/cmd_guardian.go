package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"QueryVerify/internal/api"
	"QueryVerify/internal/genesis"
)

var cmdGuardianSet = &cobra.Command{
	Use:   "guardian-set",
	Short: "Manage guardian sets held by the governance program",
}

var cmdGuardianSetPublish = &cobra.Command{
	Use:   "publish <index> <address>...",
	Short: "Publish a guardian set",
	Args:  cobra.MinimumNArgs(2),
	RunE:  publishGuardianSet,
}

var cmdGuardianSetExpire = &cobra.Command{
	Use:   "expire <index>",
	Short: "Set the expiration time of a guardian set",
	Args:  cobra.ExactArgs(1),
	RunE:  expireGuardianSet,
}

var cmdGuardianSetShow = &cobra.Command{
	Use:   "show <index>",
	Short: "Print a guardian set",
	Args:  cobra.ExactArgs(1),
	RunE:  showGuardianSet,
}

var flagGuardianSet struct {
	At    string
	After time.Duration
}

func init() {
	cmdGuardianSetExpire.Flags().StringVar(&flagGuardianSet.At, "at", "", "Expiration time (RFC 3339); empty clears the expiration")
	cmdGuardianSetExpire.Flags().DurationVar(&flagGuardianSet.After, "after", 0, "Expire this long from now")

	cmdGuardianSet.AddCommand(cmdGuardianSetPublish, cmdGuardianSetExpire, cmdGuardianSetShow)
	cmdMain.AddCommand(cmdGuardianSet)
}

func parseIndex(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("guardian set index %q:\n%w", s, err)
	}

	return uint32(v), nil
}

func publishGuardianSet(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	set, err := genesis.GuardianSetConfig{
		Index:        index,
		Keys:         args[1:],
		CreationTime: uint32(time.Now().Unix()),
	}.Set()
	if err != nil {
		return err
	}

	o, err := openOffline(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	addr, err := o.gov.Publish(cmd.Context(), set)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "guardian set %d published at %s (quorum %d of %d)\n", index, addr, set.Quorum(), len(set.Keys))

	return nil
}

func expireGuardianSet(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	var at time.Time
	switch {
	case flagGuardianSet.At != "" && flagGuardianSet.After != 0:
		return fmt.Errorf("--at and --after are exclusive")
	case flagGuardianSet.At != "":
		if at, err = time.Parse(time.RFC3339, flagGuardianSet.At); err != nil {
			return fmt.Errorf("--at:\n%w", err)
		}
	case flagGuardianSet.After != 0:
		at = time.Now().Add(flagGuardianSet.After)
	}

	o, err := openOffline(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	return o.gov.Expire(cmd.Context(), index, at)
}

func showGuardianSet(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	o, err := openOffline(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	set, addr, err := o.gov.Get(cmd.Context(), index)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(api.GuardianSetResponse{
		Index:          set.Index,
		Address:        addr,
		Keys:           set.Keys,
		CreationTime:   set.CreationTime,
		ExpirationTime: set.ExpirationTime,
		Quorum:         set.Quorum(),
	})
}
