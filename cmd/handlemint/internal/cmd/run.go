package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mint pending orders every batch interval",
	Long: `Mint pending orders every batch interval

The minter key is unlocked once (from $HANDLEMINT_PASSPHRASE or a prompt).
The loop stops on SIGINT/SIGTERM, or when the index root and the
on-chain commitment disagree; resolve that with 'handlemint index' or
'handlemint backfill' before restarting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}
		password, err := readPassword("Minter password: ")
		if err != nil {
			n.Stop()
			return err
		}
		key, err := n.UnlockMinter(password)
		if err != nil {
			n.Stop()
			return err
		}
		if err := n.Start(); err != nil {
			n.Stop()
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = n.Loop(ctx, key)
		n.Stop()
		return err
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
}
