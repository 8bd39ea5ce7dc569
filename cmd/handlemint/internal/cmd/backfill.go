package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill <name>...",
	Short: "Commit names to the ledger root without minting them",
	Long: `Commit names to the ledger root without minting them

Inserts the names into the index and submits a transaction that only
moves the commitment to the new root. Use it for names whose handles
exist already, e.g. from an earlier deployment.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names := make([][]byte, len(args))
		for i, a := range args {
			names[i] = []byte(a)
		}

		n, err := openNode()
		if err != nil {
			return err
		}
		defer n.Stop()
		password, err := readPassword("Minter password: ")
		if err != nil {
			return err
		}
		key, err := n.UnlockMinter(password)
		if err != nil {
			return err
		}
		if err := n.Start(); err != nil {
			return err
		}
		orch, err := n.Orchestrator(key)
		if err != nil {
			return err
		}
		s, err := orch.Backfill(context.Background(), names)
		if err != nil {
			return err
		}
		fmt.Printf("Backfilled: %d names\n", len(names))
		fmt.Printf("Root:       %s\n", s.NewRecord.Root)
		if n.Config().Batch.DryRun {
			fmt.Println("Dry run, not submitted.")
			return nil
		}
		fmt.Printf("Tx:         %s\n", s.TxHash)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(backfillCmd)
}
