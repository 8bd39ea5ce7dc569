package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/batch"
	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/spf13/cobra"
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Run a single batch",
	Long: `Run a single batch

Collects the pending orders, mints every acceptable one in one
transaction and prints the outcome. With --dry-run the transaction is
assembled and printed but neither submitted nor committed to the index.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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
		s, err := orch.Run(context.Background())
		if errors.Is(err, batch.ErrNothingToMint) {
			fmt.Println("Nothing to mint.")
			printRejections(s)
			return nil
		}
		if err != nil {
			return err
		}
		printBatch(s, n.Config().Batch.DryRun)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(mintCmd)
}

func printBatch(s *batch.State, dryRun bool) {
	schedule := s.Record.Governance.Schedule()
	fmt.Printf("Minted:  %d\n", len(s.Accepted))
	for _, a := range s.Accepted {
		fmt.Printf("  %-16s %s -> %s\n", a.Request.Name, fees.FormatLovelace(schedule.Price(a.Request.Name)), a.Request.Destination)
	}
	printRejections(s)
	if s.Candidate != nil {
		fmt.Printf("Fee:     %s\n", fees.FormatLovelace(s.Candidate.Fee))
	}
	fmt.Printf("Root:    %s\n", s.NewRecord.Root)
	if dryRun {
		fmt.Println("Dry run, not submitted:")
		if s.Candidate != nil {
			fmt.Println(s.Candidate.Dump)
		}
		return
	}
	fmt.Printf("Tx:      %s\n", s.TxHash)
}

func printRejections(s *batch.State) {
	if s == nil || len(s.Rejected) == 0 {
		return
	}
	fmt.Printf("Rejected: %d\n", len(s.Rejected))
	for _, r := range s.Rejected {
		line := fmt.Sprintf("  %-16s %s", r.Order.Request.Name, r.Reason)
		if r.Err != nil {
			line += ": " + r.Err.Error()
		}
		fmt.Println(line)
	}
}
