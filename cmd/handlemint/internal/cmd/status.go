package cmd

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/batch"
	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/Klingon-tech/handlemint/internal/node"
	"github.com/Klingon-tech/handlemint/internal/utxo"
	"github.com/Klingon-tech/handlemint/internal/wallet"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the commitment, the local index and pending orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}
		defer n.Stop()
		ctx := context.Background()

		fmt.Printf("Network:     %s\n", n.Config().Network)
		fmt.Printf("State asset: %s\n", n.StateAsset().Unit())

		idx, err := n.Index()
		if err != nil {
			return err
		}
		fmt.Printf("Index:       %s (%d names)\n", idx.Root(), idx.Len())

		u, record, err := commitment(ctx, n)
		if err != nil {
			fmt.Printf("Commitment:  unavailable: %v\n", err)
		} else {
			sync := "in sync"
			if record.Root != idx.Root() {
				sync = "MISMATCH"
			}
			fmt.Printf("Commitment:  %s\n", u.Outpoint)
			fmt.Printf("Root:        %s (%s)\n", record.Root, sync)
			fmt.Printf("Minters:     %d\n", len(record.Governance.AllowedMinters))
		}

		if em := n.Emulator(); em != nil {
			if digest, err := em.Digest(); err == nil {
				fmt.Printf("Ledger:      %s\n", digest)
			}
		}
		printMinterBalance(ctx, n)

		pending, err := batch.Pending(ctx, n.Ledger(), n.Registry())
		if err != nil {
			return err
		}
		fmt.Printf("Pending:     %d\n", len(pending))
		for _, o := range pending {
			taken := ""
			if idx.Has(o.Request.Name) {
				taken = " (taken)"
			}
			fmt.Printf("  %-16s %s  %s%s\n", o.Request.Name, fees.FormatLovelace(o.UTXO.Output.Value), o.UTXO.Outpoint, taken)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

// commitment reads the output holding the state asset and its record.
func commitment(ctx context.Context, n *node.Node) (*utxo.UTXO, codec.CommitmentRecord, error) {
	held, err := n.Ledger().UTXOsWithAsset(ctx, n.StateAsset())
	if err != nil {
		return nil, codec.CommitmentRecord{}, err
	}
	if len(held) != 1 {
		return nil, codec.CommitmentRecord{}, fmt.Errorf("%d outputs hold the state asset", len(held))
	}
	record, err := codec.UnmarshalCommitmentRecord(held[0].Output.Datum)
	if err != nil {
		return nil, codec.CommitmentRecord{}, err
	}
	return held[0], record, nil
}

// printMinterBalance shows the funds of the configured minter key, if any.
func printMinterBalance(ctx context.Context, n *node.Node) {
	ks, err := n.Keystore()
	if err != nil {
		return
	}
	info, err := ks.Info(n.Config().Minter.Key)
	if err != nil {
		return
	}
	held, err := n.Ledger().UTXOsAt(ctx, info.Address)
	if err != nil {
		fmt.Printf("Minter:      %s (balance unavailable: %v)\n", info.Address, err)
		return
	}
	b := wallet.Summarize(held)
	fmt.Printf("Minter:      %s\n", info.Address)
	fmt.Printf("Balance:     %s (%s spendable in %d coins)\n",
		fees.FormatLovelace(b.Lovelace), fees.FormatLovelace(b.Spendable), b.Coins)
}
