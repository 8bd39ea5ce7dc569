package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and repair the local index",
	Long: `Inspect and repair the local index

The index must commit to the same root as the ledger before a batch can
run. These commands change only the local copy; use them to recover
from a batch that was committed locally but never landed on chain.`,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed names",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}
		defer n.Stop()
		idx, err := n.Index()
		if err != nil {
			return err
		}
		fmt.Printf("Root:  %s\n", idx.Root())
		fmt.Printf("Names: %d\n", idx.Len())
		for _, name := range idx.Names() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete <name>...",
	Short: "Remove names from the local index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}
		defer n.Stop()
		idx, err := n.Index()
		if err != nil {
			return err
		}
		for _, name := range args {
			if err := idx.Delete([]byte(name)); err != nil {
				return fmt.Errorf("delete %q: %w", name, err)
			}
			fmt.Printf("Deleted %s\n", name)
		}
		fmt.Printf("Root:  %s\n", idx.Root())
		return nil
	},
}

var indexRevertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Undo the last committed batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}
		defer n.Stop()
		idx, err := n.Index()
		if err != nil {
			return err
		}
		names, err := idx.Revert()
		if err != nil {
			return err
		}
		fmt.Printf("Reverted %d names\n", len(names))
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		fmt.Printf("Root:  %s\n", idx.Root())
		return nil
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexListCmd, indexDeleteCmd, indexRevertCmd)
}
