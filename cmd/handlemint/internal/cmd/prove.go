package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/handle"
	"github.com/spf13/cobra"
)

var proveCmd = &cobra.Command{
	Use:   "prove <name>",
	Short: "Print a proof of a name against the index root",
	Long: `Print a proof of a name against the index root

For a minted name the proof shows membership; for a free name it is the
proof an insert of that name would carry. The proof is printed as
hex-encoded CBOR of its on-chain form.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := []byte(args[0])
		n, err := openNode()
		if err != nil {
			return err
		}
		defer n.Stop()
		idx, err := n.Index()
		if err != nil {
			return err
		}
		proof, err := idx.Prove(name)
		if err != nil {
			return err
		}
		b, err := codec.MarshalProof(proof)
		if err != nil {
			return err
		}

		root := idx.Root()
		fmt.Printf("Name:   %s\n", name)
		fmt.Printf("Root:   %s\n", root)
		if idx.Has(name) {
			if err := proof.VerifyMembership(root, name, handle.IndexValue); err != nil {
				return fmt.Errorf("proof does not verify: %w", err)
			}
			fmt.Println("Member: yes")
		} else {
			fmt.Println("Member: no")
		}
		fmt.Printf("Steps:  %d\n", len(proof))
		fmt.Printf("Proof:  %s\n", hex.EncodeToString(b))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(proveCmd)
}
