package cmd

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/handlemint/internal/codec"
	"github.com/Klingon-tech/handlemint/internal/fees"
	"github.com/Klingon-tech/handlemint/internal/handle"
	"github.com/Klingon-tech/handlemint/internal/rpc"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/spf13/cobra"
)

var orderCmd = &cobra.Command{
	Use:   "order <name>",
	Short: "Place a mint order on a development ledger",
	Long: `Place a mint order on a development ledger

The order is created by the ledger's faucet, so this only works against
the emulator: locally, or a running 'handlemint devnet' reached with
--ledger rpc. Owner and destination default to the minter key; the
amount defaults to the configured price plus the minimum output value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerHex, _ := cmd.Flags().GetString("owner")
		to, _ := cmd.Flags().GetString("to")
		amount, _ := cmd.Flags().GetString("amount")
		return placeOrder([]byte(args[0]), ownerHex, to, amount)
	},
}

func init() {
	RootCmd.AddCommand(orderCmd)
	orderCmd.Flags().String("owner", "", "Owner key hash (hex)")
	orderCmd.Flags().String("to", "", "Destination address for the handle")
	orderCmd.Flags().String("amount", "", "ADA locked in the order, e.g. 11.5")
}

func placeOrder(name []byte, ownerHex, to, amount string) error {
	if err := handle.ValidateName(name); err != nil {
		return err
	}
	n, err := openNode()
	if err != nil {
		return err
	}
	defer n.Stop()
	cfg := n.Config()
	ctx := context.Background()

	faucet, ok := n.Ledger().(rpc.Faucet)
	if !ok {
		return fmt.Errorf("ledger backend %q cannot place orders", cfg.Ledger.Backend)
	}

	req := codec.MintRequest{Name: name}
	if ownerHex == "" || to == "" {
		ks, err := keystoreFor(cfg)
		if err != nil {
			return err
		}
		info, err := ks.Info(cfg.Minter.Key)
		if err != nil {
			return fmt.Errorf("pass --owner and --to, or create key %q: %w", cfg.Minter.Key, err)
		}
		req.Owner, req.Destination = info.KeyHash, info.Address
	}
	if ownerHex != "" {
		if req.Owner, err = types.HexToHash28(ownerHex); err != nil {
			return fmt.Errorf("--owner: %w", err)
		}
	}
	if to != "" {
		if req.Destination, err = types.ParseAddress(to); err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}

	var lovelace uint64
	if amount != "" {
		if lovelace, err = fees.ParseLovelace(amount); err != nil {
			return err
		}
	} else {
		params, err := n.Ledger().Params(ctx)
		if err != nil {
			return err
		}
		lovelace = cfg.Protocol.Fees.Price(name) + params.MinUTxO
	}

	op, err := faucet.PlaceOrder(ctx, req, lovelace)
	if err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	fmt.Printf("Order:   %s\n", op)
	fmt.Printf("Name:    %s\n", name)
	fmt.Printf("Locked:  %s\n", fees.FormatLovelace(lovelace))
	fmt.Printf("To:      %s\n", req.Destination)
	return nil
}
