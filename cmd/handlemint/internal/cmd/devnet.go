package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/handlemint/config"
	"github.com/Klingon-tech/handlemint/internal/ledger/emulator"
	"github.com/Klingon-tech/handlemint/internal/node"
	"github.com/Klingon-tech/handlemint/internal/scripts"
	"github.com/Klingon-tech/handlemint/pkg/types"
	"github.com/spf13/cobra"
)

var devnetCmd = &cobra.Command{
	Use:   "devnet",
	Short: "Run a development ledger",
	Long: `Run a development ledger

The emulator is deployed on first start: the commitment output, the
reference scripts and funds for every minter. Minters come from
protocol.minters, --minter, or the local minter key in that order. The
ledger is then served over JSON-RPC until interrupted.

Use --network devnet, or set ledger.backend = "emulator" in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hexes, _ := cmd.Flags().GetStringSlice("minter")
		return runDevnet(hexes)
	},
}

func init() {
	RootCmd.AddCommand(devnetCmd)
	devnetCmd.Flags().StringSlice("minter", nil, "Minter key hash (hex) to authorize; repeatable")
}

func runDevnet(hexes []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Ledger.Backend != config.LedgerEmulator {
		return fmt.Errorf("devnet needs ledger.backend = %q (try --network devnet)", config.LedgerEmulator)
	}
	minters, err := devnetMinters(cfg, hexes)
	if err != nil {
		return err
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	g, err := n.Deploy(context.Background(), minters...)
	switch {
	case errors.Is(err, emulator.ErrAlreadyDeployed):
		fmt.Println("Ledger already deployed.")
	case err != nil:
		n.Stop()
		return err
	default:
		printGenesis(g)
	}

	if err := n.Start(); err != nil {
		n.Stop()
		return err
	}
	fmt.Printf("State asset: %s\n", n.StateAsset().Unit())
	if addr := n.RPCAddr(); addr != "" {
		fmt.Printf("RPC:         http://%s\n", addr)
	}
	if p := n.P2P(); p != nil {
		for _, a := range p.Addrs() {
			fmt.Printf("P2P:         %s\n", a)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
	return nil
}

func devnetMinters(cfg *config.Config, hexes []string) ([]types.Hash28, error) {
	if len(cfg.Protocol.Minters) > 0 {
		return nil, nil
	}
	var minters []types.Hash28
	for _, h := range hexes {
		kh, err := types.HexToHash28(h)
		if err != nil {
			return nil, fmt.Errorf("--minter %q: %w", h, err)
		}
		minters = append(minters, kh)
	}
	if len(minters) > 0 {
		return minters, nil
	}
	ks, err := keystoreFor(cfg)
	if err != nil {
		return nil, err
	}
	info, err := ks.Info(cfg.Minter.Key)
	if err != nil {
		return nil, fmt.Errorf("no minters: set protocol.minters, pass --minter, or run 'handlemint key new' (%w)", err)
	}
	return []types.Hash28{info.KeyHash}, nil
}

func printGenesis(g *emulator.Genesis) {
	fmt.Println("Ledger deployed.")
	fmt.Printf("  Seed:       %s\n", g.Deployment.Seed)
	fmt.Printf("  Commitment: %s\n", g.State)
	fmt.Printf("  Root:       %s\n", g.Record.Root)
	for _, role := range scripts.Roles {
		if ref, ok := g.Refs[role]; ok {
			fmt.Printf("  %-10s  %s @ %s\n", role, ref.Hash, ref.Outpoint)
		}
	}
	for _, m := range g.Record.Governance.AllowedMinters {
		fmt.Printf("  Minter:     %s\n", types.KeyAddress(m))
	}
}
