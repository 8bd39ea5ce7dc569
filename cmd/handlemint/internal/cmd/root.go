// Package cmd implements the handlemint command line.
package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/Klingon-tech/handlemint/config"
	"github.com/Klingon-tech/handlemint/internal/node"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passphraseEnv overrides the interactive passphrase prompt.
const passphraseEnv = "HANDLEMINT_PASSPHRASE"

var flags config.Flags

// RootCmd represents the base "handlemint" command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "handlemint",
	Short: "Batch minter for handle names",
	Long: `handlemint collects mint orders from the ledger, proves each name
against an authenticated index, and submits one transaction per batch
that mints the handles and moves the on-chain commitment to the new root.`,
	SilenceUsage: true,
}

func init() {
	flags.Register(RootCmd.PersistentFlags())
}

// Execute adds all subcommands to the RootCmd and sets their flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves defaults, the config file and the flags.
func loadConfig() (*config.Config, error) {
	return config.Load(&flags)
}

// openNode loads the configuration and builds a node without starting it.
func openNode() (*node.Node, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return node.New(cfg)
}

// readPassword reads a passphrase from the environment or the terminal.
func readPassword(prompt string) ([]byte, error) {
	if p, ok := os.LookupEnv(passphraseEnv); ok {
		return []byte(p), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
