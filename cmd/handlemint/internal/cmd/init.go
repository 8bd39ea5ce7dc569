package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Klingon-tech/handlemint/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file and the minter key",
	Long: `Create a config file and the minter key

This writes <datadir>/handlemint.toml (or --config) with the defaults of
--network and any flags given, creates the data directories, and
generates the minter key unless --no-key is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		noKey, _ := cmd.Flags().GetBool("no-key")
		return initConfig(force, noKey)
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().Bool("no-key", false, "Do not create the minter key")
}

func initConfig(force, noKey bool) error {
	cfg := config.Default(config.NetworkType(flags.Network))
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	flags.Apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	path := flags.Config
	if path == "" {
		path = cfg.ConfigFile()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteFile(path, cfg); err != nil {
		return err
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return fmt.Errorf("create data dirs: %w", err)
	}
	fmt.Printf("Config:  %s\n", path)
	fmt.Printf("Network: %s\n", cfg.Network)
	fmt.Printf("Data:    %s\n", cfg.NetworkDir())

	if noKey {
		return nil
	}
	ks, err := keystoreFor(cfg)
	if err != nil {
		return err
	}
	if _, err := ks.Info(cfg.Minter.Key); err == nil {
		fmt.Printf("Key %q already exists, keeping it\n", cfg.Minter.Key)
		return nil
	}
	return createKey(ks, cfg.Minter.Key)
}

// confirmPassword reads a passphrase twice and checks both match.
func confirmPassword() ([]byte, error) {
	password, err := readPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	if _, ok := os.LookupEnv(passphraseEnv); ok {
		return password, nil
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(password, confirm) {
		return nil, fmt.Errorf("passwords do not match")
	}
	return password, nil
}
