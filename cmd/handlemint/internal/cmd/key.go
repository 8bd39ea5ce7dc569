package cmd

import (
	"fmt"

	"github.com/Klingon-tech/handlemint/config"
	"github.com/Klingon-tech/handlemint/internal/wallet"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage minter keys",
}

var keyNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Generate a minter key from a new mnemonic",
	Long: `Generate a minter key from a new mnemonic

Without a name the key is stored under minter.key from the config. Pass
--mnemonic to restore an existing 24-word phrase instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ks, err := keystoreFor(cfg)
		if err != nil {
			return err
		}
		name := cfg.Minter.Key
		if len(args) == 1 {
			name = args[0]
		}
		mnemonic, _ := cmd.Flags().GetString("mnemonic")
		if mnemonic != "" {
			return importKey(ks, name, mnemonic)
		}
		return createKey(ks, name)
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a key's address and key hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ks, err := keystoreFor(cfg)
		if err != nil {
			return err
		}
		name := cfg.Minter.Key
		if len(args) == 1 {
			name = args[0]
		}
		info, err := ks.Info(name)
		if err != nil {
			return fmt.Errorf("key %q: %w", name, err)
		}
		printKeyInfo(info)
		return nil
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ks, err := keystoreFor(cfg)
		if err != nil {
			return err
		}
		names, err := ks.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No keys.")
			return nil
		}
		for _, name := range names {
			info, err := ks.Info(name)
			if err != nil {
				fmt.Printf("  %s (unreadable: %v)\n", name, err)
				continue
			}
			fmt.Printf("  %-12s %s\n", name, info.Address)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyNewCmd, keyShowCmd, keyListCmd)
	keyNewCmd.Flags().String("mnemonic", "", "Restore from a BIP-39 mnemonic instead of generating one")
}

func keystoreFor(cfg *config.Config) (*wallet.Keystore, error) {
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	return ks, nil
}

func createKey(ks *wallet.Keystore, name string) error {
	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return fmt.Errorf("generate mnemonic: %w", err)
	}
	fmt.Println("Write down this mnemonic. It is the only way to recover the key:")
	fmt.Printf("\n  %s\n\n", mnemonic)
	return importKey(ks, name, mnemonic)
}

func importKey(ks *wallet.Keystore, name, mnemonic string) error {
	if !wallet.ValidateMnemonic(mnemonic) {
		return fmt.Errorf("invalid mnemonic")
	}
	password, err := confirmPassword()
	if err != nil {
		return err
	}
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return err
	}
	info, err := ks.Create(name, seed, password, wallet.DefaultParams(), 0, 0)
	if err != nil {
		return fmt.Errorf("create key %q: %w", name, err)
	}
	fmt.Println("Key created.")
	printKeyInfo(info)
	return nil
}

func printKeyInfo(info *wallet.KeyInfo) {
	fmt.Printf("Name:     %s\n", info.Name)
	fmt.Printf("Address:  %s\n", info.Address)
	fmt.Printf("Key hash: %s\n", info.KeyHash)
	fmt.Printf("Path:     m/44'/1815'/%d'/0/%d\n", info.Account, info.Index)
}
