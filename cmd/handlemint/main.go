// Handlemint mints handle names in batches against a commitment on the
// ledger and runs a local development ledger for testing.
//
// Usage:
//
//	handlemint init --network devnet   Write a config file and create the minter key
//	handlemint devnet                  Run the emulator ledger with RPC and faucet
//	handlemint run                     Mint pending orders every batch interval
//	handlemint --help                  Show all commands
package main

import "github.com/Klingon-tech/handlemint/cmd/handlemint/internal/cmd"

func main() {
	cmd.Execute()
}
