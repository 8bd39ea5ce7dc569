package cmd

import (
	"fmt"
	"runtime"

	"github.com/Klingon-tech/handlemint/internal/p2p"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of handlemint",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("handlemint v%s\n", Version)
		fmt.Printf("  p2p protocol: %d\n", p2p.ProtocolVersion)
		fmt.Printf("  go:           %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
