// Command tierproxy is an Ethereum JSON-RPC relay that sends every call to
// either the full or the archive tier of a node API, depending on how far
// behind the chain head the call reads.
//
// Usage:
//
//	tierproxy serve                      # run the HTTP relay
//	tierproxy route --chain 1 '<json>'   # explain how one request would route
//	tierproxy heads --samples 5          # probe both tiers of every chain
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
	"github.com/dmagro/eth-rpc-tier-router/internal/output"
)

var build = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tierproxy",
		Short:         "Ethereum JSON-RPC relay with full/archive node tier routing",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !output.IsTerminal() {
				output.DisableColors()
			}
			return config.LoadEnv()
		},
	}

	root.PersistentFlags().String("config", "config/router.yaml", "Path to configuration file")

	root.AddCommand(serveCmd())
	root.AddCommand(routeCmd())
	root.AddCommand(headsCmd())

	return root
}
