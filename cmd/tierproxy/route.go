package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-rpc-tier-router/internal/output"
	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

func routeCmd() *cobra.Command {
	var (
		chainID uint64
		head    uint64
		format  string
	)

	cmd := &cobra.Command{
		Use:   "route <request-json|->",
		Short: "Explain which node tier would serve a request",
		Long: `Classify one JSON-RPC request and print the routing decision.

The chain head is fetched from the full tier unless --head pins it, in which
case no network call is made. Pass - to read the request from stdin.

Example:
  tierproxy route --chain 1 '{"jsonrpc":"2.0","id":1,"method":"eth_getBalance","params":["0xabc","0x64"]}'
  tierproxy route --head 300 --format json - < request.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, false)
			if err != nil {
				return err
			}

			body, err := readRequestArg(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			if chainID == 0 {
				chainID = cfg.Server.DefaultChainID
			}

			router := a.router
			if cmd.Flags().Changed("head") {
				router = routing.NewRouter(routing.RouterOpts{
					Resolver:   routing.FixedResolver{Head: head, Sentinel: a.resolver.Sentinel()},
					Classifier: a.classifier,
					Logger:     a.logger,
				})
			}

			return runRoute(cmd.Context(), cmd.OutOrStdout(), a, router, body, chainID, format)
		},
	}

	cmd.Flags().Uint64Var(&chainID, "chain", 0, "Chain id (default server.default_chain_id)")
	cmd.Flags().Uint64Var(&head, "head", 0, "Pin the chain head instead of fetching it")
	cmd.Flags().StringVar(&format, "format", "terminal", "Output format: terminal|json")

	return cmd
}

func readRequestArg(stdin io.Reader, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read request from stdin: %w", err)
	}
	return data, nil
}

func runRoute(ctx context.Context, w io.Writer, a *app, router *routing.Router, body []byte, chainID uint64, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := rpc.DecodeRequest([]byte(strings.TrimSpace(string(body))))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Defaults.Timeout)
	defer cancel()

	decision, err := router.Route(ctx, req, chainID)
	if err != nil {
		return err
	}

	report := &output.RouteReport{ChainID: chainID, Method: req.Method, Decision: decision}
	if endpoint, err := a.backend.Endpoint(chainID, decision.Tier); err == nil {
		report.Endpoint = endpoint
	}

	if format == "json" {
		output.DisableColors()
		return output.RenderJSON(w, report)
	}

	output.RenderRouteTerminal(w, report)
	return nil
}
