package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
	"github.com/dmagro/eth-rpc-tier-router/internal/fanout"
	"github.com/dmagro/eth-rpc-tier-router/internal/output"
	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
	"github.com/dmagro/eth-rpc-tier-router/internal/stats"
)

func headsCmd() *cobra.Command {
	var (
		samples     int
		concurrency int
		format      string
	)

	cmd := &cobra.Command{
		Use:   "heads",
		Short: "Probe the chain head on both tiers of every chain",
		Long: `Query eth_blockNumber on the full and archive tier of every configured
chain, concurrently, and report latency, success rate and how far the
archive tier trails the full tier.

This is useful for:
- Checking credentials and endpoints before serving traffic
- Spotting an archive tier that lags behind

Example:
  tierproxy heads
  tierproxy heads --samples 10 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("samples") {
				samples = cfg.Defaults.HealthSamples
			}
			a, err := buildApp(cfg, false)
			if err != nil {
				return err
			}
			return runHeads(cmd.Context(), cmd.OutOrStdout(), a, samples, concurrency, format)
		},
	}

	cmd.Flags().IntVar(&samples, "samples", 0, "Samples per tier (default defaults.health_samples)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Chains probed at once (0 = all)")
	cmd.Flags().StringVar(&format, "format", "terminal", "Output format: terminal|json")

	return cmd
}

// probedChains lists the configured chains, or the default chain alone when
// only upstream.base_url is set.
func probedChains(cfg *config.Config) []config.Chain {
	if len(cfg.Chains) > 0 {
		return cfg.Chains
	}
	id := cfg.Server.DefaultChainID
	return []config.Chain{{ID: id, Name: fmt.Sprintf("chain-%d", id)}}
}

func runHeads(ctx context.Context, w io.Writer, a *app, samples, concurrency int, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if samples <= 0 {
		samples = 1
	}

	results := fanout.Limit(ctx, concurrency, probedChains(a.cfg), func(ctx context.Context, ch config.Chain) (output.ChainHeads, error) {
		out := output.ChainHeads{ChainID: ch.ID, Name: ch.Name}
		if !a.backend.Supports(ch.ID) {
			return out, fmt.Errorf("chain %d is not configured", ch.ID)
		}
		if endpoint, err := a.backend.Endpoint(ch.ID, routing.TierFull); err == nil {
			out.Endpoint = endpoint
		}

		out.Full = stats.Summarize(probeTier(ctx, a, ch.ID, routing.TierFull, samples))
		out.Archive = stats.Summarize(probeTier(ctx, a, ch.ID, routing.TierArchive, samples))
		out.Drift = stats.CompareHeads(out.Full.HighestBlock, out.Archive.HighestBlock)
		return out, nil
	})

	report := &output.HeadsReport{Timestamp: time.Now(), Samples: samples}
	for _, r := range results {
		heads := r.Value
		if r.Err != nil {
			heads.ChainID, heads.Name = r.Chain.ID, r.Chain.Name
			heads.Error = r.Err.Error()
		}
		report.Chains = append(report.Chains, heads)
	}

	if format == "json" {
		output.DisableColors()
		return output.RenderJSON(w, report)
	}

	output.RenderHeadsTerminal(w, report)
	return nil
}

// probeTier calls eth_blockNumber samples times in sequence.
func probeTier(ctx context.Context, a *app, chainID uint64, tier routing.NodeTier, samples int) []stats.Sample {
	out := make([]stats.Sample, 0, samples)
	for i := 0; i < samples; i++ {
		if ctx.Err() != nil {
			out = append(out, stats.Sample{Err: ctx.Err()})
			continue
		}

		start := time.Now()
		resp, err := a.backend.Call(ctx, chainID, tier, "eth_blockNumber")
		s := stats.Sample{Latency: time.Since(start), Err: err}
		if err == nil {
			s.Block, s.Err = decodeHead(resp)
		}
		out = append(out, s)
	}
	return out
}

func decodeHead(resp *rpc.Response) (uint64, error) {
	var hexStr string
	if err := json.Unmarshal(resp.Result, &hexStr); err != nil {
		return 0, fmt.Errorf("decode block number: %w", err)
	}
	return rpc.ParseQuantity(hexStr)
}
