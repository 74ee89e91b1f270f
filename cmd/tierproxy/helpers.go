package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
	applog "github.com/dmagro/eth-rpc-tier-router/internal/log"
	"github.com/dmagro/eth-rpc-tier-router/internal/metrics"
	"github.com/dmagro/eth-rpc-tier-router/internal/normalize"
	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
	"github.com/dmagro/eth-rpc-tier-router/internal/upstream"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	backend    *upstream.Backend
	resolver   *routing.Resolver
	classifier *routing.Classifier
	router     *routing.Router
	normalizer *normalize.Normalizer
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath, _ = cmd.Root().PersistentFlags().GetString("config")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// buildApp wires config into the routing stack. Metrics are only created for
// the long-running server.
func buildApp(cfg *config.Config, withMetrics bool) (*app, error) {
	a := &app{cfg: cfg, logger: applog.NewLogger(cfg.Log)}

	var backendOpts []upstream.Option
	var observer routing.Observer
	if withMetrics {
		a.metrics = metrics.New()
		backendOpts = append(backendOpts, upstream.WithRecorder(a.metrics))
		observer = a.metrics
	}
	a.backend = upstream.New(cfg, backendOpts...)

	def, perChain := buildPolicies(cfg)
	a.classifier = routing.NewClassifier(def, perChain)

	a.resolver = routing.NewResolver(a.backend,
		routing.WithSentinel(cfg.Routing.SentinelHead),
		routing.WithLogger(a.logger.With("component", "resolver")),
	)

	rules, err := normalizeRules(cfg.Routing.Normalize)
	if err != nil {
		return nil, err
	}
	a.normalizer = normalize.New(rules)

	a.router = routing.NewRouter(routing.RouterOpts{
		Resolver:     a.resolver,
		Classifier:   a.classifier,
		Observer:     observer,
		Logger:       a.logger.With("component", "router"),
		KnownMethods: a.normalizer.Methods(),
	})

	return a, nil
}

// buildPolicies turns the routing section and per-chain overrides into
// classifier policies. Chains without overrides use the default policy.
func buildPolicies(cfg *config.Config) (routing.Policy, map[uint64]routing.Policy) {
	def := routing.DefaultPolicy()
	if cfg.Routing.ArchiveThreshold != nil {
		def.ArchiveThreshold = *cfg.Routing.ArchiveThreshold
	}
	if len(cfg.Routing.HistoricalMethods) > 0 {
		def.Methods = methodTable(cfg.Routing.HistoricalMethods)
	}

	perChain := make(map[uint64]routing.Policy)
	for _, ch := range cfg.Chains {
		if ch.ArchiveThreshold == nil && len(ch.HistoricalMethods) == 0 {
			continue
		}
		p := routing.Policy{ArchiveThreshold: def.ArchiveThreshold, Methods: def.Methods}
		if ch.ArchiveThreshold != nil {
			p.ArchiveThreshold = *ch.ArchiveThreshold
		}
		if len(ch.HistoricalMethods) > 0 {
			p.Methods = methodTable(ch.HistoricalMethods)
		}
		perChain[ch.ID] = p
	}

	return def, perChain
}

func methodTable(rules map[string]config.MethodRule) routing.MethodTable {
	t := make(routing.MethodTable, len(rules))
	for method, r := range rules {
		t[method] = routing.BlockParam{Index: r.BlockParam, CallObject: r.CallObject}
	}
	return t
}

// normalizeRules returns nil (the defaults) when nothing is configured.
func normalizeRules(raw map[string]string) (normalize.Rules, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	rules := make(normalize.Rules, len(raw))
	for method, kind := range raw {
		k, err := normalize.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("routing.normalize.%s: %w", method, err)
		}
		rules[method] = k
	}
	return rules, nil
}
