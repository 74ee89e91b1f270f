package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmagro/eth-rpc-tier-router/internal/proxy"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON-RPC relay",
		Long: `Start the HTTP relay.

Requests are accepted on POST /rpc?chainId=N. Calls that read state older
than the archive threshold go to the archive tier, everything else to the
full tier. GET /health and the metrics path are served alongside.

Example:
  tierproxy serve --config config/router.yaml
  tierproxy serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			a, err := buildApp(cfg, true)
			if err != nil {
				return err
			}
			return runServe(a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.address)")

	return cmd
}

func runServe(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := proxy.New(proxy.Opts{
		Router:         a.router,
		Backend:        a.backend,
		Normalizer:     a.normalizer,
		Metrics:        a.metrics,
		Logger:         a.logger,
		DefaultChainID: a.cfg.Server.DefaultChainID,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		MetricsPath:    a.cfg.Server.MetricsPath,
	})

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting tier proxy",
			"build", build,
			"address", a.cfg.Server.Address,
			"default_chain_id", a.cfg.Server.DefaultChainID,
			"chains", a.cfg.ChainIDs(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown timeout exceeded", "error", err)
		return err
	}

	a.logger.Info("tier proxy stopped")
	return nil
}
