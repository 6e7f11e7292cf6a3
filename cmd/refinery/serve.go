package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/refinery/internal/agent"
	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/mcptools"
	"github.com/dusk-indust/refinery/internal/orchestrator"
	"github.com/dusk-indust/refinery/internal/refinery"
)

func newServeCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run refinery as a long-lived server",
	}
	cmd.AddCommand(newServeMCPCommand(flags), newServeAgentCommand(flags))
	return cmd
}

func newServeMCPCommand(flags *cliFlags) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose refinery tools over the Model Context Protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, logger, stop, err := buildService(ctx, flags)
			if err != nil {
				return err
			}
			defer stop()

			server := mcptools.NewRefineryMCPServer(svc)
			if httpAddr == "" {
				return mcptools.RunMCPServerStdio(ctx, server)
			}
			logger.Info("serving MCP over HTTP", "addr", httpAddr)
			return mcptools.RunMCPServerHTTP(ctx, server, httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

func newServeAgentCommand(flags *cliFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Expose refinery as an A2A agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, logger, stop, err := buildService(ctx, flags)
			if err != nil {
				return err
			}
			defer stop()

			reg := agent.NewRegistry()
			reg.Register(agent.RoleRefinery, func() agent.Agent { return agent.NewRefinementAgent(svc, logger) })
			ag, err := reg.Spawn(agent.RoleRefinery)
			if err != nil {
				return err
			}
			if err := ag.Start(ctx, addr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s A2A agent %q listening on %s\n", green("●"), ag.Card().Name, addr)

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return reg.StopAll(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9100", "listen address")
	return cmd
}

// buildService wires the configured service plus the metrics endpoint. The
// returned stop function releases both.
func buildService(ctx context.Context, flags *cliFlags) (*refinery.Service, *slog.Logger, func(), error) {
	pc, err := loadConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(pc.Verbose)
	svc, err := refinery.FromConfig(ctx, pc, gate.LogLedger{Logger: logger}, logger,
		orchestrator.WithLogger(logger),
		orchestrator.WithObserver(orchestrator.NewLogObserver(logger)),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	stopMetrics := serveMetrics(ctx, pc.MetricsAddr, logger)
	return svc, logger, func() {
		stopMetrics()
		_ = svc.Close()
	}, nil
}

// serveMetrics exposes the default Prometheus registry on addr when set.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
