package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"mycbr/internal/logging"
	mcpserver "mycbr/internal/mcp"
	"mycbr/internal/metrics"
)

func (a *app) mcpCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve CBR tools to an MCP client over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing schema listing, retrieval
and self-similarity tools backed by the configured CBR server.

The server exits when its parent process goes away. With --metrics-addr,
client request metrics are served in Prometheus format at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			logger := logging.New("mcp")

			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				a.metrics = metrics.New(reg)
				stop := serveMetrics(ctx, metricsAddr, reg)
				defer stop()
				logger.Info("serving metrics", "addr", metricsAddr)
			}

			c, err := a.cbrClient(ctx)
			if err != nil {
				return err
			}
			srv := mcpserver.NewServer(c, version)
			mcpserver.WatchParent(ctx, cancel)

			logger.Info("starting mycbr MCP server over stdio", "base_url", c.BaseURL(), "concept", c.Defaults().Concept())
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	return cmd
}

// serveMetrics starts a /metrics endpoint and returns a function that shuts it down.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.New("metrics").ErrorContext(ctx, "metrics server stopped", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
