// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bassosimone/dnsstub"
)

func newServeCommand() *cobra.Command {
	var configPath string
	values := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Forward DNS queries to an upstream resolver.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, configPath, values)
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.StringVar(&values.Listen, "listen", values.Listen, "UDP address to receive queries on")
	flags.StringVar(&values.Resolver, "resolver", values.Resolver, "upstream resolver address (empty: answer with the stub address)")
	flags.DurationVar(&values.PendingTTL, "pending-ttl", values.PendingTTL, "lifetime of a query waiting for upstream answers")
	flags.IntVar(&values.MaxPending, "max-pending", values.MaxPending, "maximum number of queries waiting for upstream answers")
	flags.DurationVar(&values.SweepInterval, "sweep-interval", values.SweepInterval, "interval between sweeps of expired queries")
	flags.StringVar(&values.MetricsAddr, "metrics-addr", values.MetricsAddr, "address serving Prometheus metrics at /metrics (empty: disabled)")
	flags.StringVar(&values.LogLevel, "log-level", values.LogLevel, "log level: debug, info, warn or error")
	return cmd
}

// runServe runs the forwarder until the context is done.
func runServe(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	var upstream net.Addr
	if cfg.Resolver != "" {
		addr, err := net.ResolveUDPAddr("udp", cfg.Resolver)
		if err != nil {
			return err
		}
		upstream = addr
		logger.Info("dnsstub: forwarding queries", "resolver", upstream)
	} else {
		logger.Warn("dnsstub: no resolver configured, answering with the stub address",
			"address", dnsstub.StubAddress)
	}

	conn, err := net.ListenPacket("udp", cfg.Listen)
	if err != nil {
		return err
	}
	defer conn.Close()

	handlerConfig := dnsstub.NewHandlerConfig(upstream)
	handlerConfig.PendingTTL = cfg.PendingTTL
	handlerConfig.MaxPending = cfg.MaxPending
	handlerConfig.Logger = logger
	handler := dnsstub.NewHandler(conn, handlerConfig)

	server := dnsstub.NewServer(conn, handler)
	server.Logger = logger
	server.SweepInterval = cfg.SweepInterval

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Serve(ctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			handler.WritePrometheus(w)
		})
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Go(func() error {
			logger.Info("dnsstub: serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}
