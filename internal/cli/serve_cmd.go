// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-stream/internal/observability"
	"github.com/jeranaias/rigrun-stream/internal/server"
)

const shutdownTimeout = 5 * time.Second

func (a *App) serveCmd() *cobra.Command {
	var addr string
	var allowAnyOrigin bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket render server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Clone()
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("allow-any-origin") {
				cfg.Server.AllowAnyOrigin = allowAnyOrigin
			}
			speed, err := cfg.SpeedConfig()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			opts := []server.Option{
				server.WithSpeed(speed),
				server.WithFrameInterval(cfg.FrameInterval()),
				server.WithMetrics(observability.NewMetrics(reg, "rigrun_stream")),
				server.WithLogger(a.logger),
			}
			if cfg.Adaptive() {
				opts = append(opts, server.WithAdaptiveSpeed())
			}
			srv := server.New(cfg.Server, opts...)
			return runServer(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&allowAnyOrigin, "allow-any-origin", false, "Accept WebSocket connections from any origin")
	return cmd
}

// runServer runs srv until ctx is done, then shuts it down gracefully.
func runServer(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
