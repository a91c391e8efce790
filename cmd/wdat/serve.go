package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/G-Node/wdat2-sub001/bus"
	"github.com/G-Node/wdat2-sub001/config"
	"github.com/G-Node/wdat2-sub001/dataapi"
	"github.com/G-Node/wdat2-sub001/dispatcher"
	"github.com/G-Node/wdat2-sub001/gateway"
	"github.com/G-Node/wdat2-sub001/health"
	"github.com/G-Node/wdat2-sub001/metric"
	"github.com/G-Node/wdat2-sub001/natsclient"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the data API to websocket clients",
		Long: `Serve the data API on the gateway port.

Requests are handled in process (worker.mode inline or worker) or published
to NATS for "wdat worker" processes (worker.mode nats).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := opts.logger(cfg, cmd.OutOrStdout())
			return runServe(cmd.Context(), cfg, logger, opts.ShutdownTimeout)
		},
	}
}

// serveStack holds what runServe starts so it can be stopped in reverse
// order.
type serveStack struct {
	nats    *natsclient.Client
	api     *dataapi.DataAPI
	gateway *gateway.Server
	metrics *metric.Server
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	logger.Info("Starting wdat", "mode", cfg.Worker.Mode, "base_url", cfg.Server.BaseURL)

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(health.WithMetrics(registry))

	stack := &serveStack{}
	if err := stack.start(ctx, cfg, logger, registry, monitor); err != nil {
		stack.stop(logger, shutdownTimeout)
		return err
	}
	logger.Info("wdat started", "gateway_port", cfg.Gateway.Port, "path", cfg.Gateway.Path)

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	if err := stack.stop(logger, shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("wdat shutdown complete")
	return nil
}

func (s *serveStack) start(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
) error {
	d, err := newDispatcher(cfg, logger, registry)
	if err != nil {
		return err
	}

	var client dispatcher.Client
	if cfg.Worker.Mode == config.WorkerModeNATS {
		s.nats, err = connectNATS(ctx, cfg, logger, registry, monitor)
		if err != nil {
			return err
		}
		client = s.nats
	}

	// The worker pool outlives the signal context and is stopped by Close.
	transport, err := newTransport(context.WithoutCancel(ctx), cfg, d, client, logger, registry)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	// Failed replies go to the clients that asked.
	b := bus.New(
		bus.WithLogger(logger),
		bus.WithMetrics(registry),
		bus.WithErrorHook(func(name string, _ any) bool {
			logger.Debug("Delivering error reply", "event", name)
			return true
		}),
	)

	s.api, err = dataapi.New(b, transport, dataapi.WithLogger(logger))
	if err != nil {
		_ = transport.Close(context.Background())
		return fmt.Errorf("create data API: %w", err)
	}

	s.gateway, err = gateway.New(b, s.api,
		gateway.Config{
			Port:      cfg.Gateway.Port,
			Path:      cfg.Gateway.Path,
			RateLimit: cfg.Gateway.RateLimit,
			RateBurst: cfg.Gateway.RateBurst,
		},
		gateway.WithLogger(logger),
		gateway.WithMetrics(registry),
		gateway.WithHealthMonitor(monitor))
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	if err := s.gateway.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	s.metrics, err = startMetrics(cfg, registry, monitor, logger)
	return err
}

// stop shuts down whatever start got running. The first error is returned
// after every part has been stopped.
func (s *serveStack) stop(logger *slog.Logger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var first error
	record := func(what string, err error) {
		if err == nil {
			return
		}
		logger.Error("Shutdown step failed", "step", what, "error", err)
		if first == nil {
			first = fmt.Errorf("%s: %w", what, err)
		}
	}

	if s.gateway != nil {
		record("stop gateway", s.gateway.Stop(timeout))
	}
	if s.api != nil {
		record("close transport", s.api.Close(ctx))
	}
	if s.nats != nil {
		record("close NATS", s.nats.Close(ctx))
	}
	if s.metrics != nil {
		record("stop metrics server", s.metrics.Stop(ctx))
	}
	return first
}
