package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/G-Node/wdat2-sub001/config"
	"github.com/G-Node/wdat2-sub001/dispatcher"
	"github.com/G-Node/wdat2-sub001/health"
	"github.com/G-Node/wdat2-sub001/metric"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Answer requests published on NATS",
		Long: `Run a dispatcher that takes requests from the NATS request subject and
publishes each reply to the subject the request names.

Start as many workers as needed next to "wdat serve" with worker.mode nats.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := opts.logger(cfg, cmd.OutOrStdout())
			return runWorker(cmd.Context(), cfg, logger, opts.ShutdownTimeout)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(health.WithMetrics(registry))

	d, err := newDispatcher(cfg, logger, registry)
	if err != nil {
		return err
	}

	nc, err := connectNATS(ctx, cfg, logger, registry, monitor)
	if err != nil {
		return err
	}
	closeNATS := func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return nc.Close(closeCtx)
	}

	if err := dispatcher.ServeNATS(ctx, nc, d,
		dispatcher.WithTransportLogger(logger),
		dispatcher.WithSubjectPrefix(cfg.NATS.SubjectPrefix)); err != nil {
		_ = closeNATS()
		return fmt.Errorf("serve requests: %w", err)
	}

	metricsServer, err := startMetrics(cfg, registry, monitor, logger)
	if err != nil {
		_ = closeNATS()
		return err
	}
	logger.Info("Worker started", "subject", dispatcher.RequestSubject(cfg.NATS.SubjectPrefix))

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	// Draining lets requests in flight publish their replies.
	if err := closeNATS(); err != nil {
		return fmt.Errorf("close NATS: %w", err)
	}
	if metricsServer != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Stop(stopCtx); err != nil {
			return fmt.Errorf("stop metrics server: %w", err)
		}
	}
	logger.Info("Worker shutdown complete")
	return nil
}
