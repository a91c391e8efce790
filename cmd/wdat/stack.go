package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/G-Node/wdat2-sub001/config"
	"github.com/G-Node/wdat2-sub001/dispatcher"
	"github.com/G-Node/wdat2-sub001/health"
	"github.com/G-Node/wdat2-sub001/metric"
	"github.com/G-Node/wdat2-sub001/natsclient"
	"github.com/G-Node/wdat2-sub001/network"
	"github.com/G-Node/wdat2-sub001/pkg/cache"
	"github.com/G-Node/wdat2-sub001/pkg/retry"
)

const natsConnectTimeout = 10 * time.Second

// newDispatcher builds the response cache, the executor and the
// dispatcher. registry may be nil.
func newDispatcher(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*dispatcher.Dispatcher, error) {
	responses, err := cache.NewFromConfig[*network.Body](cfg.Cache,
		cache.WithMetrics[*network.Body](registry, "responses"))
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}

	exec, err := network.NewExecutor(cfg.Executor(), responses,
		network.WithLogger(logger),
		network.WithMetrics(registry))
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}

	return dispatcher.New(exec,
		dispatcher.WithLogger(logger),
		dispatcher.WithMetrics(registry)), nil
}

// newTransport creates the transport selected by worker.mode. nc is only
// used in NATS mode.
func newTransport(
	ctx context.Context,
	cfg *config.Config,
	d *dispatcher.Dispatcher,
	nc dispatcher.Client,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (dispatcher.Transport, error) {
	opts := []dispatcher.TransportOption{
		dispatcher.WithTransportLogger(logger),
		dispatcher.WithTransportMetrics(registry),
		dispatcher.WithSubjectPrefix(cfg.NATS.SubjectPrefix),
		dispatcher.WithPoolSize(cfg.Worker.Workers, cfg.Worker.QueueSize),
	}

	switch cfg.Worker.Mode {
	case config.WorkerModeInline:
		return dispatcher.NewInline(d), nil
	case config.WorkerModeWorker:
		return dispatcher.NewWorker(ctx, d, opts...)
	case config.WorkerModeNATS:
		return dispatcher.NewNATS(ctx, nc, opts...)
	default:
		return nil, fmt.Errorf("unknown worker mode %q", cfg.Worker.Mode)
	}
}

// connectNATS connects to the configured server, retrying while the server
// comes up. Connection health is reported to monitor.
func connectNATS(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Duration()),
		natsclient.WithTimeout(cfg.NATS.Timeout.Duration()),
		natsclient.WithDrainTimeout(cfg.NATS.DrainTimeout.Duration()),
		natsclient.WithCredentials(cfg.NATS.User, cfg.NATS.Password),
		natsclient.WithToken(cfg.NATS.Token),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				monitor.UpdateHealthy("nats", "connected")
			} else {
				monitor.UpdateUnhealthy("nats", "disconnected")
			}
		}),
	}

	logger.Info("Connecting to NATS", "url", cfg.NATS.URL)
	policy := retry.Quick()
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("NATS not reachable yet", "attempt", attempt, "retry_in", wait, "error", err)
	}
	client, err := retry.DoWithResult(ctx, policy, func() (*natsclient.Client, error) {
		client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
		if err != nil {
			return nil, retry.NonRetryable(err)
		}
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	})
	if err != nil {
		monitor.Update("nats", health.FromError("nats", err))
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, natsConnectTimeout)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

// startMetrics starts the Prometheus endpoint when enabled and mounts the
// aggregated health of monitor at /healthz beside it. The returned server
// is nil when metrics are disabled.
func startMetrics(
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	logger *slog.Logger,
) (*metric.Server, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	srv.Handle("/healthz", health.Handler(monitor, appName))
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}
	logger.Info("Metrics server listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	return srv, nil
}
