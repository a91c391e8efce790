package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/G-Node/wdat2-sub001/bus"
	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/health"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/metric"
)

// StateClients is the bus state holding the number of connected clients.
const StateClients = "gateway.clients"

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
	maxFrameSize        = 1 << 20
)

// Sender accepts requests on behalf of the dispatcher. *dataapi.DataAPI
// implements it.
type Sender interface {
	Send(ctx context.Context, req message.Request) error
}

// Config holds the listen settings.
type Config struct {
	Port int    // 0 picks a free port
	Path string // websocket endpoint

	// RateLimit is the number of request frames per second each client may
	// send, with bursts up to RateBurst. 0 means unlimited.
	RateLimit int
	RateBurst int
}

// DefaultConfig returns the default listen settings.
func DefaultConfig() Config {
	return Config{Port: 8080, Path: "/ws", RateLimit: 100, RateBurst: 10}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics registers the gateway metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithHealthMonitor reports into monitor and serves its aggregate on
// /healthz. Without it the server keeps a private monitor.
func WithHealthMonitor(monitor *health.Monitor) Option {
	return func(s *Server) {
		if monitor != nil {
			s.monitor = monitor
		}
	}
}

// WithPingInterval sets how often clients are pinged. A client that does
// not answer within two intervals is dropped.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// WithCheckOrigin replaces the origin check of the websocket upgrade. The
// default accepts every origin.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(s *Server) {
		if check != nil {
			s.upgrader.CheckOrigin = check
		}
	}
}

// Server bridges websocket clients to the DataAPI.
//
// Every client gets its own bus scope. A request on event "tree" is sent
// under the scoped name, and replies published there are written back to
// that client only, renamed to "tree".
type Server struct {
	cfg      Config
	bus      *bus.Bus
	sender   Sender
	upgrader websocket.Upgrader
	monitor  *health.Monitor
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *Metrics

	pingInterval time.Duration
	writeWait    time.Duration

	mu       sync.Mutex
	clients  map[*client]struct{}
	count    atomic.Int32
	closed   bool
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a gateway server. It does not listen until Start.
func New(b *bus.Bus, sender Sender, cfg Config, opts ...Option) (*Server, error) {
	if b == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "New", "check bus")
	}
	if sender == nil {
		return nil, errors.WrapInvalid(errors.ErrNoTransport, "Gateway", "New", "check sender")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, cfg.Port),
			"Gateway", "New", "check port")
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.RateLimit < 0 || (cfg.RateLimit > 0 && cfg.RateBurst < 1) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: rate limit %d burst %d", errors.ErrInvalidConfig, cfg.RateLimit, cfg.RateBurst),
			"Gateway", "New", "check rate limit")
	}

	s := &Server{
		cfg:    cfg,
		bus:    b,
		sender: sender,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:       slog.Default(),
		pingInterval: defaultPingInterval,
		writeWait:    defaultWriteWait,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.monitor == nil {
		s.monitor = health.NewMonitor()
	}
	s.logger = s.logger.With("component", "gateway")

	var err error
	if s.metrics, err = newMetrics(s.registry); err != nil {
		s.logger.Warn("Gateway metrics not fully exported", "error", err)
	}

	s.publishCount(0)
	return s, nil
}

// Handler returns the gateway routes: the websocket endpoint and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	mux.Handle("/healthz", health.Handler(s.monitor, "wdat"))
	return mux
}

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Gateway", "Start", "start server")
	}
	if s.closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Gateway", "Start", "start server")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return errors.WrapFatal(err, "Gateway", "Start", fmt.Sprintf("listen on port %d", s.cfg.Port))
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err)
			s.monitor.Update("gateway", health.FromError("gateway", err))
		}
	}()

	s.logger.Info("Gateway listening", "addr", listener.Addr().String(), "path", s.cfg.Path)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return int(s.count.Load())
}

// Stop shuts the HTTP server down, disconnects every client and waits for
// their goroutines up to timeout.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	server := s.server
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErr error
	if server != nil {
		// Hijacked websocket connections are not tracked by Shutdown.
		shutdownErr = server.Shutdown(ctx)
	}
	for _, c := range clients {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Client goroutines did not exit within timeout", "timeout", timeout)
		return errors.WrapTransient(ctx.Err(), "Gateway", "Stop", "wait for clients")
	}

	s.monitor.UpdateUnhealthy("gateway", "stopped")
	if shutdownErr != nil {
		return errors.WrapTransient(shutdownErr, "Gateway", "Stop", "shutdown server")
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "gateway shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.metrics.failed("connection_upgrade")
		s.logger.Debug("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(s, conn, requestID(r))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.wg.Add(2)
	s.publishCount(n)
	s.mu.Unlock()

	s.metrics.connected(n)
	s.logger.Info("Client connected", "client", c.id, "remote", r.RemoteAddr, "clients", n)

	go c.pingLoop()
	go c.readLoop()
}

// remove unregisters c and drops its bus subscriptions.
func (s *Server) remove(c *client, reason string) {
	c.close()
	for _, event := range c.drainEvents() {
		s.bus.Unsubscribe(event, c.suffix)
	}

	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.publishCount(n)
	s.mu.Unlock()

	s.metrics.disconnected(reason, n)
	s.logger.Info("Client disconnected", "client", c.id, "reason", reason,
		"connected_for", time.Since(c.connectedAt).Round(time.Millisecond), "clients", n)
}

// publishCount stores n and announces it. Callers hold s.mu so counts are
// announced in order.
func (s *Server) publishCount(n int) {
	s.count.Store(int32(n))
	if err := s.bus.SetState(StateClients, n); err != nil {
		s.logger.Warn("Cannot announce client count", "error", err)
	}
	s.monitor.UpdateHealthy("gateway", fmt.Sprintf("%d clients", n))
}

// requestID extracts the X-Request-ID header or generates a new id.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// clientMessage returns a safe error message for clients. Details are
// logged, not sent.
func clientMessage(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrShuttingDown):
		return "service shutting down"
	case errors.IsInvalid(err):
		return "invalid request"
	case errors.IsTransient(err):
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}
