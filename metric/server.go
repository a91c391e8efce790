package metric

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/G-Node/wdat2-sub001/errors"
)

const (
	defaultPort = 9090
	defaultPath = "/metrics"
)

// Handler serves registry in the Prometheus text or OpenMetrics format.
func Handler(registry *MetricsRegistry) http.Handler {
	return promhttp.HandlerFor(registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server serves the registry on its own port. Extra routes, such as a
// health endpoint for processes without a gateway, are added with Handle
// before Start.
type Server struct {
	port     int
	path     string
	registry *MetricsRegistry
	routes   map[string]http.Handler

	mu   sync.Mutex
	srv  *http.Server
	addr net.Addr
}

// NewServer prepares a server. A zero port or empty path takes the
// defaults, 9090 and /metrics.
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if port == 0 {
		port = defaultPort
	}
	if path == "" {
		path = defaultPath
	}
	return &Server{port: port, path: path, registry: registry, routes: map[string]http.Handler{}}
}

// Handle adds a route next to the metrics path.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[pattern] = h
}

// Start listens and serves in the background. Listen errors are returned
// here rather than logged later.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "start metrics server")
	}
	if s.registry == nil {
		return errors.WrapFatal(fmt.Errorf("%w: nil registry", errors.ErrMissingConfig),
			"Server", "Start", "start metrics server")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, Handler(s.registry))
	for pattern, h := range s.routes {
		mux.Handle(pattern, h)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start", fmt.Sprintf("listen on port %d", s.port))
	}
	s.addr = ln.Addr()
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func(srv *http.Server) { _ = srv.Serve(ln) }(s.srv)
	return nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	srv := s.srv
	s.srv, s.addr = nil, nil
	return errors.WrapTransient(srv.Shutdown(ctx), "Server", "Stop", "shutdown metrics server")
}

// Address is the URL of the metrics path.
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
