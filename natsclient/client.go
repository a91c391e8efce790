package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/metric"
)

// ConnectionStatus is the client's view of its connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = [...]string{
	StatusDisconnected: "disconnected",
	StatusConnecting:   "connecting",
	StatusConnected:    "connected",
	StatusReconnecting: "reconnecting",
	StatusCircuitOpen:  "circuit_open",
}

func (s ConnectionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// handlerTimeout bounds the context handed to subscription handlers.
const handlerTimeout = 30 * time.Second

// Status is a snapshot returned by GetStatus.
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	RTT             time.Duration
}

// Client owns one NATS connection. Failed Connect calls feed a circuit
// breaker; while it is open Connect returns ErrCircuitOpen without dialing.
type Client struct {
	url     string
	logger  *slog.Logger
	metrics *metric.Metrics

	status atomic.Value // ConnectionStatus

	// circuit breaker, see circuit.go
	failures         atomic.Int32
	circuitFailures  atomic.Int32
	lastFailure      atomic.Value // time.Time
	backoff          atomic.Value // time.Duration
	circuitThreshold int32
	maxBackoff       time.Duration

	clientName    string
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	// zeroed by Close
	username string
	password string
	token    string

	onHealthChange func(bool)
	healthInterval time.Duration
	healthDone     chan struct{}

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient prepares a client for url without dialing.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		healthInterval:   10 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.logger = c.logger.With("component", "natsclient", "url", url)
	c.status.Store(StatusDisconnected)
	c.resetBreakerState()
	return c, nil
}

func (c *Client) URL() string                  { return c.url }
func (c *Client) MaxReconnects() int           { return c.maxReconnects }
func (c *Client) ReconnectWait() time.Duration { return c.reconnectWait }

func (c *Client) Status() ConnectionStatus {
	if s, ok := c.status.Load().(ConnectionStatus); ok {
		return s
	}
	return StatusDisconnected
}

// IsHealthy reports whether the connection is up.
func (c *Client) IsHealthy() bool { return c.Status() == StatusConnected }

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(s)
	if c.metrics == nil {
		return
	}
	c.metrics.RecordNATSStatus(s == StatusConnected)
	switch s {
	case StatusCircuitOpen:
		c.metrics.RecordCircuitBreakerState(1)
	case StatusConnected:
		c.metrics.RecordCircuitBreakerState(0)
	}
}

// GetConnection returns the underlying connection, nil before Connect.
func (c *Client) GetConnection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// connected returns the connection when it is usable.
func (c *Client) connected() (*nats.Conn, error) {
	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// GetStatus snapshots status, failures and, when connected, the RTT.
func (c *Client) GetStatus() *Status {
	s := &Status{
		Status:          c.Status(),
		FailureCount:    c.Failures(),
		LastFailureTime: c.lastFailure.Load().(time.Time),
	}
	if rtt, err := c.RTT(); err == nil {
		s.RTT = rtt
	}
	return s
}

// ConnectionOptions builds the nats.Connect options from the client's
// settings.
func (c *Client) ConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	return opts
}

// Connect dials the server. A dial that outlives ctx is abandoned and
// counted as a failure.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS")

	type dialResult struct {
		conn *nats.Conn
		err  error
	}
	opts := c.ConnectionOptions()
	dialed := make(chan dialResult, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		dialed <- dialResult{conn, err}
	}()

	var res dialResult
	select {
	case res = <-dialed:
	case <-ctx.Done():
		res.err = ctx.Err()
		go func() {
			if late := <-dialed; late.conn != nil {
				late.conn.Close()
			}
		}()
	}

	if res.err != nil {
		if c.recordFailure() {
			return ErrCircuitOpen
		}
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
	}

	c.mu.Lock()
	c.conn = res.conn
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Connected to NATS")

	if c.healthInterval > 0 {
		c.startHealthMonitoring()
	}
	if fn := c.healthCallback(); fn != nil {
		fn(true)
	}
	return nil
}

// WaitForConnection polls until the client is connected or ctx ends.
func (c *Client) WaitForConnection(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for !c.IsHealthy() {
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Client", "WaitForConnection", "wait for connection")
		case <-tick.C:
		}
	}
	return nil
}

// RTT measures a round trip to the server.
func (c *Client) RTT() (time.Duration, error) {
	conn, err := c.connected()
	if err != nil {
		return 0, err
	}
	return conn.RTT()
}

// Publish sends data on subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

// Subscribe runs handler for every message on subject. The handler context
// derives from ctx and expires after handlerTimeout.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()
		handler(msgCtx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe to "+subject)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Close unsubscribes and drains. Draining stops at the drain timeout or
// at ctx's deadline, whichever comes first. Only the first call does
// anything.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.stopHealthMonitoring()

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}
	c.subs = nil

	if c.conn != nil {
		if err := c.drain(ctx, c.conn); err != nil {
			errs = append(errs, err)
		}
		c.conn.Close()
		c.conn = nil
	}

	c.username, c.password, c.token = "", "", ""
	c.setStatus(StatusDisconnected)

	if len(errs) > 0 {
		c.logger.Error("Close finished with errors", "errors", len(errs))
	}
	return stderrors.Join(errs...)
}

func (c *Client) drain(ctx context.Context, conn *nats.Conn) error {
	limit := c.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && left < limit {
			limit = left
		}
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()

	select {
	case err := <-drained:
		return errors.Wrap(err, "Client", "Close", "drain connection")
	case <-time.After(limit):
		return errors.WrapTransient(fmt.Errorf("drain timeout after %v", limit),
			"Client", "Close", "drain connection")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "Client", "Close", "drain connection")
	}
}
