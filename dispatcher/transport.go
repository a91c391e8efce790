package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/metric"
)

// DefaultSubjectPrefix prefixes the NATS subjects used by default.
const DefaultSubjectPrefix = "wdat"

// ReplyHandler receives every reply a transport produces.
type ReplyHandler func(message.Reply)

// Transport carries requests to a Dispatcher and replies back.
type Transport interface {
	// Send hands req over. A nil error means a reply will eventually reach
	// the reply handler, unless the far side fails outright.
	Send(ctx context.Context, req message.Request) error
	// OnReply sets the reply handler, replacing any previous one.
	OnReply(handler ReplyHandler)
	// Close releases the transport. Later sends fail.
	Close(ctx context.Context) error
}

// TransportOption configures a transport.
type TransportOption func(*transportConfig)

type transportConfig struct {
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	prefix    string
	workers   int
	queueSize int
}

func newTransportConfig(opts []TransportOption) transportConfig {
	cfg := transportConfig{
		logger: slog.Default(),
		prefix: DefaultSubjectPrefix,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(c *transportConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransportMetrics exports worker pool metrics.
func WithTransportMetrics(registry *metric.MetricsRegistry) TransportOption {
	return func(c *transportConfig) {
		c.registry = registry
	}
}

// WithSubjectPrefix sets the NATS subject prefix.
func WithSubjectPrefix(prefix string) TransportOption {
	return func(c *transportConfig) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithPoolSize sets the worker count and queue size of the Worker
// transport. Zero values keep the pool defaults.
func WithPoolSize(workers, queueSize int) TransportOption {
	return func(c *transportConfig) {
		c.workers = workers
		c.queueSize = queueSize
	}
}

// RequestSubject is the subject requests are published on.
func RequestSubject(prefix string) string {
	return prefix + ".request"
}

// ReplySubject is the subject replies for instance are published on.
func ReplySubject(prefix, instance string) string {
	return prefix + ".reply." + instance
}

// replies holds the reply handler of a transport.
type replies struct {
	mu      sync.RWMutex
	handler ReplyHandler
}

func (r *replies) set(handler ReplyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

func (r *replies) deliver(reply message.Reply) {
	r.mu.RLock()
	handler := r.handler
	r.mu.RUnlock()
	if handler != nil {
		handler(reply)
	}
}

// Inline handles requests on the calling goroutine. The reply is delivered
// before Send returns.
type Inline struct {
	dispatcher *Dispatcher
	replies    replies

	mu     sync.RWMutex
	closed bool
}

var _ Transport = (*Inline)(nil)

// NewInline creates an inline transport for d.
func NewInline(d *Dispatcher) *Inline {
	return &Inline{dispatcher: d}
}

// Send handles req and delivers its reply.
func (t *Inline) Send(ctx context.Context, req message.Request) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Inline", "Send", "send request")
	}

	t.replies.deliver(t.dispatcher.Handle(ctx, req))
	return nil
}

// OnReply sets the reply handler.
func (t *Inline) OnReply(handler ReplyHandler) {
	t.replies.set(handler)
}

// Close stops accepting requests.
func (t *Inline) Close(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
