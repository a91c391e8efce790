package bus

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/metric"
)

// Handler receives a publication. name is the resolved event name.
type Handler func(name string, payload any)

// ErrorHook runs before delivery of a payload that carries an error.
// Returning false suppresses delivery.
type ErrorHook func(name string, payload any) bool

// ErrorCarrier is implemented by payloads that can signal failure.
type ErrorCarrier interface {
	HasError() bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for debug tracing and the default error
// hook.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics counts publications by outcome.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(b *Bus) {
		if registry != nil {
			b.metrics = registry.CoreMetrics()
		}
	}
}

// WithErrorHook replaces the default error hook.
func WithErrorHook(hook ErrorHook) Option {
	return func(b *Bus) {
		if hook != nil {
			b.onError = hook
		}
	}
}

// Bus is a synchronous publish/subscribe hub with named states.
//
// Handlers run on the publishing goroutine in subscription order. The
// registry lock is released before handlers run, so a handler may publish
// or subscribe.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	states   map[string]any
	uid      atomic.Uint64
	onError  ErrorHook
	logger   *slog.Logger
	metrics  *metric.Metrics
}

// New creates a Bus. The default error hook logs the failure and
// suppresses delivery.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
		states:   make(map[string]any),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bus")
	if b.onError == nil {
		b.onError = b.logAndSuppress
	}
	return b
}

// Resolve returns the event name for name scoped by suffix.
func Resolve(name string, suffix ...string) string {
	for _, s := range suffix {
		name += s
	}
	return name
}

// Subscribe registers handler for name (scoped by suffix) and returns the
// resolved name.
func (b *Bus) Subscribe(name string, handler Handler, suffix ...string) string {
	resolved := Resolve(name, suffix...)

	b.mu.Lock()
	b.handlers[resolved] = append(b.handlers[resolved], handler)
	b.mu.Unlock()

	b.logger.Debug("subscribe", "event", resolved)
	return resolved
}

// Unsubscribe removes every handler registered for name (scoped by suffix).
func (b *Bus) Unsubscribe(name string, suffix ...string) {
	resolved := Resolve(name, suffix...)

	b.mu.Lock()
	delete(b.handlers, resolved)
	b.mu.Unlock()

	b.logger.Debug("unsubscribe", "event", resolved)
}

// Publish delivers payload to the subscribers of name (scoped by suffix).
// It fails if the resolved name is a declared state.
func (b *Bus) Publish(name string, payload any, suffix ...string) error {
	resolved := Resolve(name, suffix...)

	b.mu.RLock()
	_, isState := b.states[resolved]
	b.mu.RUnlock()

	if isState {
		b.record("rejected")
		return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrStateName, resolved),
			"Bus", "Publish", "publish event")
	}

	b.dispatch(resolved, payload)
	return nil
}

// State returns the current value of the named state.
func (b *Bus) State(name string) (any, error) {
	b.mu.RLock()
	value, ok := b.states[name]
	b.mu.RUnlock()

	if !ok {
		return nil, errors.Wrap(fmt.Errorf("%w: %q", errors.ErrStateNotFound, name),
			"Bus", "State", "read state")
	}
	return value, nil
}

// SetState stores value under name, declaring name a state, and publishes
// it to the name's subscribers. An empty name is rejected.
func (b *Bus) SetState(name string, value any) error {
	if name == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty name", errors.ErrStateName),
			"Bus", "SetState", "declare state")
	}

	b.mu.Lock()
	b.states[name] = value
	b.mu.Unlock()

	b.dispatch(name, value)
	return nil
}

// HasState reports whether name is a declared state.
func (b *Bus) HasState(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.states[name]
	return ok
}

// UID returns a process-unique suffix for scoping event names. The first
// call returns "1".
func (b *Bus) UID() string {
	return strconv.FormatUint(b.uid.Add(1), 10)
}

// SetOnError replaces the error hook. A nil hook restores the default.
func (b *Bus) SetOnError(hook ErrorHook) {
	if hook == nil {
		hook = b.logAndSuppress
	}
	b.mu.Lock()
	b.onError = hook
	b.mu.Unlock()
}

// Subscribers returns the number of handlers registered for name.
func (b *Bus) Subscribers(name string, suffix ...string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[Resolve(name, suffix...)])
}

func (b *Bus) dispatch(name string, payload any) {
	b.mu.RLock()
	subs := append([]Handler(nil), b.handlers[name]...)
	hook := b.onError
	b.mu.RUnlock()

	if carriesError(payload) && !hook(name, payload) {
		b.logger.Debug("publish suppressed", "event", name)
		b.record("suppressed")
		return
	}

	b.logger.Debug("publish", "event", name, "subscribers", len(subs))
	for _, h := range subs {
		h(name, payload)
	}
	b.record("delivered")
}

func (b *Bus) logAndSuppress(name string, payload any) bool {
	msg := ""
	if m, ok := payload.(interface{ ErrorMessage() string }); ok {
		msg = m.ErrorMessage()
	} else if m, ok := payload.(map[string]any); ok {
		msg, _ = m["message"].(string)
	}
	b.logger.Error("event carries an error", "event", name, "message", msg)
	return false
}

func (b *Bus) record(outcome string) {
	if b.metrics != nil {
		b.metrics.RecordBusPublication(outcome)
	}
}

func carriesError(payload any) bool {
	switch p := payload.(type) {
	case ErrorCarrier:
		return p.HasError()
	case map[string]any:
		failed, _ := p["error"].(bool)
		return failed
	}
	return false
}
