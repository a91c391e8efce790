package network

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/metric"
	"github.com/G-Node/wdat2-sub001/model"
	"github.com/G-Node/wdat2-sub001/pkg/cache"
)

// Config configures an Executor.
type Config struct {
	// BaseURL is the repository server every request path is resolved
	// against.
	BaseURL string
	// Timeout bounds each HTTP request. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration
	// MaxDepth caps child expansion. Zero disables the cap.
	MaxDepth int
	// Compression requests brotli or gzip encoded responses.
	Compression bool
	Breaker     BreakerConfig
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:8000",
		Timeout:     30 * time.Second,
		MaxDepth:    2,
		Compression: true,
		Breaker:     DefaultBreakerConfig(),
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: base url %q", errors.ErrInvalidConfig, c.BaseURL),
			"Executor", "Validate", "parse base url")
	}
	if c.Timeout < 0 || c.MaxDepth < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Executor", "Validate",
			"timeout and max depth must not be negative")
	}
	return c.Breaker.Validate()
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the HTTP client. The configured timeout is not
// applied to a supplied client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records request counts and durations.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Executor) {
		if registry != nil {
			e.metrics = registry.CoreMetrics()
		}
	}
}

// Executor runs conditional HTTP requests against the repository API.
// Safe for concurrent use.
type Executor struct {
	base        *url.URL
	client      *http.Client
	cache       *cache.ETagCache[*Body]
	breaker     *gobreaker.CircuitBreaker
	maxDepth    int
	compression bool
	logger      *slog.Logger
	metrics     *metric.Metrics
}

// NewExecutor creates an executor that validates GETs against responses.
func NewExecutor(cfg Config, responses *cache.ETagCache[*Body], opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if responses == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Executor", "NewExecutor", "response cache required")
	}

	base, _ := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))

	e := &Executor{
		base:        base,
		client:      &http.Client{Timeout: cfg.Timeout},
		cache:       responses,
		maxDepth:    cfg.MaxDepth,
		compression: cfg.Compression,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "executor")

	if cfg.Breaker.Enabled {
		e.breaker = newBreaker(cfg.Breaker, e.logger, e.metrics)
	}
	return e, nil
}

// Cache returns the response cache.
func (e *Executor) Cache() *cache.ETagCache[*Body] {
	return e.cache
}

// DoGET fetches urls in parallel and returns their responses in request
// order, one per url. Failed responses are kept in place next to their
// siblings. With depth > 0 the children of every returned element are
// fetched as secondary responses, one level per depth step. Expansion stops
// after a round that holds a failed response or when no child URLs remain.
func (e *Executor) DoGET(ctx context.Context, urls []string, depth int) Result {
	if e.maxDepth > 0 && depth > e.maxDepth {
		depth = e.maxDepth
	}

	result := Result{Primary: []Response{}, Secondary: []Response{}}

	round := e.fetchAll(ctx, urls)
	result.Primary = append(result.Primary, round...)

	for depth > 0 && !anyFailed(round) {
		children := e.childURLs(round)
		if len(children) == 0 {
			break
		}
		depth--
		round = e.fetchAll(ctx, children)
		result.Secondary = append(result.Secondary, round...)
	}

	return result
}

func anyFailed(round []Response) bool {
	for _, r := range round {
		if r.Error {
			return true
		}
	}
	return false
}

// fetchAll issues one GET per url concurrently. Responses are written by
// index so the result order is the request order regardless of completion
// order. Cache eviction runs once, after the whole batch is in.
func (e *Executor) fetchAll(ctx context.Context, urls []string) []Response {
	out := make([]Response, len(urls))

	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			out[i] = e.get(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	if n := e.cache.EvictOverCapacity(); n > 0 {
		e.logger.Debug("evicted cache entries", "count", n)
	}
	return out
}

// childURLs lists the child URLs of every element in responses. Relations
// that point back to the element's own type are skipped.
func (e *Executor) childURLs(responses []Response) []string {
	var urls []string
	for _, r := range responses {
		if r.Data == nil {
			continue
		}
		for _, el := range r.Data.Selected {
			typ, err := el.Type()
			if err != nil {
				e.logger.Debug("skip children of untyped element", "permalink", el.Permalink, "error", err)
				continue
			}
			tmpl, _ := model.Lookup(typ)
			for _, rel := range tmpl.Children {
				if rel.Target == typ {
					continue
				}
				urls = append(urls, stringList(el.Fields[rel.Name])...)
			}
		}
	}
	return urls
}

func stringList(v any) []string {
	var out []string
	switch list := v.(type) {
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, model.OmitHost(s))
			}
		}
	case []string:
		for _, s := range list {
			if s != "" {
				out = append(out, model.OmitHost(s))
			}
		}
	}
	return out
}

// resolve turns a server-relative path into an absolute request URL.
func (e *Executor) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return e.base.String() + path
}
