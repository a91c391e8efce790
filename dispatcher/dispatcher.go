package dispatcher

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/G-Node/wdat2-sub001/adapter"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/metric"
	"github.com/G-Node/wdat2-sub001/model"
	"github.com/G-Node/wdat2-sub001/network"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records every dispatched request in the core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(d *Dispatcher) {
		if registry != nil {
			d.metrics = registry.CoreMetrics()
		}
	}
}

// Dispatcher routes requests to repository operations by action.
type Dispatcher struct {
	exec    *network.Executor
	logger  *slog.Logger
	metrics *metric.Metrics
}

// New creates a Dispatcher running requests through exec.
func New(exec *network.Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		exec:   exec,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// DataParam is the param of a get_data request.
type DataParam struct {
	URL   string            `json:"url"`
	Range network.DataRange `json:"range"`
}

// Handle runs req and returns its reply. Unknown actions are answered with
// a log reply on the debug event carrying the request itself.
func (d *Dispatcher) Handle(ctx context.Context, req message.Request) message.Reply {
	start := time.Now()

	var reply message.Reply
	switch req.Action {
	case message.ActionGet:
		reply = d.get(ctx, req)
	case message.ActionGetByURL:
		reply = d.getByURL(ctx, req)
	case message.ActionSet:
		reply = d.set(ctx, req)
	case message.ActionDelete:
		reply = d.del(ctx, req)
	case message.ActionSetACL:
		reply = d.setACL(ctx, req)
	case message.ActionGetData:
		reply = d.getData(ctx, req)
	case message.ActionUsers:
		reply = d.users(ctx, req)
	default:
		reply = d.log(req)
	}

	if d.metrics != nil {
		d.metrics.RecordDispatch(string(req.Action), reply.Error, time.Since(start))
	}
	if reply.Error {
		d.logger.Debug("Request failed",
			"id", req.ID, "event", req.Event, "action", req.Action, "message", reply.Message)
	}
	return reply
}

func (d *Dispatcher) get(ctx context.Context, req message.Request) message.Reply {
	reply := message.ReplyTo(req)

	var specs []network.Specifier
	if isList(req.Param) {
		if err := req.DecodeParam(&specs); err != nil {
			return reply.Fail(err.Error())
		}
	} else {
		var spec network.Specifier
		if err := req.DecodeParam(&spec); err != nil {
			return reply.Fail(err.Error())
		}
		specs = []network.Specifier{spec}
	}

	res, err := d.exec.Get(ctx, specs...)
	if err != nil {
		return reply.Fail(err.Error())
	}
	return fill(reply, adapter.AdaptFromResource(res))
}

func (d *Dispatcher) getByURL(ctx context.Context, req message.Request) message.Reply {
	reply := message.ReplyTo(req)

	var urls []string
	if isList(req.Param) {
		if err := req.DecodeParam(&urls); err != nil {
			return reply.Fail(err.Error())
		}
	} else {
		var url string
		if err := req.DecodeParam(&url); err != nil {
			return reply.Fail(err.Error())
		}
		urls = []string{url}
	}

	return fill(reply, adapter.AdaptFromResource(d.exec.DoGET(ctx, urls, req.Depth)))
}

func (d *Dispatcher) set(ctx context.Context, req message.Request) message.Reply {
	reply := message.ReplyTo(req)

	var obj model.Object
	if err := req.DecodeParam(&obj); err != nil {
		return reply.Fail(err.Error())
	}
	write, err := adapter.AdaptFromApplication(obj)
	if err != nil {
		return reply.Fail(err.Error())
	}
	return fill(reply, adapter.AdaptFromResource(d.exec.Set(ctx, write.URL, write.Data)))
}

func (d *Dispatcher) del(ctx context.Context, req message.Request) message.Reply {
	reply := message.ReplyTo(req)

	var url string
	if err := req.DecodeParam(&url); err != nil {
		return reply.Fail(err.Error())
	}
	return fill(reply, adapter.AdaptFromResource(d.exec.Delete(ctx, url)))
}

func (d *Dispatcher) setACL(ctx context.Context, req message.Request) message.Reply {
	reply := message.ReplyTo(req)

	var acl adapter.ACL
	if err := req.DecodeParam(&acl); err != nil {
		return reply.Fail(err.Error())
	}
	write, err := adapter.AdaptFromACL(acl)
	if err != nil {
		return reply.Fail(err.Error())
	}
	return fill(reply, adapter.AdaptFromResource(d.exec.Set(ctx, write.URL, write.Data)))
}

func (d *Dispatcher) log(req message.Request) message.Reply {
	reply := message.Reply{
		ID:        req.ID,
		Event:     message.EventDebug,
		Action:    message.ActionLog,
		Primary:   []model.Object{},
		Secondary: map[string]model.Object{},
	}
	data, err := message.Encode(req)
	if err != nil {
		d.logger.Warn("Cannot encode unhandled request", "id", req.ID, "error", err)
		return reply
	}
	reply.Data = data
	return reply
}

// fill copies an adapted result into reply.
func fill(reply message.Reply, adapted adapter.Adapted) message.Reply {
	if adapted.Error {
		return reply.Fail(adapted.Message)
	}
	reply.Primary = adapted.Primary
	reply.Secondary = adapted.Secondary
	return reply
}

func isList(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
