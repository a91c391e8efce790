package dataapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/G-Node/wdat2-sub001/adapter"
	"github.com/G-Node/wdat2-sub001/bus"
	"github.com/G-Node/wdat2-sub001/dispatcher"
	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/model"
	"github.com/G-Node/wdat2-sub001/network"
)

// Option configures a DataAPI.
type Option func(*DataAPI)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *DataAPI) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// DataAPI sends requests through a transport and republishes the replies on
// a bus.
type DataAPI struct {
	bus       *bus.Bus
	transport dispatcher.Transport
	logger    *slog.Logger

	mu    sync.RWMutex
	users *adapter.Users // last successful users reply
}

// New wires transport replies to b. It takes over the transport's reply
// handler.
func New(b *bus.Bus, transport dispatcher.Transport, opts ...Option) (*DataAPI, error) {
	if b == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "DataAPI", "New", "check bus")
	}
	if transport == nil {
		return nil, errors.WrapInvalid(errors.ErrNoTransport, "DataAPI", "New", "check transport")
	}

	a := &DataAPI{
		bus:       b,
		transport: transport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "dataapi")

	transport.OnReply(a.publish)
	return a, nil
}

// Get searches for the objects matching spec.
func (a *DataAPI) Get(ctx context.Context, event string, spec network.Specifier, info any) error {
	if _, err := spec.URL(); err != nil {
		return invalid(err, "Get")
	}
	return a.send(ctx, event, message.ActionGet, spec, 0, info)
}

// GetMany runs several searches as one request. The reply holds the
// matches of all of them.
func (a *DataAPI) GetMany(ctx context.Context, event string, specs []network.Specifier, info any) error {
	for _, spec := range specs {
		if _, err := spec.URL(); err != nil {
			return invalid(err, "GetMany")
		}
	}
	return a.send(ctx, event, message.ActionGet, specs, 0, info)
}

// GetByURL loads objects by URL, fetching their children down to depth.
func (a *DataAPI) GetByURL(ctx context.Context, event string, urls []string, depth int, info any) error {
	return a.send(ctx, event, message.ActionGetByURL, urls, depth, info)
}

// Set creates or updates obj.
func (a *DataAPI) Set(ctx context.Context, event string, obj model.Object, info any) error {
	if _, err := adapter.AdaptFromApplication(obj); err != nil {
		return invalid(err, "Set")
	}
	return a.send(ctx, event, message.ActionSet, obj, 0, info)
}

// Del deletes the object at url.
func (a *DataAPI) Del(ctx context.Context, event, url string, info any) error {
	return a.send(ctx, event, message.ActionDelete, url, 0, info)
}

// SetACL changes the safety level or sharing of an object.
func (a *DataAPI) SetACL(ctx context.Context, event string, acl adapter.ACL, info any) error {
	if _, err := adapter.AdaptFromACL(acl); err != nil {
		return invalid(err, "SetACL")
	}
	return a.send(ctx, event, message.ActionSetACL, acl, 0, info)
}

// GetData loads the plotable object at url and the arrays behind its data
// fields, sliced by rng.
func (a *DataAPI) GetData(ctx context.Context, event, url string, rng network.DataRange, info any) error {
	return a.send(ctx, event, message.ActionGetData, dispatcher.DataParam{URL: url, Range: rng}, 0, info)
}

// Users loads the repository accounts. The reply data is an adapter.Users;
// once it arrives, KnownUsers and CurrentUser answer from it.
func (a *DataAPI) Users(ctx context.Context, event string, info any) error {
	return a.send(ctx, event, message.ActionUsers, nil, 0, info)
}

// KnownUsers returns the accounts of the last users reply.
func (a *DataAPI) KnownUsers() []adapter.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.users == nil {
		return nil
	}
	return append([]adapter.User(nil), a.users.List...)
}

// CurrentUser returns the logged-in account of the last users reply.
func (a *DataAPI) CurrentUser() (adapter.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.users == nil || a.users.Current == nil {
		return adapter.User{}, false
	}
	return *a.users.Current, true
}

// Send hands a prepared request to the transport.
func (a *DataAPI) Send(ctx context.Context, req message.Request) error {
	if err := a.transport.Send(ctx, req); err != nil {
		return errors.Wrap(err, "DataAPI", "Send", "send request")
	}
	return nil
}

// Close closes the transport.
func (a *DataAPI) Close(ctx context.Context) error {
	return a.transport.Close(ctx)
}

func (a *DataAPI) send(ctx context.Context, event string, action message.Action, param any, depth int, info any) error {
	req, err := message.NewRequest(event, action, param, info)
	if err != nil {
		return err
	}
	req.Depth = depth
	return a.Send(ctx, req)
}

func (a *DataAPI) publish(reply message.Reply) {
	if reply.Event == message.EventDebug {
		a.logger.Debug("Worker message", "id", reply.ID, "action", reply.Action, "data", string(reply.Data))
		return
	}
	if reply.Action == message.ActionUsers && !reply.Error {
		a.rememberUsers(reply)
	}
	if err := a.bus.Publish(reply.Event, reply); err != nil {
		a.logger.Warn("Cannot publish reply", "event", reply.Event, "id", reply.ID, "error", err)
	}
}

func (a *DataAPI) rememberUsers(reply message.Reply) {
	var users adapter.Users
	if err := json.Unmarshal(reply.Data, &users); err != nil {
		a.logger.Warn("Cannot decode users reply", "id", reply.ID, "error", err)
		return
	}
	a.mu.Lock()
	a.users = &users
	a.mu.Unlock()
}

// invalid marks err as a caller mistake unless it already is classified.
func invalid(err error, method string) error {
	if errors.IsInvalid(err) {
		return err
	}
	return errors.WrapInvalid(err, "DataAPI", method, "validate request")
}
