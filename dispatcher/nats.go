package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/message"
)

// Client is the part of a NATS connection the transports need. It is
// satisfied by natsclient.Client and testutil.FakeNATS.
type Client interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// NATS sends requests to a remote Dispatcher over NATS.
type NATS struct {
	client       Client
	prefix       string
	replySubject string
	replies      replies
	logger       *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Transport = (*NATS)(nil)

// NewNATS subscribes to a reply subject unique to this instance and
// returns the transport.
func NewNATS(ctx context.Context, client Client, opts ...TransportOption) (*NATS, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "NATS", "NewNATS", "check client")
	}
	cfg := newTransportConfig(opts)

	t := &NATS{
		client:       client,
		prefix:       cfg.prefix,
		replySubject: ReplySubject(cfg.prefix, uuid.New().String()),
	}
	t.logger = cfg.logger.With("component", "dispatch-nats", "reply_subject", t.replySubject)

	if err := client.Subscribe(ctx, t.replySubject, t.onReply); err != nil {
		return nil, errors.WrapTransient(err, "NATS", "NewNATS", "subscribe to replies")
	}
	return t, nil
}

// ReplySubject returns the subject this instance receives replies on.
func (t *NATS) ReplySubject() string {
	return t.replySubject
}

// Send publishes req on the request subject, addressed back to this
// instance.
func (t *NATS) Send(ctx context.Context, req message.Request) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "NATS", "Send", "send request")
	}

	req.ReplyTo = t.replySubject
	data, err := message.Encode(req)
	if err != nil {
		return err
	}
	if err := t.client.Publish(ctx, RequestSubject(t.prefix), data); err != nil {
		return errors.WrapTransient(err, "NATS", "Send", "publish request")
	}
	return nil
}

// OnReply sets the reply handler.
func (t *NATS) OnReply(handler ReplyHandler) {
	t.replies.set(handler)
}

// Close stops sending and drops late replies. The underlying connection is
// owned by the caller.
func (t *NATS) Close(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *NATS) onReply(_ context.Context, data []byte) {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return
	}

	reply, err := message.DecodeReply(data)
	if err != nil {
		t.logger.Warn("Dropping undecodable reply", "error", err)
		return
	}
	t.replies.deliver(reply)
}

// ServeNATS answers requests published on the request subject with d. Each
// reply goes to the subject named in the request's ReplyTo.
func ServeNATS(ctx context.Context, client Client, d *Dispatcher, opts ...TransportOption) error {
	if client == nil {
		return errors.WrapInvalid(errors.ErrNoConnection, "NATS", "ServeNATS", "check client")
	}
	cfg := newTransportConfig(opts)
	subject := RequestSubject(cfg.prefix)
	logger := cfg.logger.With("component", "dispatch-server", "subject", subject)

	handler := func(msgCtx context.Context, data []byte) {
		req, err := message.DecodeRequest(data)
		if err != nil {
			logger.Warn("Dropping undecodable request", "error", err)
			return
		}
		if req.ReplyTo == "" {
			logger.Warn("Dropping request without reply subject", "id", req.ID, "action", req.Action)
			return
		}

		reply := d.Handle(msgCtx, req)
		out, err := message.Encode(reply)
		if err != nil {
			logger.Error("Cannot encode reply", "id", req.ID, "error", err)
			return
		}
		if err := client.Publish(msgCtx, req.ReplyTo, out); err != nil {
			logger.Error("Cannot publish reply", "id", req.ID, "subject", req.ReplyTo, "error", err)
		}
	}

	if err := client.Subscribe(ctx, subject, handler); err != nil {
		return errors.WrapTransient(err, "NATS", "ServeNATS", "subscribe to requests")
	}
	logger.Info("Serving requests")
	return nil
}
