package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/G-Node/wdat2-sub001/bus"
	"github.com/G-Node/wdat2-sub001/message"
)

// client is one websocket connection and its bus scope.
type client struct {
	id          string
	suffix      string
	srv         *Server
	conn        *websocket.Conn
	connectedAt time.Time
	limiter     *rate.Limiter // nil when unlimited

	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex // gorilla/websocket allows one concurrent writer
	mu        sync.Mutex
	events    map[string]struct{} // client-side event names with a subscription
	closeOnce sync.Once
}

func newClient(s *Server, conn *websocket.Conn, id string) *client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		id:          id,
		suffix:      "@" + s.bus.UID(),
		srv:         s,
		conn:        conn,
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		events:      make(map[string]struct{}),
	}
	if s.cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	}
	return c
}

// readLoop reads request frames until the connection fails or closes.
func (c *client) readLoop() {
	defer c.srv.wg.Done()

	reason := "normal"
	defer func() { c.srv.remove(c, reason) }()

	pongWait := 2 * c.srv.pingInterval
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				reason = "read_error"
				c.srv.logger.Debug("Read failed", "client", c.id, "error", err)
			}
			return
		}
		c.handleFrame(data)
	}
}

// pingLoop keeps the connection alive until the client goes away.
func (c *client) pingLoop() {
	defer c.srv.wg.Done()

	ticker := time.NewTicker(c.srv.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			// WriteControl may run concurrently with WriteMessage.
			deadline := time.Now().Add(c.srv.writeWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.srv.metrics.failed("ping")
				c.close()
				return
			}
		}
	}
}

func (c *client) handleFrame(data []byte) {
	s := c.srv

	req, err := message.DecodeRequest(data)
	if err != nil {
		s.metrics.received("invalid")
		c.writeReply(message.Reply{Action: message.ActionLog}.Fail("invalid request frame"))
		return
	}
	if req.Event == "" {
		s.metrics.received("invalid")
		c.writeReply(message.ReplyTo(req).Fail("request needs an event"))
		return
	}
	// Replies to a state name could never be published.
	if s.bus.HasState(req.Event) || s.bus.HasState(bus.Resolve(req.Event, c.suffix)) {
		s.metrics.received("invalid")
		c.writeReply(message.ReplyTo(req).Fail("event name is reserved"))
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		s.metrics.received("throttled")
		c.writeReply(message.ReplyTo(req).Fail("rate limit exceeded"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	event := req.Event
	req.Event = c.subscribe(event)
	req.ReplyTo = ""

	if err := s.sender.Send(c.ctx, req); err != nil {
		s.metrics.received("rejected")
		s.logger.Warn("Cannot send request", "client", c.id, "id", req.ID, "action", req.Action, "error", err)

		reply := message.ReplyTo(req).Fail(clientMessage(err))
		reply.Event = event
		c.writeReply(reply)
		return
	}
	s.metrics.received("accepted")
}

// subscribe makes sure replies on the scoped name of event reach this
// client and returns the scoped name.
func (c *client) subscribe(event string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.events[event]; !ok {
		c.events[event] = struct{}{}
		c.srv.bus.Subscribe(event, c.deliver(event), c.suffix)
	}
	return bus.Resolve(event, c.suffix)
}

// deliver writes replies back under the event name the client used.
func (c *client) deliver(event string) bus.Handler {
	return func(_ string, payload any) {
		reply, ok := payload.(message.Reply)
		if !ok {
			return
		}
		reply.Event = event
		c.writeReply(reply)
	}
}

func (c *client) drainEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]string, 0, len(c.events))
	for e := range c.events {
		events = append(events, e)
	}
	c.events = map[string]struct{}{}
	return events
}

func (c *client) writeReply(reply message.Reply) {
	data, err := message.Encode(reply)
	if err != nil {
		c.srv.logger.Error("Cannot encode reply", "client", c.id, "id", reply.ID, "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.ctx.Err() != nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.srv.metrics.failed("write")
		c.srv.logger.Debug("Write failed", "client", c.id, "error", err)
		c.close()
		return
	}
	c.srv.metrics.sent(len(data))
}

// close cancels in-flight sends and closes the connection. Safe to call
// more than once.
func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}
