package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Node/wdat2-sub001/bus"
	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/health"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/metric"
)

// echoSender answers every request on the bus with its param as data.
type echoSender struct {
	bus *bus.Bus
	err error

	mu   sync.Mutex
	reqs []message.Request
}

func (s *echoSender) Send(_ context.Context, req message.Request) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	reply := message.ReplyTo(req)
	reply.Data = req.Param
	return s.bus.Publish(req.Event, reply)
}

func (s *echoSender) requests() []message.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]message.Request(nil), s.reqs...)
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *echoSender, *httptest.Server) {
	t.Helper()
	b := bus.New()
	sender := &echoSender{bus: b}
	srv, err := New(b, sender, Config{Path: "/ws"}, opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, sender, ts
}

func dial(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendRequest(t *testing.T, conn *websocket.Conn, event string, action message.Action, param any) message.Request {
	t.Helper()
	req, err := message.NewRequest(event, action, param, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))
	return req
}

func readReply(t *testing.T, conn *websocket.Conn) message.Reply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var reply message.Reply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestNew_RequiresBusAndSender(t *testing.T) {
	b := bus.New()

	_, err := New(nil, &echoSender{bus: b}, DefaultConfig())
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	_, err = New(b, nil, DefaultConfig())
	assert.ErrorIs(t, err, errors.ErrNoTransport)

	_, err = New(b, &echoSender{bus: b}, Config{Port: 70000})
	assert.True(t, errors.IsInvalid(err))

	_, err = New(b, &echoSender{bus: b}, Config{Path: "/ws", RateLimit: 5})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestGateway_RoundTrip(t *testing.T) {
	_, sender, ts := newTestServer(t)
	conn := dial(t, ts.URL)

	req := sendRequest(t, conn, "tree", message.ActionGetByURL, []string{"/metadata/section/1"})
	reply := readReply(t, conn)

	assert.Equal(t, req.ID, reply.ID)
	assert.Equal(t, "tree", reply.Event, "reply carries the client's event name")
	assert.Equal(t, message.ActionGetByURL, reply.Action)
	assert.JSONEq(t, `["/metadata/section/1"]`, string(reply.Data))

	sent := sender.requests()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0].Event, "tree@"), "forwarded under a scoped name, got %q", sent[0].Event)
}

func TestGateway_ReusesSubscriptionPerEvent(t *testing.T) {
	srv, sender, ts := newTestServer(t)
	conn := dial(t, ts.URL)

	sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
	readReply(t, conn)
	sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "block"})
	readReply(t, conn)

	sent := sender.requests()
	require.Len(t, sent, 2)
	assert.Equal(t, sent[0].Event, sent[1].Event)
	assert.Equal(t, 1, srv.bus.Subscribers(sent[0].Event))
}

func TestGateway_ClientsAreIsolated(t *testing.T) {
	_, sender, ts := newTestServer(t)
	a := dial(t, ts.URL)
	b := dial(t, ts.URL)

	// Same event name on both clients
	sendRequest(t, b, "tree", message.ActionGet, map[string]any{"type": "section"})
	readReply(t, b)

	sendRequest(t, a, "tree", message.ActionGet, map[string]any{"type": "block"})
	reply := readReply(t, a)
	assert.JSONEq(t, `{"type":"block"}`, string(reply.Data))

	sent := sender.requests()
	require.Len(t, sent, 2)
	assert.NotEqual(t, sent[0].Event, sent[1].Event)

	require.NoError(t, b.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := b.ReadMessage()
	assert.Error(t, err, "the other client receives nothing")
}

func TestGateway_InvalidFrames(t *testing.T) {
	_, sender, ts := newTestServer(t)
	conn := dial(t, ts.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	reply := readReply(t, conn)
	assert.True(t, reply.Error)
	assert.Equal(t, "invalid request frame", reply.Message)
	assert.Equal(t, message.ActionLog, reply.Action)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"r1","action":"get"}`)))
	reply = readReply(t, conn)
	assert.True(t, reply.Error)
	assert.Equal(t, "r1", reply.ID)
	assert.Equal(t, "request needs an event", reply.Message)

	assert.Empty(t, sender.requests())
}

func TestGateway_AssignsMissingID(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"tree","action":"del","param":"/metadata/section/1","reply_to":"elsewhere"}`)))
	reply := readReply(t, conn)
	assert.NotEmpty(t, reply.ID)
	assert.Equal(t, "tree", reply.Event)
}

func TestGateway_SendErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid", errors.WrapInvalid(errors.ErrNoType, "DataAPI", "Send", "send request"), "invalid request"},
		{"shutting down", errors.WrapInvalid(errors.ErrShuttingDown, "Inline", "Send", "send request"), "service shutting down"},
		{"transient", errors.WrapTransient(errors.ErrConnectionLost, "NATS", "Send", "publish"), "service temporarily unavailable"},
		{"fatal", errors.WrapFatal(errors.ErrInvalidConfig, "NATS", "Send", "publish"), "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sender, ts := newTestServer(t)
			sender.err = tt.err
			conn := dial(t, ts.URL)

			req := sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
			reply := readReply(t, conn)
			assert.True(t, reply.Error)
			assert.Equal(t, req.ID, reply.ID)
			assert.Equal(t, "tree", reply.Event)
			assert.Equal(t, tt.want, reply.Message)
		})
	}
}

func TestGateway_RejectsStateEvents(t *testing.T) {
	srv, sender, ts := newTestServer(t)
	require.NoError(t, srv.bus.SetState("selection", "/metadata/section/1"))
	conn := dial(t, ts.URL)

	for _, event := range []string{StateClients, "selection"} {
		req := sendRequest(t, conn, event, message.ActionGet, map[string]any{"type": "section"})
		reply := readReply(t, conn)
		assert.Equal(t, req.ID, reply.ID)
		assert.True(t, reply.Error, event)
		assert.Equal(t, "event name is reserved", reply.Message)
	}
	assert.Empty(t, sender.requests())

	sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
	assert.False(t, readReply(t, conn).Error)
}

func TestGateway_RateLimit(t *testing.T) {
	b := bus.New()
	sender := &echoSender{bus: b}
	registry := metric.NewMetricsRegistry()
	srv, err := New(b, sender, Config{Path: "/ws", RateLimit: 1, RateBurst: 2}, WithMetrics(registry))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	conn := dial(t, ts.URL)

	var replies []message.Reply
	for i := 0; i < 3; i++ {
		sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
		replies = append(replies, readReply(t, conn))
	}

	assert.False(t, replies[0].Error)
	assert.False(t, replies[1].Error)
	assert.True(t, replies[2].Error)
	assert.Equal(t, "rate limit exceeded", replies[2].Message)
	assert.Equal(t, "tree", replies[2].Event)
	assert.Len(t, sender.requests(), 2)
	assert.Equal(t, 1.0, promtest.ToFloat64(srv.metrics.framesReceived.WithLabelValues("throttled")))
}

func TestGateway_MetricsConflictStillCounts(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	first, _, _ := newTestServer(t, WithMetrics(registry))
	second, _, ts := newTestServer(t, WithMetrics(registry))
	require.NotNil(t, first.metrics)
	require.NotNil(t, second.metrics)

	conn := dial(t, ts.URL)
	sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
	readReply(t, conn)
	assert.Equal(t, 1.0, promtest.ToFloat64(second.metrics.framesReceived.WithLabelValues("accepted")))
}

func TestGateway_ClientCountAndCleanup(t *testing.T) {
	srv, sender, ts := newTestServer(t)

	count := func() int {
		v, err := srv.bus.State(StateClients)
		if err != nil {
			return -1
		}
		return v.(int)
	}
	assert.Equal(t, 0, count())

	conn := dial(t, ts.URL)
	require.Eventually(t, func() bool { return count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Clients())

	sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
	readReply(t, conn)
	scoped := sender.requests()[0].Event
	require.Equal(t, 1, srv.bus.Subscribers(scoped))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	require.Eventually(t, func() bool { return count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, srv.bus.Subscribers(scoped), "subscriptions removed on disconnect")
	assert.Equal(t, 0, srv.Clients())
}

func TestGateway_Ping(t *testing.T) {
	_, _, ts := newTestServer(t, WithPingInterval(50*time.Millisecond))
	conn := dial(t, ts.URL)

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool { return pings.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_DropsSilentClients(t *testing.T) {
	srv, _, ts := newTestServer(t, WithPingInterval(20*time.Millisecond))
	conn := dial(t, ts.URL)
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	// The client never reads, so pongs are never sent and the read
	// deadline expires.
	_ = conn
	require.Eventually(t, func() bool { return srv.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_Healthz(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("executor", "ok")
	_, _, ts := newTestServer(t, WithHealthMonitor(monitor))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "wdat", status.Component)
	assert.True(t, status.IsHealthy())

	gw, ok := monitor.Get("gateway")
	require.True(t, ok)
	assert.Equal(t, "0 clients", gw.Message)
}

func TestGateway_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	srv, _, ts := newTestServer(t, WithMetrics(registry))
	conn := dial(t, ts.URL)

	sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
	readReply(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	readReply(t, conn)

	assert.Equal(t, 1.0, promtest.ToFloat64(srv.metrics.framesReceived.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, promtest.ToFloat64(srv.metrics.framesReceived.WithLabelValues("invalid")))
	assert.Equal(t, 2.0, promtest.ToFloat64(srv.metrics.framesSent))
	assert.Equal(t, 1.0, promtest.ToFloat64(srv.metrics.connectionTotal))
	assert.Equal(t, 1.0, promtest.ToFloat64(registry.CoreMetrics().GatewayClients))
}

func TestServer_StartStop(t *testing.T) {
	b := bus.New()
	monitor := health.NewMonitor()
	srv, err := New(b, &echoSender{bus: b}, Config{Port: 0, Path: "/ws"}, WithHealthMonitor(monitor))
	require.NoError(t, err)
	assert.Nil(t, srv.Addr())

	require.NoError(t, srv.Start(context.Background()))
	assert.Error(t, srv.Start(context.Background()), "second start")
	require.NotNil(t, srv.Addr())

	port := srv.Addr().(*net.TCPAddr).Port
	conn := dial(t, fmt.Sprintf("http://127.0.0.1:%d", port))
	sendRequest(t, conn, "tree", message.ActionGet, map[string]any{"type": "section"})
	assert.Equal(t, "tree", readReply(t, conn).Event)

	require.NoError(t, srv.Stop(2*time.Second))
	assert.Equal(t, 0, srv.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection closed by the server")

	status, ok := monitor.Get("gateway")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy())

	assert.NoError(t, srv.Stop(time.Second), "stop is idempotent")
	assert.Error(t, srv.Start(context.Background()), "no restart after stop")
}
