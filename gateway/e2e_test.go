package gateway_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Node/wdat2-sub001/bus"
	"github.com/G-Node/wdat2-sub001/dataapi"
	"github.com/G-Node/wdat2-sub001/dispatcher"
	"github.com/G-Node/wdat2-sub001/gateway"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/network"
	"github.com/G-Node/wdat2-sub001/pkg/cache"
	"github.com/G-Node/wdat2-sub001/testutil"
)

func TestGateway_DataAPIEndToEnd(t *testing.T) {
	repo := testutil.NewRepositoryServer(t)
	repo.Put("/metadata/section", testutil.Section(1, "Stimulus", nil), testutil.Section(2, "Animal", nil))

	cfg := network.DefaultConfig()
	cfg.BaseURL = repo.URL
	cfg.Timeout = 2 * time.Second
	responses, err := cache.New[*network.Body](cache.DefaultCapacity)
	require.NoError(t, err)
	exec, err := network.NewExecutor(cfg, responses)
	require.NoError(t, err)

	// Deliver failed replies so clients see them
	b := bus.New(bus.WithErrorHook(func(string, any) bool { return true }))
	api, err := dataapi.New(b, dispatcher.NewInline(dispatcher.New(exec)))
	require.NoError(t, err)

	srv, err := gateway.New(b, api, gateway.DefaultConfig())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	req, err := message.NewRequest("tree", message.ActionGet,
		network.Specifier{"type": "section", "parent": ""}, "root")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var reply message.Reply
	require.NoError(t, conn.ReadJSON(&reply))

	require.False(t, reply.Error, reply.Message)
	assert.Equal(t, "tree", reply.Event)
	assert.Equal(t, req.ID, reply.ID)
	require.Len(t, reply.Primary, 2)
	assert.Equal(t, "Animal", reply.Primary[0].Name)
	assert.JSONEq(t, `"root"`, string(reply.Info))

	// A failed lookup comes back as an error reply on the same event
	bad, err := message.NewRequest("tree", message.ActionGetByURL, []string{"/metadata/section/99"}, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(bad))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var failed message.Reply
	require.NoError(t, conn.ReadJSON(&failed))
	assert.True(t, failed.Error)
	assert.Equal(t, "tree", failed.Event)
	assert.Equal(t, bad.ID, failed.ID)
}
