package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/model"
	"github.com/G-Node/wdat2-sub001/testutil"
)

// collector gathers replies delivered on any goroutine.
type collector struct {
	mu      sync.Mutex
	replies []message.Reply
}

func (c *collector) handle(reply message.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, reply)
}

func (c *collector) all() []message.Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.Reply(nil), c.replies...)
}

func (c *collector) wait(t *testing.T, n int) []message.Reply {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.all()) >= n }, 2*time.Second, 5*time.Millisecond)
	return c.all()
}

func sectionServer(t *testing.T) *testutil.RepositoryServer {
	srv := testutil.NewRepositoryServer(t)
	srv.Put(testutil.Path(model.Section, 1), testutil.Section(1, "one", nil))
	srv.Put(testutil.Path(model.Section, 2), testutil.Section(2, "two", nil))
	return srv
}

func TestInline_DeliversBeforeReturning(t *testing.T) {
	d := newDispatcher(t, sectionServer(t))
	tr := NewInline(d)

	var got collector
	tr.OnReply(got.handle)

	req := newRequest(t, message.ActionGetByURL, testutil.Path(model.Section, 1))
	require.NoError(t, tr.Send(context.Background(), req))

	replies := got.all()
	require.Len(t, replies, 1)
	assert.Equal(t, req.ID, replies[0].ID)
	assert.Equal(t, "one", replies[0].Primary[0].Name)

	require.NoError(t, tr.Close(context.Background()))
	err := tr.Send(context.Background(), req)
	assert.ErrorIs(t, err, errors.ErrShuttingDown)
}

func TestWorker_RoundTrip(t *testing.T) {
	d := newDispatcher(t, sectionServer(t))
	tr, err := NewWorker(context.Background(), d, WithPoolSize(2, 10))
	require.NoError(t, err)
	defer tr.Close(context.Background())

	var got collector
	tr.OnReply(got.handle)

	ids := map[string]bool{}
	for _, id := range []int{1, 2, 1} {
		req := newRequest(t, message.ActionGetByURL, testutil.Path(model.Section, id))
		ids[req.ID] = true
		require.NoError(t, tr.Send(context.Background(), req))
	}

	for _, reply := range got.wait(t, 3) {
		assert.True(t, ids[reply.ID], "unexpected reply %s", reply.ID)
		assert.False(t, reply.Error, reply.Message)
		assert.Equal(t, message.ActionGetByURL, reply.Action)
	}
	assert.Equal(t, int64(3), tr.Stats().Submitted)
}

func TestWorker_RequestsAreCopiedOnSend(t *testing.T) {
	d := newDispatcher(t, sectionServer(t))
	tr, err := NewWorker(context.Background(), d)
	require.NoError(t, err)
	defer tr.Close(context.Background())

	var got collector
	tr.OnReply(got.handle)

	param := json.RawMessage(`"/metadata/section/1"`)
	req := newRequest(t, message.ActionGetByURL, nil)
	req.Param = param
	require.NoError(t, tr.Send(context.Background(), req))
	copy(param, `"/metadata/section/2"`)

	replies := got.wait(t, 1)
	require.False(t, replies[0].Error, replies[0].Message)
	assert.Equal(t, "one", replies[0].Primary[0].Name)
}

func TestWorker_PanicPublishesNothing(t *testing.T) {
	d := newDispatcher(t, sectionServer(t))
	tr, err := NewWorker(context.Background(), d)
	require.NoError(t, err)
	defer tr.Close(context.Background())

	var (
		calls atomic.Int32
		got   collector
	)
	tr.OnReply(func(reply message.Reply) {
		if calls.Add(1) == 1 {
			panic("handler blew up")
		}
		got.handle(reply)
	})

	first := newRequest(t, message.ActionGetByURL, testutil.Path(model.Section, 1))
	second := newRequest(t, message.ActionGetByURL, testutil.Path(model.Section, 2))
	require.NoError(t, tr.Send(context.Background(), first))
	require.NoError(t, tr.Send(context.Background(), second))

	replies := got.wait(t, 1)
	require.Len(t, replies, 1)
	assert.Equal(t, second.ID, replies[0].ID)

	stats := tr.Stats()
	assert.Equal(t, int64(1), stats.Panicked)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestWorker_SendAfterClose(t *testing.T) {
	d := newDispatcher(t, sectionServer(t))
	tr, err := NewWorker(context.Background(), d)
	require.NoError(t, err)
	require.NoError(t, tr.Close(context.Background()))

	err = tr.Send(context.Background(), newRequest(t, message.ActionGetByURL, "/metadata/section/1"))
	assert.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestNATS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewFakeNATS()
	d := newDispatcher(t, sectionServer(t))

	require.NoError(t, ServeNATS(ctx, client, d))
	tr, err := NewNATS(ctx, client)
	require.NoError(t, err)

	var got collector
	tr.OnReply(got.handle)

	req := newRequest(t, message.ActionGetByURL, testutil.Path(model.Section, 2))
	require.NoError(t, tr.Send(ctx, req))

	replies := got.wait(t, 1)
	assert.Equal(t, req.ID, replies[0].ID)
	assert.Equal(t, "two", replies[0].Primary[0].Name)

	sent, err := message.DecodeRequest(client.Published("wdat.request")[0])
	require.NoError(t, err)
	assert.Equal(t, tr.ReplySubject(), sent.ReplyTo)
	assert.Contains(t, tr.ReplySubject(), "wdat.reply.")
	assert.Equal(t, 1, client.PublishCount(tr.ReplySubject()))
}

func TestNATS_InstancesGetOwnReplies(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewFakeNATS()
	d := newDispatcher(t, sectionServer(t))
	require.NoError(t, ServeNATS(ctx, client, d, WithSubjectPrefix("lab")))

	a, err := NewNATS(ctx, client, WithSubjectPrefix("lab"))
	require.NoError(t, err)
	b, err := NewNATS(ctx, client, WithSubjectPrefix("lab"))
	require.NoError(t, err)
	assert.NotEqual(t, a.ReplySubject(), b.ReplySubject())

	var gotA, gotB collector
	a.OnReply(gotA.handle)
	b.OnReply(gotB.handle)

	require.NoError(t, a.Send(ctx, newRequest(t, message.ActionGetByURL, testutil.Path(model.Section, 1))))

	gotA.wait(t, 1)
	assert.Empty(t, gotB.all())
	assert.Equal(t, 1, client.PublishCount("lab.request"))
}

func TestServeNATS_DropsUnroutableRequests(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewFakeNATS()
	srv := sectionServer(t)
	require.NoError(t, ServeNATS(ctx, client, newDispatcher(t, srv)))

	req := newRequest(t, message.ActionGetByURL, testutil.Path(model.Section, 1))
	data, err := message.Encode(req)
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctx, "wdat.request", data))
	require.NoError(t, client.Publish(ctx, "wdat.request", []byte("{not json")))

	assert.Empty(t, srv.Requests(), "requests without a reply subject are not run")
}

func TestNATS_ClosedTransport(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewFakeNATS()
	tr, err := NewNATS(ctx, client)
	require.NoError(t, err)

	var got collector
	tr.OnReply(got.handle)
	require.NoError(t, tr.Close(ctx))

	err = tr.Send(ctx, newRequest(t, message.ActionGetByURL, "/metadata/section/1"))
	assert.ErrorIs(t, err, errors.ErrShuttingDown)

	reply, err := message.Encode(message.Reply{ID: "late"})
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctx, tr.ReplySubject(), reply))
	assert.Empty(t, got.all())

	_, err = NewNATS(ctx, nil)
	assert.Error(t, err)
}
