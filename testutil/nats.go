package testutil

import (
	"context"
	"sync"

	"github.com/G-Node/wdat2-sub001/errors"
)

type natsHandler = func(context.Context, []byte)

// FakeNATS is an in-memory subject router with the Publish and Subscribe
// methods of natsclient.Client. Subjects match exactly, without
// wildcards. Handlers run on the publishing goroutine, so a request and
// its reply are both delivered before the outer Publish returns.
type FakeNATS struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string][]natsHandler
	closed    bool
}

// NewFakeNATS returns an open fake with no subscribers.
func NewFakeNATS() *FakeNATS {
	return &FakeNATS{
		published: map[string][][]byte{},
		handlers:  map[string][]natsHandler{},
	}
}

func (f *FakeNATS) Publish(ctx context.Context, subject string, data []byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.ErrNoConnection
	}
	f.published[subject] = append(f.published[subject], data)
	handlers := append([]natsHandler(nil), f.handlers[subject]...)
	f.mu.Unlock()

	for _, h := range handlers {
		h(ctx, data)
	}
	return nil
}

func (f *FakeNATS) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.ErrNoConnection
	}
	f.handlers[subject] = append(f.handlers[subject], handler)
	return nil
}

// Published returns the payloads sent to subject, oldest first.
func (f *FakeNATS) Published(subject string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.published[subject]...)
}

// PublishCount is len(Published(subject)).
func (f *FakeNATS) PublishCount(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[subject])
}

// Close fails every later Publish and Subscribe with ErrNoConnection.
func (f *FakeNATS) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
