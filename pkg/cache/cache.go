package cache

import (
	"container/list"
	"reflect"
	"sync"
	"time"

	"github.com/G-Node/wdat2-sub001/errors"
)

// DefaultCapacity is the number of entries kept after an eviction pass.
const DefaultCapacity = 1000

// EvictCallback is called for every entry removed by EvictOverCapacity.
type EvictCallback[V any] func(entry Entry[V])

// Entry is one cached response: the server-relative URL, the validator the
// server returned for it and the parsed body. Timestamp is in Unix
// nanoseconds and strictly increases across stores.
type Entry[V any] struct {
	URL       string
	ETag      string
	Content   V
	Timestamp int64
}

// ETagCache maps request URLs to the last validated response and resolves
// a 304 validator back to its content.
//
// Entries are kept in store order, newest at the front. Because timestamps
// strictly increase, store order is timestamp order and eviction drops from
// the back. Reads never reorder entries.
type ETagCache[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element // url -> element
	order    *list.List               // newest first
	byETag   map[string]string        // etag -> url of the most recent holder
	last     int64
	clock    func() time.Time
	stats    *Statistics
	evictFn  EvictCallback[V]
}

// New creates a cache that keeps capacity entries after each eviction pass.
// Statistics are always collected; use WithMetrics to export them.
func New[V any](capacity int, options ...Option[V]) (*ETagCache[V], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New",
			"capacity must be positive")
	}

	opts := applyOptions(options...)

	stats := NewStatistics()
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		export, err := newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
		stats.export = export
	}

	return &ETagCache[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		byETag:   make(map[string]string),
		clock:    opts.clock,
		stats:    stats,
		evictFn:  opts.evictCallback,
	}, nil
}

// ETagFor returns the validator stored for url.
func (c *ETagCache[V]) ETagFor(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[url]
	if !ok {
		return "", false
	}
	return element.Value.(*Entry[V]).ETag, true
}

// ContentForETag returns the content of the most recently stored entry
// carrying etag.
func (c *ETagCache[V]) ContentForETag(etag string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url, ok := c.byETag[etag]
	if !ok {
		var zero V
		c.stats.Miss()
		return zero, false
	}

	c.stats.Hit()
	return c.items[url].Value.(*Entry[V]).Content, true
}

// Store records content under url with the given validator, replacing any
// previous entry for url. It is a no-op returning false when url or etag is
// empty or content is nil.
func (c *ETagCache[V]) Store(url, etag string, content V) bool {
	if url == "" || etag == "" || isNil(content) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.clock().UnixNano()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts

	if element, ok := c.items[url]; ok {
		old := element.Value.(*Entry[V])
		c.order.Remove(element)
		delete(c.items, url)
		c.unindex(old)
	}

	entry := &Entry[V]{URL: url, ETag: etag, Content: content, Timestamp: ts}
	c.items[url] = c.order.PushFront(entry)
	c.byETag[etag] = url

	c.stats.Set()
	c.stats.UpdateSize(int64(len(c.items)))
	return true
}

// EvictOverCapacity removes the oldest entries until at most capacity
// remain and returns how many were removed.
func (c *ETagCache[V]) EvictOverCapacity() int {
	c.mu.Lock()
	var evicted []*Entry[V]
	for len(c.items) > c.capacity {
		element := c.order.Back()
		entry := element.Value.(*Entry[V])
		c.order.Remove(element)
		delete(c.items, entry.URL)
		c.unindex(entry)
		evicted = append(evicted, entry)

		c.stats.Eviction()
	}
	c.stats.UpdateSize(int64(len(c.items)))
	evictFn := c.evictFn
	c.mu.Unlock()

	if evictFn != nil {
		for _, entry := range evicted {
			evictFn(*entry)
		}
	}
	return len(evicted)
}

// unindex drops entry from the etag index. If another entry still carries
// the same validator, the most recent one takes over. Callers hold c.mu and
// have already removed entry from items.
func (c *ETagCache[V]) unindex(entry *Entry[V]) {
	if c.byETag[entry.ETag] != entry.URL {
		return
	}
	delete(c.byETag, entry.ETag)
	for e := c.order.Front(); e != nil; e = e.Next() {
		if other := e.Value.(*Entry[V]); other.ETag == entry.ETag {
			c.byETag[entry.ETag] = other.URL
			return
		}
	}
}

// Len returns the number of stored entries.
func (c *ETagCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the configured capacity.
func (c *ETagCache[V]) Capacity() int {
	return c.capacity
}

// Entries returns a snapshot ordered oldest first.
func (c *ETagCache[V]) Entries() []Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry[V], 0, len(c.items))
	for e := c.order.Back(); e != nil; e = e.Prev() {
		out = append(out, *e.Value.(*Entry[V]))
	}
	return out
}

// Stats returns the cache statistics.
func (c *ETagCache[V]) Stats() *Statistics {
	return c.stats
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
