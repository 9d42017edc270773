// cache.go
// --------
// Cache stores query results keyed by call key. Every entry carries the tags
// of the endpoint that produced it so mutations can invalidate whole
// resource types at once.
//
// Each dispatched request is stamped with a generation number, and a
// completion is applied only if its generation is still the entry's current
// one. An entry invalidated or reset while its request is in flight keeps
// that request: the response is dropped and the same caller sends one
// follow-up request, so a key never has two requests on the wire.
//
// Entries nobody has read for longer than the TTL and nobody subscribes to
// are evicted.
package sourcewatch

import (
	"encoding/json"
	"sync"
	"time"
)

// Status is the lifecycle position of a cache entry.
type Status int

const (
	StatusUninitialized Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "uninitialized"
	}
}

// State is an immutable snapshot of a cache entry.
type State struct {
	Key       string
	Endpoint  string
	Status    Status
	Data      json.RawMessage
	Err       error
	FetchedAt time.Time
	// Stale is set once the entry was invalidated; the next query refetches.
	Stale bool
}

func (s State) IsLoading() bool { return s.Status == StatusPending }
func (s State) IsSuccess() bool { return s.Status == StatusSuccess }
func (s State) IsError() bool   { return s.Status == StatusError }

type cacheEntry struct {
	state       State
	tags        []Tag
	generation  uint64
	refetch     bool // invalidated while pending
	lastUsed    time.Time
	subscribers map[int]chan State
}

type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	now        func() time.Time
	generation uint64
	nextSub    int
	lastSweep  time.Time
}

// NewCache returns an empty cache. Successful entries older than ttl are
// treated as stale, and entries unread for ttl are evicted; ttl <= 0 keeps
// everything until invalidated.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) entry(key string) *cacheEntry {
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{
			state:       State{Key: key},
			subscribers: make(map[int]chan State),
		}
		c.entries[key] = e
	}
	return e
}

// sweep evicts unused entries at most once per ttl. c.mu must be held.
func (c *Cache) sweep() {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	if now.Sub(c.lastSweep) < c.ttl {
		return
	}
	c.lastSweep = now
	for key, e := range c.entries {
		if e.state.Status == StatusPending || len(e.subscribers) > 0 {
			continue
		}
		if now.Sub(e.lastUsed) > c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) expired(e *cacheEntry) bool {
	return e.state.Status == StatusSuccess && c.ttl > 0 && c.now().Sub(e.state.FetchedAt) > c.ttl
}

// begin decides whether key needs a request. It returns start=true with the
// generation to stamp on the new request, or pending=true when a request is
// already in flight. force ignores fresh and failed results but never starts
// a second request for a pending key.
func (c *Cache) begin(key, endpoint string, tags []Tag, force bool) (gen uint64, start, pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()
	e := c.entry(key)
	e.lastUsed = c.now()
	switch e.state.Status {
	case StatusPending:
		return e.generation, false, true
	case StatusSuccess:
		if !force && !e.state.Stale && !c.expired(e) {
			return e.generation, false, false
		}
	case StatusError:
		if !force && !e.state.Stale {
			return e.generation, false, false
		}
	}

	c.generation++
	e.generation = c.generation
	e.refetch = false
	e.tags = tags
	e.state.Endpoint = endpoint
	e.state.Status = StatusPending
	e.state.Stale = false
	c.notify(e)
	return e.generation, true, false
}

// complete records the outcome of the request stamped gen. applied is false
// when the outcome was dropped. A non-zero retry is the generation of the
// follow-up request the caller must send because the entry was invalidated
// while gen was in flight; the entry stays pending meanwhile.
func (c *Cache) complete(key string, gen uint64, data json.RawMessage, err error) (s State, applied bool, retry uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s = State{Key: key, Data: data, Err: err, FetchedAt: c.now()}
	if err != nil {
		s.Status = StatusError
	} else {
		s.Status = StatusSuccess
	}

	e, ok := c.entries[key]
	if !ok || e.generation != gen || e.state.Status != StatusPending {
		s.Endpoint = endpointOf(key)
		return s, false, 0
	}
	s.Endpoint = e.state.Endpoint
	if e.refetch {
		e.refetch = false
		c.generation++
		e.generation = c.generation
		return s, false, e.generation
	}
	if err != nil {
		// Keep the last good data visible next to the error.
		s.Data = e.state.Data
	}
	e.state = s
	c.notify(e)
	return s, true, 0
}

// Snapshot returns the current state of key.
func (c *Cache) Snapshot(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return State{Key: key, Endpoint: endpointOf(key)}
	}
	e.lastUsed = c.now()
	s := e.state
	if c.expired(e) {
		s.Stale = true
	}
	return s
}

// Invalidate marks every entry carrying one of tags as stale and returns the
// affected keys. A pending entry keeps its in-flight request, whose result
// is replaced by a follow-up request once it returns.
func (c *Cache) Invalidate(tags ...Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for key, e := range c.entries {
		if !hasAnyTag(e.tags, tags) {
			continue
		}
		keys = append(keys, key)
		e.state.Stale = true
		if e.state.Status == StatusPending {
			e.refetch = true
		}
		c.notify(e)
	}
	return keys
}

// Reset drops every entry and returns the keys it held. Subscribers stay
// registered and observe an uninitialized state. A pending entry is kept,
// emptied, and refetched once its in-flight request returns.
func (c *Cache) Reset() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for key, e := range c.entries {
		keys = append(keys, key)
		if e.state.Status == StatusPending {
			e.state = State{Key: key, Endpoint: e.state.Endpoint, Status: StatusPending}
			e.refetch = true
			c.notify(e)
			continue
		}
		e.state = State{Key: key, Endpoint: e.state.Endpoint}
		e.tags = nil
		c.notify(e)
		if len(e.subscribers) == 0 {
			delete(c.entries, key)
		}
	}
	return keys
}

// Subscribe delivers the latest state of key after each transition. Slow
// readers only ever see the most recent state.
func (c *Cache) Subscribe(key string) (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	e.subscribers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.entries[key]; ok {
			delete(cur.subscribers, id)
		}
	}
	return ch, cancel
}

// notify must be called with c.mu held.
func (c *Cache) notify(e *cacheEntry) {
	for _, ch := range e.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- e.state
	}
}

func hasAnyTag(have, want []Tag) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func endpointOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '(' {
			return key[:i]
		}
	}
	return key
}
