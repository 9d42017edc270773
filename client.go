// client.go
// ---------
// The Client is the main entry point of the SDK. It owns the endpoint
// registry, the request executor and the query cache, and exposes the
// generic Query / Fetch / Mutate calls every typed helper is built on.
//
// Key behaviors:
// - Query returns the cached state at once and starts a fetch when the key
//   has no fresh entry.
// - Concurrent identical queries share one in-flight request.
// - Mutate always sends, and on success invalidates the tags it declares.
// - Nothing is retried automatically.
package sourcewatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type Client struct {
	registry *Registry
	builder  *RequestBuilder
	executor *RequestExecutor
	cache    *Cache
	tokens   TokenStore
	log      logrus.FieldLogger

	// dispatchMu makes "mark pending" and "register in-flight call" one
	// step, so a second caller can never see pending without a call to join.
	dispatchMu sync.Mutex
	group      singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithRegistry replaces the default webeye endpoint table.
func WithRegistry(r *Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithCache replaces the query cache.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// NewClient wires a client for cfg. transport sends the requests and tokens
// supplies the Authorization header; tokens may be nil.
func NewClient(cfg *Config, transport Transport, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		registry: DefaultRegistry(),
		cache:    NewCache(cfg.CacheTTL),
		tokens:   tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = NewLogger(cfg.Debug, nil)
	}
	c.builder = NewRequestBuilder(cfg.BaseURL(), c.registry, tokens)
	c.executor = NewRequestExecutor(c.builder, transport, c.log)
	return c
}

func (c *Client) Registry() *Registry { return c.registry }

func (c *Client) Tokens() TokenStore { return c.tokens }

func (c *Client) Builder() *RequestBuilder { return c.builder }

// Query returns the current state for (name, args) without blocking. When
// the key has no fresh entry a fetch is started and the returned state is
// pending.
func (c *Client) Query(ctx context.Context, name string, args Args) State {
	ep, key, err := c.queryKey(name, args)
	if err != nil {
		return State{Key: key, Endpoint: name, Status: StatusError, Err: err}
	}
	c.dispatch(ctx, ep, key, args, false)
	return c.cache.Snapshot(key)
}

// Fetch is the blocking form of Query. A cached result is returned as is;
// otherwise Fetch joins or starts the request and waits for it. Cancelling
// ctx stops the wait, not the request.
func (c *Client) Fetch(ctx context.Context, name string, args Args) (State, error) {
	return c.fetch(ctx, name, args, false)
}

// Refetch sends the query again even when a cached result exists. A request
// already in flight for the key is joined instead.
func (c *Client) Refetch(ctx context.Context, name string, args Args) (State, error) {
	return c.fetch(ctx, name, args, true)
}

func (c *Client) fetch(ctx context.Context, name string, args Args, force bool) (State, error) {
	ep, key, err := c.queryKey(name, args)
	if err != nil {
		return State{Key: key, Endpoint: name, Status: StatusError, Err: err}, err
	}
	ch := c.dispatch(ctx, ep, key, args, force)
	if ch == nil {
		s := c.cache.Snapshot(key)
		return s, s.Err
	}
	select {
	case <-ctx.Done():
		return c.cache.Snapshot(key), ctx.Err()
	case res := <-ch:
		s := res.Val.(State)
		return s, s.Err
	}
}

// Subscribe observes the cache entry of (name, args).
func (c *Client) Subscribe(name string, args Args) (<-chan State, func(), error) {
	_, key, err := c.queryKey(name, args)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := c.cache.Subscribe(key)
	return ch, cancel, nil
}

// Mutate sends a state-changing call. Mutations are never cached or
// deduplicated; a 2xx response invalidates the endpoint's tags.
func (c *Client) Mutate(ctx context.Context, name string, args Args, opts ...CallOption) (*Response, error) {
	ep, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if ep.Kind != KindMutation {
		return nil, fmt.Errorf("%s is a %s, not a mutation", name, ep.Kind)
	}
	call := Call{Endpoint: name, Args: args}
	for _, opt := range opts {
		opt(&call)
	}
	resp, err := c.executor.Execute(ctx, call)
	if err != nil {
		return resp, err
	}
	if keys := c.Invalidate(ep.Invalidates...); len(keys) > 0 {
		c.log.WithFields(logrus.Fields{"endpoint": name, "invalidated": len(keys)}).Debug("invalidated cache entries")
	}
	return resp, nil
}

// Invalidate marks every entry tagged with one of tags stale. An entry with
// a request in flight is refetched once that request returns; callers
// waiting on it receive the refetched state.
func (c *Client) Invalidate(tags ...Tag) []string {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	return c.cache.Invalidate(tags...)
}

// Reset drops the whole cache, e.g. after logout. Requests in flight are
// sent again once they return, so their callers never see pre-reset data.
func (c *Client) Reset() {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	c.cache.Reset()
}

func (c *Client) queryKey(name string, args Args) (Endpoint, string, error) {
	ep, err := c.registry.Lookup(name)
	if err != nil {
		return Endpoint{}, name + "()", err
	}
	if ep.Kind != KindQuery {
		return ep, name + "()", fmt.Errorf("%s is a %s, use Mutate", name, ep.Kind)
	}
	key, err := CallKey(name, args)
	if err != nil {
		return ep, name + "()", err
	}
	return ep, key, nil
}

// dispatch returns the channel of the in-flight request for key, starting
// one when needed, or nil when the cached state should be served.
func (c *Client) dispatch(ctx context.Context, ep Endpoint, key string, args Args, force bool) <-chan singleflight.Result {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	gen, start, pending := c.cache.begin(key, ep.Name, ep.Provides, force)
	if !start && !pending {
		return nil
	}
	if start {
		// A call still registered under key has already completed; a new
		// generation must not join it.
		c.group.Forget(key)
	}
	// Shared requests outlive the caller that happened to start them.
	detached := context.WithoutCancel(ctx)
	return c.group.DoChan(key, func() (any, error) {
		return c.run(detached, ep, key, args, gen), nil
	})
}

func (c *Client) run(ctx context.Context, ep Endpoint, key string, args Args, gen uint64) State {
	for {
		resp, err := c.executor.Execute(ctx, Call{Endpoint: ep.Name, Args: args})
		var data json.RawMessage
		if err == nil && len(resp.Data) > 0 {
			if !json.Valid(resp.Data) {
				err = &APIError{Kind: KindDecode, Endpoint: ep.Name, StatusCode: resp.StatusCode, Body: resp.Data, Err: errInvalidJSON}
			} else {
				data = json.RawMessage(resp.Data)
			}
		}
		s, applied, retry := c.cache.complete(key, gen, data, err)
		if retry != 0 {
			c.log.WithField("key", key).Debug("entry invalidated in flight, refetching")
			gen = retry
			continue
		}
		if !applied {
			c.log.WithField("key", key).Debug("dropped result of reset entry")
		}
		return s
	}
}

var errInvalidJSON = errors.New("response body is not valid JSON")

// CallOption adjusts a single mutation call.
type CallOption func(*Call)

// WithHeader overrides a request header. An empty value removes it.
func WithHeader(name, value string) CallOption {
	return func(c *Call) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[name] = value
	}
}

// WithForm sends form as a multipart body.
func WithForm(form *Form) CallOption {
	return func(c *Call) { c.Form = form }
}

// FetchAs fetches a query and decodes its data into T.
func FetchAs[T any](ctx context.Context, c *Client, name string, args Args) (T, error) {
	var out T
	s, err := c.Fetch(ctx, name, args)
	if err != nil {
		return out, err
	}
	return decodeInto[T](name, s.Data)
}

// MutateAs sends a mutation and decodes its response into T. An empty body
// leaves T at its zero value.
func MutateAs[T any](ctx context.Context, c *Client, name string, args Args, opts ...CallOption) (T, error) {
	var out T
	resp, err := c.Mutate(ctx, name, args, opts...)
	if err != nil {
		return out, err
	}
	return decodeInto[T](name, resp.Data)
}

func decodeInto[T any](name string, data []byte) (T, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &APIError{Kind: KindDecode, Endpoint: name, Body: data, Err: err}
	}
	return out, nil
}

// NewLogger returns the SDK's logrus logger. Debug enables request tracing.
func NewLogger(debug bool, out io.Writer) *logrus.Logger {
	log := logrus.New()
	if out != nil {
		log.SetOutput(out)
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}
