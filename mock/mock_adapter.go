package mock

import (
	"context"
	"sync"

	sourcewatch "github.com/webeye/sourcewatch"
)

// MockAdapter is an in-memory Transport. Every request is recorded; the
// response comes from Handler, or a 200 with Body when Handler is nil.
type MockAdapter struct {
	Handler func(req *sourcewatch.Request) (*sourcewatch.Response, error)
	Body    []byte

	// Gate, when set, holds every request until it receives a value or is
	// closed. Tests use it to keep requests in flight.
	Gate chan struct{}

	mu       sync.Mutex
	requests []*sourcewatch.Request
	started  chan struct{}
}

func NewMockAdapter(body string) *MockAdapter {
	return &MockAdapter{Body: []byte(body), started: make(chan struct{}, 64)}
}

func (m *MockAdapter) Do(ctx context.Context, req *sourcewatch.Request) (*sourcewatch.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	started := m.started
	m.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Handler != nil {
		return m.Handler(req)
	}
	return &sourcewatch.Response{
		StatusCode: 200,
		Headers:    map[string]string{"content-type": "application/json"},
		Data:       m.Body,
	}, nil
}

// Started signals once per request that reached the adapter.
func (m *MockAdapter) Started() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started == nil {
		m.started = make(chan struct{}, 64)
	}
	return m.started
}

// Requests returns a copy of the recorded requests.
func (m *MockAdapter) Requests() []*sourcewatch.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*sourcewatch.Request(nil), m.requests...)
}

func (m *MockAdapter) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// JSON builds a response with the given status and body.
func JSON(status int, body string) *sourcewatch.Response {
	return &sourcewatch.Response{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Data:       []byte(body),
	}
}
