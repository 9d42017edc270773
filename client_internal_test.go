package sourcewatch

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransport struct {
	mu    sync.Mutex
	count int
}

func (c *countingTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return &Response{StatusCode: 200, Data: []byte(`[]`)}, nil
}

func TestClient_NewGenerationNeverJoinsLingeringCall(t *testing.T) {
	tr := &countingTransport{}
	c := NewClient(&Config{APIHost: "http://api.test", APIPort: 8000}, tr, nil,
		WithLogger(NewLogger(false, io.Discard)))
	key, err := CallKey(OpGetAllReports, nil)
	require.NoError(t, err)

	// A call whose result was already stored but that singleflight has not
	// yet unregistered.
	release := make(chan struct{})
	defer close(release)
	c.group.DoChan(key, func() (any, error) {
		<-release
		return State{Key: key, Status: StatusSuccess}, nil
	})

	s, err := c.Refetch(context.Background(), OpGetAllReports, nil)
	require.NoError(t, err)
	assert.True(t, s.IsSuccess())
	assert.JSONEq(t, `[]`, string(s.Data))
	tr.mu.Lock()
	assert.Equal(t, 1, tr.count)
	tr.mu.Unlock()
}
