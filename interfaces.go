package sourcewatch

import "context"

// Transport sends a built request and returns the raw response. A non-nil
// error means no response was received.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TokenStore holds the process-wide auth token. Token returns "" with a nil
// error when nobody is logged in.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}
