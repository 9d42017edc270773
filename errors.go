package sourcewatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrMissingParam    = errors.New("missing path parameter")
	ErrNotLoggedIn     = errors.New("not logged in")
)

// ErrorKind classifies how a call failed.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1 // no response received
	KindStatus                       // non-2xx response
	KindDecode                       // response body did not match the expected shape
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// APIError is the uniform failure stored on cache entries and returned by
// mutations.
type APIError struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int
	Body       []byte
	Detail     string // "detail" field of the error body, if any
	Err        error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Detail != "" {
			return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Detail)
		}
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s error: %v", e.Endpoint, e.Kind, e.Err)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

func newStatusError(endpoint string, resp *Response) *APIError {
	return &APIError{
		Kind:       KindStatus,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       resp.Data,
		Detail:     parseDetail(resp.Data),
	}
}

// parseDetail extracts the error message from a {"detail": ...} body. The
// server sends either a string or a list of validation errors.
func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return string(payload.Detail)
}

// IsStatus reports whether err is an APIError carrying the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindStatus && apiErr.StatusCode == code
}

func IsNotFound(err error) bool     { return IsStatus(err, http.StatusNotFound) }
func IsUnauthorized(err error) bool { return IsStatus(err, http.StatusUnauthorized) }
