// request_builder.go
// ------------------
// RequestBuilder turns a logical Call into a concrete Request: it resolves
// the URL from the versioned base and the endpoint's path template, encodes
// the query string, merges headers over the JSON default and serializes the
// body. The auth token is read from the TokenStore on every build.
package sourcewatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
)

// RequestBuilder resolves calls against a registry and a versioned base URL.
type RequestBuilder struct {
	baseURL  string
	registry *Registry
	tokens   TokenStore
}

// NewRequestBuilder returns a builder for the given versioned base URL
// (for example "http://localhost:8000/api/"). tokens may be nil.
func NewRequestBuilder(baseURL string, registry *Registry, tokens TokenStore) *RequestBuilder {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &RequestBuilder{baseURL: baseURL, registry: registry, tokens: tokens}
}

// Build resolves call against the registry and returns the request to send.
func (b *RequestBuilder) Build(call Call) (*Request, error) {
	ep, err := b.registry.Lookup(call.Endpoint)
	if err != nil {
		return nil, err
	}

	consumed := make(map[string]bool)
	path, err := expandPath(ep, call.Args, consumed)
	if err != nil {
		return nil, err
	}

	u := b.baseURL + path
	query := url.Values{}
	for _, name := range ep.QueryParams {
		consumed[name] = true
		if v, ok := call.Args[name]; ok && v != nil {
			addQueryValue(query, name, v)
		}
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	method := ep.Method
	if method == "" {
		method = http.MethodPost
	}

	header := http.Header{}
	header.Set(headerContentType, contentTypeJSON)

	var body []byte
	form := call.Form
	if form == nil && ep.Body == BodyForm {
		form = formFromArgs(call.Args, consumed)
	}
	switch {
	case form != nil:
		data, contentType, err := form.encode()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ep.Name, err)
		}
		body = data
		// The JSON default is dropped, never merged, for form payloads.
		header.Set(headerContentType, contentType)
	case ep.Body == BodyJSON:
		payload := make(map[string]any, len(call.Args))
		for k, v := range call.Args {
			if !consumed[k] {
				payload[k] = v
			}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", ep.Name, err)
		}
		body = data
	default:
		header.Del(headerContentType)
	}

	authOverridden := false
	for k, v := range call.Headers {
		if http.CanonicalHeaderKey(k) == headerAuthorization {
			authOverridden = true
		}
		if v == "" {
			header.Del(k)
			continue
		}
		header.Set(k, v)
	}

	if b.tokens != nil && !authOverridden {
		token, err := b.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			header.Set(headerAuthorization, token)
		}
	}

	return &Request{Method: method, URL: u, Header: header, Body: body}, nil
}

func expandPath(ep Endpoint, args Args, consumed map[string]bool) (string, error) {
	path := ep.Path
	for _, name := range ep.PathParams() {
		v, ok := args[name]
		if !ok || v == nil || formatValue(v) == "" {
			return "", fmt.Errorf("%s: %w %q", ep.Name, ErrMissingParam, name)
		}
		consumed[name] = true
		path = strings.Replace(path, "{"+name+"}", url.PathEscape(formatValue(v)), 1)
	}
	return path, nil
}

func addQueryValue(q url.Values, name string, v any) {
	switch vs := v.(type) {
	case []string:
		for _, s := range vs {
			q.Add(name, s)
		}
	case []any:
		for _, item := range vs {
			q.Add(name, formatValue(item))
		}
	default:
		q.Add(name, formatValue(v))
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(args Args) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
