package sourcewatch

import (
	"net/http"
)

// Args are the runtime arguments of a call: path parameters, query
// parameters and body fields, told apart by the endpoint descriptor.
type Args map[string]any

// Call is a logical invocation of a registered endpoint.
type Call struct {
	Endpoint string
	Args     Args
	// Headers override the defaults. An empty value removes the header.
	Headers map[string]string
	// Form, when set, is sent as a multipart body instead of JSON.
	Form *Form
}

// Request is a fully resolved outgoing HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw result of a transport round trip.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Data       []byte
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
