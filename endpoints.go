// endpoints.go
// ------------
// This file defines the static endpoint registry: every operation the remote
// API supports is declared here once, with its HTTP method, path template,
// query parameters, body kind and cache tags.
//
// The registry is validated when it is built. A call that names an
// operation missing from the table fails with ErrUnknownEndpoint.
package sourcewatch

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind separates cached reads from state-changing calls.
type Kind int

const (
	KindQuery Kind = iota
	KindMutation
)

func (k Kind) String() string {
	if k == KindMutation {
		return "mutation"
	}
	return "query"
}

// BodyKind describes how the remaining call arguments are sent.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyJSON
	BodyForm
)

// Tag labels cache entries with the resource type they hold.
type Tag string

const (
	TagUser         Tag = "User"
	TagSource       Tag = "Source"
	TagReview       Tag = "Review"
	TagReport       Tag = "Report"
	TagSocialReport Tag = "SocialReport"
	TagSubscription Tag = "Subscription"
	TagNode         Tag = "Node"
)

// Endpoint is an immutable descriptor of one remote operation.
type Endpoint struct {
	Name        string
	Kind        Kind
	Method      string // POST when empty
	Path        string // relative to the versioned base, e.g. "resources/{uuid}"
	QueryParams []string
	Body        BodyKind
	Provides    []Tag
	Invalidates []Tag
}

// PathParams returns the slot names of the path template in order.
func (e Endpoint) PathParams() []string {
	var params []string
	rest := e.Path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return params
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return params
		}
		params = append(params, rest[open+1:open+end])
		rest = rest[open+end+1:]
	}
}

func (e Endpoint) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("endpoint with path %q has no name", e.Path)
	}
	if strings.Count(e.Path, "{") != strings.Count(e.Path, "}") {
		return fmt.Errorf("endpoint %q: unbalanced path template %q", e.Name, e.Path)
	}
	for _, p := range e.PathParams() {
		if p == "" || strings.ContainsAny(p, "{}/") {
			return fmt.Errorf("endpoint %q: bad path parameter in %q", e.Name, e.Path)
		}
	}
	switch e.Kind {
	case KindQuery:
		if len(e.Invalidates) > 0 {
			return fmt.Errorf("endpoint %q: queries cannot invalidate tags", e.Name)
		}
		if e.Body != BodyNone {
			return fmt.Errorf("endpoint %q: queries cannot carry a body", e.Name)
		}
	case KindMutation:
		if len(e.Provides) > 0 {
			return fmt.Errorf("endpoint %q: mutations cannot provide tags", e.Name)
		}
	default:
		return fmt.Errorf("endpoint %q: unknown kind %d", e.Name, e.Kind)
	}
	return nil
}

// Registry maps operation names to their descriptors. It is never modified
// after construction.
type Registry struct {
	endpoints map[string]Endpoint
}

// NewRegistry validates and indexes the given descriptors.
func NewRegistry(endpoints ...Endpoint) (*Registry, error) {
	r := &Registry{endpoints: make(map[string]Endpoint, len(endpoints))}
	for _, e := range endpoints {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.endpoints[e.Name]; dup {
			return nil, fmt.Errorf("endpoint %q declared twice", e.Name)
		}
		r.endpoints[e.Name] = e
	}
	return r, nil
}

// Lookup returns the descriptor declared for name.
func (r *Registry) Lookup(name string) (Endpoint, error) {
	e, ok := r.endpoints[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	return e, nil
}

// Names lists every declared operation, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.endpoints))
	for n := range r.endpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Operation names of the webeye API.
const (
	OpRegisterUser          = "registerUser"
	OpLoginUser             = "loginUser"
	OpCheckUser             = "checkUser"
	OpGetBotToken           = "getBotToken"
	OpGetSource             = "getSource"
	OpGetAllSources         = "getAllSources"
	OpGetDdos               = "getDdos"
	OpGetAllSocialReports   = "getAllSocialReports"
	OpGetAllReviews         = "getAllReviews"
	OpPostReview            = "postReview"
	OpGetSubscriptions      = "getSubscriptions"
	OpPostSubscriptions     = "postSubscriptions"
	OpPatchSubscriptions    = "patchSubscriptions"
	OpPostReport            = "postReport"
	OpGetAllReports         = "getAllReports"
	OpGetSourceReports      = "getSourceReports"
	OpAdminPatchReport      = "adminPatchReport"
	OpAdminDeleteReport     = "adminDeleteReport"
	OpGetAllCheckResults    = "getAllCheckResults"
	OpAdminPostResource     = "adminPostResource"
	OpAdminDeleteResource   = "adminDeleteResource"
	OpAdminPostResourceNode = "adminPostResourceNode"
	OpGetAllResourceNodes   = "getAllResourceNodes"
)

var defaultEndpoints = []Endpoint{
	{Name: OpRegisterUser, Kind: KindMutation, Method: http.MethodPost, Path: "auth/users/", Body: BodyJSON, Invalidates: []Tag{TagUser}},
	{Name: OpLoginUser, Kind: KindMutation, Method: http.MethodPost, Path: "auth/login/access-token", Body: BodyForm, Invalidates: []Tag{TagUser}},
	{Name: OpCheckUser, Kind: KindQuery, Method: http.MethodGet, Path: "auth/users/me", Provides: []Tag{TagUser}},
	{Name: OpGetBotToken, Kind: KindMutation, Method: http.MethodGet, Path: "auth/users/telegram/generate_token"},

	{Name: OpGetSource, Kind: KindQuery, Method: http.MethodGet, Path: "resources/{uuid}", Provides: []Tag{TagSource}},
	{Name: OpGetAllSources, Kind: KindQuery, Method: http.MethodGet, Path: "resources/", QueryParams: []string{"skip", "limit", "status", "name"}, Provides: []Tag{TagSource}},
	{Name: OpGetDdos, Kind: KindMutation, Method: http.MethodGet, Path: "resources/is_ddos"},
	{Name: OpGetAllSocialReports, Kind: KindQuery, Method: http.MethodGet, Path: "resources/{uuid}/social_reports", Provides: []Tag{TagSocialReport}},
	{Name: OpGetAllReviews, Kind: KindQuery, Method: http.MethodGet, Path: "resources/{uuid}/reviews", Provides: []Tag{TagReview}},
	{Name: OpPostReview, Kind: KindMutation, Method: http.MethodPost, Path: "reviews/", Body: BodyJSON, Invalidates: []Tag{TagReview, TagSource}},

	{Name: OpGetSubscriptions, Kind: KindQuery, Method: http.MethodGet, Path: "auth/users/me/subscriptions", QueryParams: []string{"resource_uuid"}, Provides: []Tag{TagSubscription}},
	{Name: OpPostSubscriptions, Kind: KindMutation, Method: http.MethodPost, Path: "subscriptions/", Body: BodyJSON, Invalidates: []Tag{TagSubscription}},
	{Name: OpPatchSubscriptions, Kind: KindMutation, Method: http.MethodPatch, Path: "subscriptions/{uuid}", Body: BodyJSON, Invalidates: []Tag{TagSubscription}},

	{Name: OpPostReport, Kind: KindMutation, Method: http.MethodPost, Path: "reports/", Body: BodyJSON, Invalidates: []Tag{TagReport}},
	{Name: OpGetAllReports, Kind: KindQuery, Method: http.MethodGet, Path: "reports/", Provides: []Tag{TagReport}},
	{Name: OpGetSourceReports, Kind: KindQuery, Method: http.MethodGet, Path: "resources/{uuid}/reports", Provides: []Tag{TagReport}},
	{Name: OpAdminPatchReport, Kind: KindMutation, Method: http.MethodPatch, Path: "reports/{uuid}", Body: BodyJSON, Invalidates: []Tag{TagReport}},
	{Name: OpAdminDeleteReport, Kind: KindMutation, Method: http.MethodDelete, Path: "reports/{uuid}", Invalidates: []Tag{TagReport}},

	{Name: OpGetAllCheckResults, Kind: KindQuery, Method: http.MethodGet, Path: "resources/{source_uuid}/stats/checks", QueryParams: []string{"timedelta", "max_count"}, Provides: []Tag{TagSource}},
	{Name: OpAdminPostResource, Kind: KindMutation, Method: http.MethodPost, Path: "resources/", Body: BodyJSON, Invalidates: []Tag{TagSource}},
	{Name: OpAdminDeleteResource, Kind: KindMutation, Method: http.MethodDelete, Path: "resources/{uuid}", Invalidates: []Tag{TagSource, TagNode}},
	{Name: OpAdminPostResourceNode, Kind: KindMutation, Method: http.MethodPost, Path: "resources/nodes/", Body: BodyJSON, Invalidates: []Tag{TagNode}},
	{Name: OpGetAllResourceNodes, Kind: KindQuery, Method: http.MethodGet, Path: "resources/{uuid}/nodes", Provides: []Tag{TagNode, TagSource}},
}

// DefaultRegistry returns the registry of the webeye API.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultEndpoints...)
	if err != nil {
		panic(fmt.Sprintf("sourcewatch: invalid endpoint table: %v", err))
	}
	return r
}
