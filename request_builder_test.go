package sourcewatch

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "http://api.test:8000/api/"

type staticTokens struct{ token string }

func (s *staticTokens) Token() (string, error)  { return s.token, nil }
func (s *staticTokens) SetToken(t string) error { s.token = t; return nil }
func (s *staticTokens) Clear() error            { s.token = ""; return nil }

func newTestBuilder(tokens TokenStore) *RequestBuilder {
	return NewRequestBuilder(testBase, DefaultRegistry(), tokens)
}

func TestBuild_GetSource(t *testing.T) {
	req, err := newTestBuilder(nil).Build(Call{Endpoint: OpGetSource, Args: Args{"uuid": "abc"}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, testBase+"resources/abc", req.URL)
	assert.Nil(t, req.Body)
	assert.Empty(t, req.Header.Get("Content-Type"))
}

func TestBuild_PatchSubscriptionsKeepsUUIDOutOfBody(t *testing.T) {
	req, err := newTestBuilder(nil).Build(Call{
		Endpoint: OpPatchSubscriptions,
		Args:     Args{"uuid": "x", "active": false},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, testBase+"subscriptions/x", req.URL)
	assert.JSONEq(t, `{"active":false}`, string(req.Body))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestBuild_QueryString(t *testing.T) {
	req, err := newTestBuilder(nil).Build(Call{
		Endpoint: OpGetAllCheckResults,
		Args:     Args{"source_uuid": "s1", "timedelta": float64(172800), "max_count": 7, "ignored": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, testBase+"resources/s1/stats/checks?max_count=7&timedelta=172800", req.URL)

	req, err = newTestBuilder(nil).Build(Call{
		Endpoint: OpGetAllSources,
		Args:     Args{"name": []string{"a", "b"}, "status": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, testBase+"resources/?name=a&name=b", req.URL)
}

func TestBuild_PathParamsAreEscaped(t *testing.T) {
	req, err := newTestBuilder(nil).Build(Call{Endpoint: OpGetSource, Args: Args{"uuid": "a/b c"}})
	require.NoError(t, err)
	assert.Equal(t, testBase+"resources/a%2Fb%20c", req.URL)
}

func TestBuild_MissingPathParam(t *testing.T) {
	_, err := newTestBuilder(nil).Build(Call{Endpoint: OpGetSource})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingParam))
}

func TestBuild_UnknownEndpoint(t *testing.T) {
	_, err := newTestBuilder(nil).Build(Call{Endpoint: "nope"})
	assert.True(t, errors.Is(err, ErrUnknownEndpoint))
}

func TestBuild_DefaultsToPost(t *testing.T) {
	reg, err := NewRegistry(Endpoint{Name: "ping", Kind: KindMutation, Path: "ping/", Body: BodyJSON})
	require.NoError(t, err)
	req, err := NewRequestBuilder("http://h/api", reg, nil).Build(Call{Endpoint: "ping"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://h/api/ping/", req.URL)
	assert.JSONEq(t, `{}`, string(req.Body))
}

func TestBuild_FormSuppressesJSONContentType(t *testing.T) {
	req, err := newTestBuilder(nil).Build(Call{
		Endpoint: OpLoginUser,
		Form:     NewForm("username", "u@example.org", "password", "secret"),
	})
	require.NoError(t, err)

	ct := req.Header.Values("Content-Type")
	require.Len(t, ct, 1)
	assert.NotContains(t, ct[0], "application/json")
	mediaType, params, err := mime.ParseMediaType(ct[0])
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)
	assert.Contains(t, string(req.Body), params["boundary"])
	assert.Contains(t, string(req.Body), "u@example.org")
}

func TestBuild_FormEndpointEncodesArgs(t *testing.T) {
	req, err := newTestBuilder(nil).Build(Call{
		Endpoint: OpLoginUser,
		Args:     Args{"username": "u", "password": "p"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data"))
	assert.Contains(t, string(req.Body), `name="password"`)
}

func TestBuild_HeaderOverrides(t *testing.T) {
	req, err := newTestBuilder(nil).Build(Call{
		Endpoint: OpPostReview,
		Args:     Args{"rating": 5},
		Headers:  map[string]string{"Content-Type": "", "X-Trace": "1"},
	})
	require.NoError(t, err)
	assert.Empty(t, req.Header.Values("Content-Type"))
	assert.Equal(t, "1", req.Header.Get("X-Trace"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, float64(5), body["rating"])
}

func TestBuild_ReadsTokenOnEveryBuild(t *testing.T) {
	tokens := &staticTokens{}
	b := newTestBuilder(tokens)
	call := Call{Endpoint: OpCheckUser}

	req, err := b.Build(call)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))

	require.NoError(t, tokens.SetToken("tok-1"))
	req, err = b.Build(call)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", req.Header.Get("Authorization"), "raw token, no scheme prefix")

	require.NoError(t, tokens.Clear())
	req, err = b.Build(call)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestBuild_AuthorizationOverrideWins(t *testing.T) {
	tokens := &staticTokens{}
	require.NoError(t, tokens.SetToken("stored"))
	b := newTestBuilder(tokens)

	req, err := b.Build(Call{Endpoint: OpCheckUser, Headers: map[string]string{"authorization": "other"}})
	require.NoError(t, err)
	assert.Equal(t, "other", req.Header.Get("Authorization"))

	req, err = b.Build(Call{Endpoint: OpCheckUser, Headers: map[string]string{"Authorization": ""}})
	require.NoError(t, err)
	assert.Empty(t, req.Header.Values("Authorization"))
}
