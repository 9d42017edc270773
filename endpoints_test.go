package sourcewatch

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_DeclaresEveryOperation(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{
		OpRegisterUser, OpLoginUser, OpCheckUser, OpGetBotToken, OpGetSource,
		OpGetAllSources, OpGetDdos, OpGetAllSocialReports, OpGetAllReviews,
		OpPostReview, OpGetSubscriptions, OpPostSubscriptions, OpPatchSubscriptions,
		OpPostReport, OpGetAllReports, OpGetSourceReports, OpAdminPatchReport,
		OpAdminDeleteReport, OpGetAllCheckResults, OpAdminPostResource,
		OpAdminDeleteResource, OpAdminPostResourceNode, OpGetAllResourceNodes,
	} {
		_, err := reg.Lookup(name)
		assert.NoError(t, err, name)
	}
	assert.Len(t, reg.Names(), 23)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	_, err := DefaultRegistry().Lookup("getEverything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEndpoint))
	assert.Contains(t, err.Error(), "getEverything")
}

func TestRegistry_Contracts(t *testing.T) {
	reg := DefaultRegistry()
	cases := []struct {
		name   string
		method string
		path   string
	}{
		{OpRegisterUser, http.MethodPost, "auth/users/"},
		{OpLoginUser, http.MethodPost, "auth/login/access-token"},
		{OpGetSource, http.MethodGet, "resources/{uuid}"},
		{OpGetAllSources, http.MethodGet, "resources/"},
		{OpPostSubscriptions, http.MethodPost, "subscriptions/"},
		{OpPatchSubscriptions, http.MethodPatch, "subscriptions/{uuid}"},
		{OpPostReview, http.MethodPost, "reviews/"},
		{OpPostReport, http.MethodPost, "reports/"},
		{OpAdminPatchReport, http.MethodPatch, "reports/{uuid}"},
		{OpAdminDeleteReport, http.MethodDelete, "reports/{uuid}"},
		{OpGetAllCheckResults, http.MethodGet, "resources/{source_uuid}/stats/checks"},
		{OpAdminPostResource, http.MethodPost, "resources/"},
		{OpGetAllResourceNodes, http.MethodGet, "resources/{uuid}/nodes"},
	}
	for _, tc := range cases {
		ep, err := reg.Lookup(tc.name)
		require.NoError(t, err)
		assert.Equal(t, tc.method, ep.Method, tc.name)
		assert.Equal(t, tc.path, ep.Path, tc.name)
	}
}

func TestEndpoint_PathParams(t *testing.T) {
	ep := Endpoint{Path: "resources/{source_uuid}/stats/{kind}"}
	assert.Equal(t, []string{"source_uuid", "kind"}, ep.PathParams())
	assert.Empty(t, Endpoint{Path: "reports/"}.PathParams())
}

func TestNewRegistry_RejectsBadDescriptors(t *testing.T) {
	cases := map[string][]Endpoint{
		"no name":           {{Path: "x/"}},
		"unbalanced":        {{Name: "a", Path: "x/{id"}},
		"empty slot":        {{Name: "a", Path: "x/{}"}},
		"query invalidates": {{Name: "a", Kind: KindQuery, Path: "x/", Invalidates: []Tag{TagSource}}},
		"query with body":   {{Name: "a", Kind: KindQuery, Path: "x/", Body: BodyJSON}},
		"mutation provides": {{Name: "a", Kind: KindMutation, Path: "x/", Provides: []Tag{TagSource}}},
		"duplicate":         {{Name: "a", Path: "x/"}, {Name: "a", Path: "y/"}},
	}
	for name, eps := range cases {
		_, err := NewRegistry(eps...)
		assert.Error(t, err, name)
	}
}
