package sourcewatch

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDetail(t *testing.T) {
	cases := map[string]string{
		`{"detail":"Incorrect email or password"}`:                      "Incorrect email or password",
		`{"detail":[{"loc":["body","rating"],"msg":"field required"}]}`: "field required",
		`{"detail":{"code":7}}`:                                          `{"code":7}`,
		`{"message":"nope"}`:                                             "",
		`<html>`:                                                         "",
		``:                                                               "",
	}
	for body, want := range cases {
		assert.Equal(t, want, parseDetail([]byte(body)), body)
	}
}

func TestAPIError_Classification(t *testing.T) {
	err := fmt.Errorf("load: %w", newStatusError(OpGetSource, &Response{StatusCode: http.StatusNotFound, Data: []byte(`{"detail":"gone"}`)}))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "getSource: status 404: gone")

	netErr := &APIError{Kind: KindNetwork, Endpoint: OpGetSource, Err: errors.New("dial tcp: refused")}
	assert.False(t, IsNotFound(netErr))
	assert.Equal(t, "getSource: network error: dial tcp: refused", netErr.Error())
	assert.Equal(t, "dial tcp: refused", errors.Unwrap(netErr).Error())
}
