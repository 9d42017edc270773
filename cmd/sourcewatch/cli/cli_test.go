package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sourcewatch "github.com/webeye/sourcewatch"
	"github.com/webeye/sourcewatch/mock"
)

func setup(t *testing.T) (*mock.Server, string) {
	t.Helper()
	srv := mock.NewServer()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	t.Setenv("SOURCEWATCH_API_HOST", ts.URL)
	t.Setenv("SOURCEWATCH_TOKEN_FILE", tokenFile)
	return srv, ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Run(args, &out, &errOut)
	return out.String(), err
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	srv, _ := setup(t)
	srv.AddUser("ops@example.org", "hunter2", false)

	_, err := run(t, "whoami")
	assert.ErrorIs(t, err, sourcewatch.ErrNotLoggedIn)

	_, err = run(t, "login", "--email", "ops@example.org", "--password", "bad")
	assert.True(t, sourcewatch.IsStatus(err, 400))

	out, err := run(t, "login", "--email", "ops@example.org", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as ops@example.org")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"email": "ops@example.org"`)
	assert.Contains(t, out, `"token_expiry"`)

	out, err = run(t, "logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	_, err = run(t, "whoami")
	assert.ErrorIs(t, err, sourcewatch.ErrNotLoggedIn)
}

func TestCLI_SourcesList(t *testing.T) {
	srv, _ := setup(t)
	up := srv.AddSource("alpha", sourcewatch.SourceUp)
	srv.AddSource("beta", sourcewatch.SourceDown)

	out, err := run(t, "sources", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], up.UUID.String()))
	assert.Contains(t, lines[0], "UP")
	assert.Contains(t, lines[1], "beta")

	out, err = run(t, "sources", "list", "--status", "DOWN", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "beta"`)
	assert.NotContains(t, out, "alpha")
}

func TestCLI_ExportURLAndEndpoints(t *testing.T) {
	srv, base := setup(t)
	src := srv.AddSource("alpha", sourcewatch.SourceUp)

	out, err := run(t, "sources", "export-url", src.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, base+"/resources/"+src.UUID.String()+"/stats/export\n", out)

	_, err = run(t, "sources", "export-url", "nope")
	assert.Error(t, err)

	out, err = run(t, "endpoints")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 23)
	assert.Contains(t, out, "loginUser")
}

func TestCLI_AdminFlow(t *testing.T) {
	srv, _ := setup(t)
	srv.AddUser("root@example.org", "pw", true)
	_, err := run(t, "login", "--email", "root@example.org", "--password", "pw")
	require.NoError(t, err)

	out, err := run(t, "admin", "add-source", "--name", "gamma")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "gamma"`)

	out, err = run(t, "sources", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "gamma")
}

func TestCLI_SourcesChecks(t *testing.T) {
	srv, _ := setup(t)
	src := srv.AddSource("alpha", sourcewatch.SourceUp)
	now := time.Now()
	srv.AddCheck(src.UUID, sourcewatch.SourceUp, now.Add(-time.Minute))
	srv.AddCheck(src.UUID, sourcewatch.SourceDown, now.Add(-2*time.Hour))

	out, err := run(t, "sources", "checks", src.UUID.String(), "--window", "300")
	require.NoError(t, err)
	var recent []sourcewatch.CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, sourcewatch.SourceUp, recent[0].Status)

	out, err = run(t, "sources", "checks", src.UUID.String(), "--position", "1")
	require.NoError(t, err)
	var all []sourcewatch.CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Len(t, all, 2)

	_, err = run(t, "sources", "checks", src.UUID.String(), "--window", "300", "--position", "0.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")

	_, err = run(t, "sources", "checks", src.UUID.String(), "--window", "yesterday")
	assert.Error(t, err)
}
