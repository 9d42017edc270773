package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := Claims{
		UserUUID:         "8c1f0a4e-2f47-4f3a-9d0e-6a1b7c5d3e21",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("a")
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "a", tok)

	require.NoError(t, s.SetToken("b"))
	tok, _ = s.Token()
	assert.Equal(t, "b", tok)

	require.NoError(t, s.Clear())
	tok, _ = s.Token()
	assert.Empty(t, tok)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	s := NewFileStore(path)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Empty(t, tok, "missing file means logged out")

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signed(t, exp)
	require.NoError(t, s.SetToken(raw))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second store on the same path sees the token.
	other := NewFileStore(path)
	tok, err = other.Token()
	require.NoError(t, err)
	assert.Equal(t, raw, tok)

	rec, err := other.Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, exp.Equal(rec.Expiry))
	assert.Equal(t, "bearer", rec.TokenType)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	tok, err = other.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestFileStore_OpaqueToken(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, s.SetToken("opaque"))
	rec, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "opaque", rec.AccessToken)
	assert.True(t, rec.Expiry.IsZero())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := NewFileStore(path).Token()
	assert.Error(t, err)

	require.NoError(t, NewFileStore(path).Save(&oauth2.Token{}))
	tok, err := NewFileStore(path).Token()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestParseClaims(t *testing.T) {
	now := time.Now()
	c, err := ParseClaims(signed(t, now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, "8c1f0a4e-2f47-4f3a-9d0e-6a1b7c5d3e21", c.UserUUID)
	assert.True(t, c.Expired(now))

	c, err = ParseClaims(signed(t, now.Add(time.Minute)))
	require.NoError(t, err)
	assert.False(t, c.Expired(now))

	_, err = ParseClaims("not-a-jwt")
	assert.ErrorIs(t, err, ErrNotJWT)

	assert.False(t, (&Claims{}).Expired(now))
}
