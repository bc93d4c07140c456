package auth

import (
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticate(t *testing.T) {
	keys, err := NewKeys(time.Hour)
	require.NoError(t, err)

	token, err := keys.CreateJWT("alice")
	require.NoError(t, err)

	sub, err := keys.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestAuthenticateRejectsForeignKey(t *testing.T) {
	a, err := NewKeys(0)
	require.NoError(t, err)
	b, err := NewKeys(0)
	require.NoError(t, err)

	token, err := a.CreateJWT("alice")
	require.NoError(t, err)
	_, err = b.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticateExpired(t *testing.T) {
	keys, err := NewKeys(time.Nanosecond)
	require.NoError(t, err)
	token, err := keys.CreateJWT("alice")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	_, err = keys.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticateRequest(t *testing.T) {
	keys, err := NewKeys(0)
	require.NoError(t, err)
	token, err := keys.CreateJWT("bob")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = keys.Authenticate(r)
	assert.ErrorIs(t, err, ErrNoToken)

	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	sub, err := keys.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", sub)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	sub, err = keys.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", sub)
}

func TestLoadKeys(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "key"), filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	keys, err := LoadKeys(privPath, pubPath, 0)
	require.NoError(t, err)
	token, err := keys.CreateJWT("carol")
	require.NoError(t, err)
	sub, err := keys.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "carol", sub)

	_, err = LoadKeys(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
}
