package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-providers/config"
)

const sample = `
debug: true
route_prefix: /account
auth:
  signing_key: ${AUTHD_TEST_KEY}
  context_key: sid
  token_expiration: 2
  secure_cookies: false
  signup_on_login: false
persistence:
  dsn: "file::memory:?cache=shared"
server:
  address: ":9000"
  shutdown_timeout: 3s
providers:
  local:
    scheme: argon2id
    success_redirect_url: /home
  federated:
    issuer: https://id.example.com
    signing_keys:
      k1: a-shared-secret-for-tests
`

func TestParseOverlaysDefaults(t *testing.T) {
	t.Setenv("AUTHD_TEST_KEY", "0123456789abcdef0123")

	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "User", cfg.Entity)
	assert.Equal(t, "/account", cfg.RoutePrefix)
	assert.Equal(t, "0123456789abcdef0123", cfg.Auth.GetSigningKey())
	assert.Equal(t, "sid", cfg.Auth.GetContextKey())
	assert.Equal(t, 2, cfg.Auth.GetTokenExpiration())
	assert.Equal(t, 24*30, cfg.Auth.GetExtendedTokenDuration())
	assert.False(t, cfg.Auth.GetSecureCookies())
	assert.False(t, cfg.Auth.SignupOnLogin)
	assert.Equal(t, 5*time.Second, cfg.Persistence.GetPingTimeout())
	assert.Equal(t, 3*time.Second, cfg.Server.GetShutdownTimeout())
	assert.Equal(t, ":9572", cfg.Server.MetricsAddress)

	require.NotNil(t, cfg.Providers.Local)
	assert.Equal(t, "argon2id", cfg.Providers.Local.Scheme)
	assert.Equal(t, "/home", cfg.Providers.Local.SuccessRedirectURL)
	require.NotNil(t, cfg.Providers.Federated)
	assert.Equal(t, "a-shared-secret-for-tests", cfg.Providers.Federated.SigningKeys["k1"])
	assert.Equal(t, []string{"local", "federated"}, cfg.Providers.Enabled())
}

func TestParseRejectsShortSigningKey(t *testing.T) {
	_, err := config.Parse([]byte("auth:\n  signing_key: short\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestParseRequiresFederatedKeys(t *testing.T) {
	data := `
auth:
  signing_key: 0123456789abcdef0123
providers:
  federated:
    issuer: https://id.example.com
`
	_, err := config.Parse([]byte(data))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authd.yml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  signing_key: 0123456789abcdef0123\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "session", cfg.Auth.ContextKey)
	assert.True(t, cfg.Auth.SignupOnLogin)
	assert.Equal(t, []string{"local"}, cfg.Providers.Enabled())
}

func TestParsePreviousSigningKeys(t *testing.T) {
	data := `
auth:
  signing_key: 0123456789abcdef0123
  previous_signing_keys:
    - fedcba9876543210fedc
`
	cfg, err := config.Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"fedcba9876543210fedc"}, cfg.Auth.PreviousSigningKeys)

	_, err = config.Parse([]byte(data + "    - short\n"))
	require.Error(t, err)
}
