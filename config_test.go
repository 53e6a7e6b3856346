package portalauth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestDefaultConfigNeedsSecret(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Said App", cfg.JWT.Issuer)
	assert.Equal(t, "User Management Portal", cfg.JWT.Audience)
	assert.Equal(t, 5*24*time.Hour, cfg.JWT.Lifetime)
	assert.Equal(t, 15*time.Minute, cfg.Attempts.Window)
	assert.Equal(t, 100, cfg.Attempts.MaxEntries)
	assert.Equal(t, 5, cfg.Attempts.Threshold)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"lifetime":     func(c *Config) { c.JWT.Lifetime = 0 },
		"issuer":       func(c *Config) { c.JWT.Issuer = "" },
		"backend":      func(c *Config) { c.Attempts.Backend = "etcd" },
		"window":       func(c *Config) { c.Attempts.Window = -time.Second },
		"max entries":  func(c *Config) { c.Attempts.MaxEntries = 0 },
		"threshold":    func(c *Config) { c.Attempts.Threshold = 0 },
		"hasher":       func(c *Config) { c.Security.Hasher = "md5" },
		"driver":       func(c *Config) { c.Store.Driver = "mysql" },
		"missing dsn":  func(c *Config) { c.Store.Driver = "postgres" },
		"redis addr":   func(c *Config) { c.Attempts.Backend = "redis"; c.Redis.Addr = "" },
		"http addr":    func(c *Config) { c.HTTP.Addr = "" },
		"login rate":   func(c *Config) { c.HTTP.LoginRate = 0 },
		"proxy cidr":   func(c *Config) { c.HTTP.TrustedProxies = []string{"10.0.0.0/33"} },
		"audit buffer": func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.toml")
	content := strings.Join([]string{
		`[jwt]`,
		`secret = "from-file-secret-value-0123456789"`,
		`lifetime = "2h"`,
		`[attempts]`,
		`backend = "redis"`,
		`threshold = 3`,
		`[redis]`,
		`embedded = true`,
		`[store]`,
		`driver = "sqlite"`,
		`dsn = "file:portal.db"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PORTAL_HTTP_ADDR", ":9090")
	t.Setenv("PORTAL_DB_DSN", "file:override.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Lifetime)
	assert.Equal(t, "redis", cfg.Attempts.Backend)
	assert.Equal(t, 3, cfg.Attempts.Threshold)
	assert.Equal(t, 100, cfg.Attempts.MaxEntries)
	assert.True(t, cfg.Redis.Embedded)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "file:override.db", cfg.Store.DSN)

	tc := cfg.TokenConfig()
	assert.Equal(t, []byte("from-file-secret-value-0123456789"), tc.Secret)
	assert.Equal(t, 3, cfg.AttemptOptions().Threshold)
}

func TestLoadConfigSecretFromEnv(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "env-secret-env-secret-env-secret")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env-secret-env-secret-env-secret", cfg.JWT.Secret)
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[jwt\nsecret="), 0o600))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestProxyPrefixes(t *testing.T) {
	h := HTTPConfig{TrustedProxies: []string{"10.0.0.0/8", " 192.168.1.7 ", "fd00::/8"}}
	got, err := h.ProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "192.168.1.7/32", got[1].String())
	assert.Equal(t, "fd00::/8", got[2].String())

	_, err = HTTPConfig{TrustedProxies: []string{"proxy.internal"}}.ProxyPrefixes()
	assert.Error(t, err)
}
