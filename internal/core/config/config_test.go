package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-erp/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const validYAML = `
jwt:
  secret: 0123456789abcdef0123456789abcdef
  issuer: inventory-erp
  audience: clients
  ttl: 48h
db:
  driver: sqlite
  dsn: "file:test?mode=memory"
seed:
  enable: true
  adminPassword: Admin123!
`

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, c.JWT.TTL)
	assert.Equal(t, "clients", c.JWT.Audience)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.True(t, c.Seed.Enable)
	assert.Equal(t, "admin", c.Seed.AdminUsername)
	assert.Equal(t, "Admin123!", c.Seed.AdminPassword)
	assert.Equal(t, "CN", c.Security.PhoneRegion)
	assert.Equal(t, time.Minute, c.Security.LoginLimitWindow)
	assert.Equal(t, 8080, c.App.HTTP.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_JWT_AUDIENCE", "from-env")
	c, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWT.Audience)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := Load(writeConfig(t, validYAML))
		require.NoError(t, err)
		return c
	}

	cases := map[string]func(c *Config){
		"empty secret":   func(c *Config) { c.JWT.Secret = "" },
		"short secret":   func(c *Config) { c.JWT.Secret = "abc" },
		"no audience":    func(c *Config) { c.JWT.Audience = "" },
		"no ttl":         func(c *Config) { c.JWT.TTL = 0 },
		"bad driver":     func(c *Config) { c.DB.Driver = "oracle" },
		"no dsn":         func(c *Config) { c.DB.DSN = "" },
		"negative limit": func(c *Config) { c.Security.LoginLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}

func TestTrustedProxies(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Empty(t, c.App.TrustedProxies)

	c, err = Load(writeConfig(t, validYAML+"app:\n  trustedProxies: [\"10.0.0.0/8\", \"127.0.0.1\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, c.App.TrustedProxies)

	_, err = Load(writeConfig(t, validYAML+"app:\n  trustedProxies: [\"not-an-ip\"]\n"))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
