package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/tasks.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "task-exports", cfg.Storage.KeyPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Storage.URLTTL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TASKS_AUTH_JWTSECRET", "s3cret")
	t.Setenv("TASKS_AUTH_TOKENTTL", "30m")
	t.Setenv("TASKS_DATABASE_DRIVER", "Postgres")
	t.Setenv("TASKS_DATABASE_URL", "postgres://localhost/tasks")
	t.Setenv("TASKS_METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/tasks", cfg.Database.URL)
	assert.False(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("TASKS_AUTH_ISSUER=from-dotenv\nTASKS_STORAGE_BUCKET=dotenv-bucket\n"), 0o600))
	t.Setenv("TASKS_AUTH_ISSUER", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("TASKS_STORAGE_BUCKET") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.Issuer)
	assert.Equal(t, "dotenv-bucket", cfg.Storage.Bucket)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Auth.JWTSecret = "s"
		c.Auth.TokenTTL = time.Hour
		c.Auth.BcryptCost = 10
		c.Database.Driver = DriverSQLite
		c.Database.Path = "tasks.db"
		c.Database.QueryTimeout = time.Second
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"blank secret":     func(c *Config) { c.Auth.JWTSecret = "  " },
		"zero ttl":         func(c *Config) { c.Auth.TokenTTL = 0 },
		"cost too low":     func(c *Config) { c.Auth.BcryptCost = 1 },
		"cost too high":    func(c *Config) { c.Auth.BcryptCost = 40 },
		"unknown driver":   func(c *Config) { c.Database.Driver = "mysql" },
		"postgres no url":  func(c *Config) { c.Database.Driver = DriverPostgres },
		"sqlite no path":   func(c *Config) { c.Database.Path = "" },
		"no query timeout": func(c *Config) { c.Database.QueryTimeout = 0 },
		"bucket no urlttl": func(c *Config) { c.Storage.Bucket = "b" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir for Go < 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
