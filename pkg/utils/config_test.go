package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "nats", cfg.Store.Driver)
	assert.True(t, cfg.Store.NATSEmbedded)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := writeFile(t, dir, "exercisehub.yaml", `
http:
  addr: ":9000"
data:
  index_path: /srv/data/index.json
store:
  driver: sqlite
  sqlite_path: /srv/data/overrides.db
  timeout: 750ms
admin:
  jwt_secret: from-file
  token_ttl: 2h
cache:
  ttl: 5m
sync:
  udp_addr: ":9191"
`)
	t.Setenv("EXERCISEHUB_JWT_SECRET", "from-env")
	t.Setenv("EXERCISEHUB_SYNC_TCP_ADDR", ":9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "/srv/data/index.json", cfg.Data.IndexPath)
	assert.Equal(t, "public", cfg.Data.PublicRoot, "defaults survive partial files")
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Admin.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "from-env", cfg.Admin.JWTSecret, "env wins over file")
	assert.Equal(t, ":9090", cfg.Sync.TCPAddr)
	assert.Equal(t, ":9191", cfg.Sync.UDPAddr)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, ".env", "EXERCISEHUB_STORE_DRIVER=memory\n")
	t.Setenv("EXERCISEHUB_STORE_DRIVER", "")
	require.NoError(t, os.Unsetenv("EXERCISEHUB_STORE_DRIVER"))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "http: [")
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	t.Setenv("EXERCISEHUB_STORE_TIMEOUT", "soon")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "EXERCISEHUB_STORE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, false},
		{"nats without url", func(c *Config) { c.Store.NATSEmbedded = false }, false},
		{"nats with url", func(c *Config) { c.Store.NATSEmbedded = false; c.Store.NATSURL = "nats://x:4222" }, true},
		{"sqlite without path", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.SQLitePath = "" }, false},
		{"hash without secret", func(c *Config) { c.Admin.PasswordHash = "$2a$..." }, false},
		{"zero timeout", func(c *Config) { c.Store.Timeout = 0 }, false},
		{"no index", func(c *Config) { c.Data.IndexPath = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// chdir is the Go 1.21 equivalent of testing.T.Chdir: it changes the working
// directory and restores the previous one when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
