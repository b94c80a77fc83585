package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Enabled bool   `yaml:"enabled"`
}

func newTestConfig() *testConfig {
	return &testConfig{Port: 8080, Host: "localhost"}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MEMBER_API_BASE", "MEMBER_STORAGE", "MEMBER_BOLT_PATH", "MEMBER_REDIS_ADDR",
		"MEMBER_REQUEST_TIMEOUT", "MEMBER_PORTAL_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	// Keep a stray .env in the package dir from leaking in.
	t.Chdir(t.TempDir())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path keeps defaults", func(t *testing.T) {
		cfg, err := LoadYAML("", newTestConfig)
		require.NoError(t, err)
		assert.Equal(t, newTestConfig(), cfg)
	})

	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg, err := LoadYAML(filepath.Join(dir, "nope.yaml"), newTestConfig)
		require.NoError(t, err)
		assert.Equal(t, newTestConfig(), cfg)
	})

	t.Run("file overrides set fields only", func(t *testing.T) {
		path := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: 9090\nenabled: true\n"), 0o600))

		cfg, err := LoadYAML(path, newTestConfig)
		require.NoError(t, err)
		assert.Equal(t, &testConfig{Port: 9090, Host: "localhost", Enabled: true}, cfg)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))

		_, err := LoadYAML(path, newTestConfig)
		require.Error(t, err)
	})
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "memberctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base: https://members.example.com
storage: redis
redis_addr: cache:6379
request_timeout: 3s
`), 0o600))

	t.Setenv("MEMBER_REDIS_ADDR", "override:6380")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://members.example.com", cfg.APIBase)
	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.Equal(t, "override:6380", cfg.RedisAddr)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("MEMBER_STORAGE=memory\n"), 0o600))
	// godotenv never overrides variables that already exist, even empty ones.
	require.NoError(t, os.Unsetenv("MEMBER_STORAGE"))
	t.Cleanup(func() { os.Unsetenv("MEMBER_STORAGE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
}

func TestLoad_BadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEMBER_REQUEST_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory", func(c *Config) { c.Storage = StorageMemory; c.BoltPath = "" }, false},
		{"relative api base", func(c *Config) { c.APIBase = "/api" }, true},
		{"ftp api base", func(c *Config) { c.APIBase = "ftp://x" }, true},
		{"bolt without path", func(c *Config) { c.BoltPath = "" }, true},
		{"redis without addr", func(c *Config) { c.Storage = StorageRedis; c.RedisAddr = "" }, true},
		{"unknown storage", func(c *Config) { c.Storage = "sqlite" }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
