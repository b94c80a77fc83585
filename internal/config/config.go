package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends for the durable credential.
const (
	StorageMemory = "memory"
	StorageBolt   = "bbolt"
	StorageRedis  = "redis"
)

// Config holds memberctl configuration
type Config struct {
	APIBase        string        `yaml:"api_base"`
	Storage        string        `yaml:"storage"`
	BoltPath       string        `yaml:"bolt_path"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPrefix    string        `yaml:"redis_prefix"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	EntryPoint     string        `yaml:"entry_point"`
	PortalAddr     string        `yaml:"portal_addr"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		APIBase:        "http://localhost:8000",
		Storage:        StorageBolt,
		BoltPath:       "memberctl.db",
		RedisAddr:      "localhost:6379",
		RedisPrefix:    "memberauth:",
		RequestTimeout: 10 * time.Second,
		EntryPoint:     "/",
		PortalAddr:     "127.0.0.1:8080",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// LoadYAML fills the value built by fn from the YAML file at path. A blank
// path or a missing file leaves the defaults in place.
func LoadYAML[T any](path string, fn func() *T) (*T, error) {
	cfg := fn()

	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves configuration from defaults, the optional YAML file at path,
// a .env file in the working directory and finally the environment.
func Load(path string) (*Config, error) {
	cfg, err := LoadYAML(path, Default)
	if err != nil {
		return nil, err
	}

	// A missing .env file is normal.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.APIBase = getEnv("MEMBER_API_BASE", c.APIBase)
	c.Storage = getEnv("MEMBER_STORAGE", c.Storage)
	c.BoltPath = getEnv("MEMBER_BOLT_PATH", c.BoltPath)
	c.RedisAddr = getEnv("MEMBER_REDIS_ADDR", c.RedisAddr)
	c.PortalAddr = getEnv("MEMBER_PORTAL_ADDR", c.PortalAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if v := os.Getenv("MEMBER_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MEMBER_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base must be an absolute http(s) URL (got %q)", c.APIBase)
	}

	switch c.Storage {
	case StorageMemory:
	case StorageBolt:
		if c.BoltPath == "" {
			return errors.New("bolt_path is required for bbolt storage")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative (got %s)", c.RequestTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
