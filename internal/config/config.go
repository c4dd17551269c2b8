package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/leafsii/jsredis/pkg/jsredis"
	"github.com/leafsii/jsredis/pkg/kv"
)

type Config struct {
	Env            string        `mapstructure:"JSR_ENV"`
	HTTPAddr       string        `mapstructure:"JSR_HTTP_ADDR"`
	RequestTimeout time.Duration `mapstructure:"JSR_REQUEST_TIMEOUT"`
	Codec          string        `mapstructure:"JSR_CODEC"`

	Store    StoreConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type StoreConfig struct {
	Backend             string        `mapstructure:"JSR_KV_BACKEND"` // "memory", "redis"
	RedisURL            string        `mapstructure:"JSR_REDIS_URL"`
	Failover            bool          `mapstructure:"JSR_KV_FAILOVER"`
	ProbeInterval       time.Duration `mapstructure:"JSR_KV_PROBE_INTERVAL"`
	StartupProbeTimeout time.Duration `mapstructure:"JSR_KV_STARTUP_PROBE_TIMEOUT"`
	JanitorInterval     time.Duration `mapstructure:"JSR_KV_JANITOR_INTERVAL"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"JSR_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"JSR_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already in the environment win
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("JSR_ENV", "dev")
	v.SetDefault("JSR_HTTP_ADDR", ":8080")
	v.SetDefault("JSR_REQUEST_TIMEOUT", "10s")
	v.SetDefault("JSR_CODEC", "std")
	v.SetDefault("JSR_KV_BACKEND", string(kv.BackendRedis))
	v.SetDefault("JSR_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("JSR_KV_FAILOVER", false)
	v.SetDefault("JSR_KV_PROBE_INTERVAL", "5s")
	v.SetDefault("JSR_KV_STARTUP_PROBE_TIMEOUT", "2s")
	v.SetDefault("JSR_KV_JANITOR_INTERVAL", "1m")
	v.SetDefault("JSR_RATE_LIMIT_RPM", 600)
	v.SetDefault("JSR_CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	if origins := v.GetString("JSR_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("JSR_CORS_ALLOWED_ORIGINS", splitList(origins))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Codec = strings.ToLower(strings.TrimSpace(cfg.Codec))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Env {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("invalid JSR_ENV %q (must be dev, test, or prod)", c.Env)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("JSR_HTTP_ADDR is required")
	}
	if _, ok := jsredis.CodecByName(c.Codec); !ok {
		return fmt.Errorf("invalid JSR_CODEC %q (must be std or goccy)", c.Codec)
	}
	switch kv.Backend(c.Store.Backend) {
	case kv.BackendMemory:
	case kv.BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("JSR_REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid JSR_KV_BACKEND %q (must be memory or redis)", c.Store.Backend)
	}
	if c.Store.ProbeInterval <= 0 {
		return fmt.Errorf("JSR_KV_PROBE_INTERVAL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("JSR_REQUEST_TIMEOUT must be positive")
	}
	if c.Security.RateLimitRPM < 0 {
		return fmt.Errorf("JSR_RATE_LIMIT_RPM must not be negative")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// KVConfig translates the store settings for kv.NewStoreFromConfig
func (c *Config) KVConfig(logger kv.LogFunc) kv.Config {
	return kv.Config{
		Backend:             kv.Backend(c.Store.Backend),
		RedisURL:            c.Store.RedisURL,
		JanitorInterval:     c.Store.JanitorInterval,
		FailoverEnabled:     c.Store.Failover,
		ProbeInterval:       c.Store.ProbeInterval,
		StartupProbeTimeout: c.Store.StartupProbeTimeout,
		Logger:              logger,
	}
}

// JSONCodec returns the member and value codec named by JSR_CODEC
func (c *Config) JSONCodec() jsredis.Codec {
	codec, _ := jsredis.CodecByName(c.Codec)
	return codec
}
