package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance
type Config struct {
	// Backend specifies which storage backend to use
	Backend Backend

	// RedisURL is the connection string for Redis (required when Backend is "redis")
	// Format: redis://localhost:6379/0, redis://:password@localhost:6379/1 or host:port
	RedisURL string

	// JanitorInterval controls how often the in-memory store evicts expired keys.
	// Default: 30 seconds
	JanitorInterval time.Duration

	// FailoverEnabled keeps serving from an in-memory store while Redis is
	// unreachable and switches back once it answers pings again. Off by default:
	// while failed over, reads miss data held by Redis and writes are lost on
	// recovery, instead of the command failing.
	FailoverEnabled bool

	// ProbeInterval controls how often Redis is probed for recovery after failover.
	// Default: 5 seconds
	ProbeInterval time.Duration

	// StartupProbeTimeout bounds the initial Redis health check.
	// Default: 1 second
	StartupProbeTimeout time.Duration

	// Logger receives backend selection and failover events. Optional.
	Logger LogFunc
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

func (cfg *Config) applyDefaults() {
	if cfg.JanitorInterval == 0 {
		cfg.JanitorInterval = 30 * time.Second
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.StartupProbeTimeout == 0 {
		cfg.StartupProbeTimeout = 1 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = func(string, ...any) {}
	}
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration
func NewStoreFromConfig(cfg Config) (Store, error) {
	cfg.applyDefaults()

	switch cfg.Backend {
	case BackendMemory:
		return build(BackendMemory, cfg)
	case BackendRedis:
		return newRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func build(backend Backend, cfg Config) (Store, error) {
	factory, ok := factories[backend]
	if !ok {
		return nil, fmt.Errorf("%s backend not registered", backend)
	}
	return factory(cfg)
}

// newRedisStore connects to Redis. Without failover an unreachable server is an
// error. With failover the memory store serves while Redis is unreachable and
// Redis is probed in the background until it answers.
func newRedisStore(cfg Config) (Store, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
	}

	redisStore, err := build(BackendRedis, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if !cfg.FailoverEnabled {
		if err := probe(redisStore, cfg.StartupProbeTimeout); err != nil {
			redisStore.Close()
			return nil, fmt.Errorf("redis health check failed: %w", err)
		}
		return redisStore, nil
	}

	memoryStore, err := build(BackendMemory, cfg)
	if err != nil {
		redisStore.Close()
		return nil, fmt.Errorf("failed to create memory store for failover: %w", err)
	}

	if err := probe(redisStore, cfg.StartupProbeTimeout); err != nil {
		cfg.Logger("Redis unavailable at startup; using in-memory store (will retry in background)",
			"error", err.Error())
		return NewFailoverStoreWithFallbackActive(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger), nil
	}

	cfg.Logger("Redis healthy at startup; using Redis with in-memory failover")
	return NewFailoverStore(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger), nil
}

func probe(store Store, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return store.Ping(ctx)
}
