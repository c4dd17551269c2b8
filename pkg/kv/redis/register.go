package redis

import (
	"fmt"

	"github.com/leafsii/jsredis/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendRedis, func(cfg kv.Config) (kv.Store, error) {
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
		}
		// With failover the factory probes the server itself and keeps the
		// store even while it is unreachable
		if cfg.FailoverEnabled {
			return Open(cfg.RedisURL)
		}
		return New(cfg.RedisURL)
	})
}
