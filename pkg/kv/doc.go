// Package kv provides a Redis-like key-value store abstraction with in-memory
// and Redis-backed implementations.
//
// The Store interface covers the commands the jsredis layers issue: plain and
// expiring string writes, reads, bulk deletes, TTL inspection and the native
// set primitives (SADD, SREM, SMEMBERS, SISMEMBER).
//
// Example usage:
//
//	cfg := Config{
//		Backend:         BackendMemory,
//		JanitorInterval: 30 * time.Second,
//	}
//	store, err := NewStoreFromConfig(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	ctx := context.Background()
//	if _, err := store.SAdd(ctx, "allow-list", []byte("ImFsaWNlIg==")); err != nil {
//		log.Fatal(err)
//	}
//
//	value, err := store.Get(ctx, "key")
//	if errors.Is(err, ErrNotFound) {
//		log.Println("Key not found")
//	}
//
// The in-memory implementation backs development and tests with full TTL
// support and background expiration. The Redis adapter wraps go-redis/v9 and
// can be wrapped in a FailoverStore that degrades to memory while Redis is
// unreachable.
package kv
