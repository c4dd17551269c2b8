package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrWrongType is returned when a command is issued against a key holding
// another kind of value
var ErrWrongType = errors.New("wrong type")

// ErrInvalidTTL is returned when an expiry is requested that the backend cannot honour
var ErrInvalidTTL = errors.New("invalid expire time")

// Store is the command set of a Redis-like key-value server that the typed
// layers are built on. Every method maps to a single remote command and is
// atomic on its own; nothing here spans more than one command.
type Store interface {
	// String operations
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)

	// Key operations. The jsredis layers only issue Del; Exists, Expire and
	// TTL are kept so tests and the kvtest conformance suite can observe
	// native expiry across backends.
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Set operations
	SAdd(ctx context.Context, key string, members ...[]byte) (int64, error)
	SRem(ctx context.Context, key string, members ...[]byte) (int64, error)
	SMembers(ctx context.Context, key string) ([][]byte, error)
	SIsMember(ctx context.Context, key string, member []byte) (bool, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
