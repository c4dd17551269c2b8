package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leafsii/jsredis/pkg/kv"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client redis.UniversalClient
}

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"connection closed",
	"client is closed",
}

// IsConnectionError checks if an error is a connection-related error that should trigger failover
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}

	// Context cancellation by the caller is not a backend fault
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, connErr := range connectionErrors {
		if strings.Contains(msg, connErr) {
			return true
		}
	}

	return false
}

// wrapError maps go-redis failures onto the kv sentinel errors
func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return kv.ErrNotFound
	case IsConnectionError(err):
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	case strings.HasPrefix(err.Error(), "WRONGTYPE"):
		return fmt.Errorf("%w: %v", kv.ErrWrongType, err)
	case strings.Contains(err.Error(), "invalid expire time"):
		return fmt.Errorf("%w: %v", kv.ErrInvalidTTL, err)
	default:
		return err
	}
}

// ParseOptions accepts a redis:// or rediss:// URL, or a bare host:port[/db]
func ParseOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err == nil {
		return opt, nil
	}

	u, parseErr := url.Parse("redis://" + redisURL)
	if parseErr != nil || u.Host == "" {
		return nil, err
	}

	opt = &redis.Options{Addr: u.Host}
	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		db, dbErr := strconv.Atoi(path)
		if dbErr != nil {
			return nil, fmt.Errorf("invalid redis db %q: %w", path, dbErr)
		}
		opt.DB = db
	}
	if u.User != nil {
		if password, ok := u.User.Password(); ok {
			opt.Password = password
		}
	}

	return opt, nil
}

// New creates a new Redis-backed store and verifies the connection
func New(redisURL string) (*Store, error) {
	store, err := Open(redisURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.client.Ping(ctx).Err(); err != nil {
		store.client.Close()
		return nil, wrapError(err)
	}

	return store, nil
}

// Open creates a store without contacting the server. Connections are made
// lazily, so an unreachable server surfaces as ErrBackendUnavailable on the
// first command.
func Open(redisURL string) (*Store, error) {
	opt, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	return &Store{client: redis.NewClient(opt)}, nil
}

// NewFromClient wraps an existing go-redis client. The store takes ownership
// of the client and closes it on Close.
func NewFromClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// String operations

// Set issues SETEX when the TTL is a whole number of seconds, SET PX for
// sub-second TTLs and a plain SET otherwise
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	if len(ttl) == 0 || ttl[0] == 0 {
		return wrapError(s.client.Set(ctx, key, value, 0).Err())
	}
	if ttl[0] < 0 {
		return fmt.Errorf("%w: %s", kv.ErrInvalidTTL, ttl[0])
	}
	if ttl[0]%time.Second == 0 {
		return wrapError(s.client.SetEx(ctx, key, value, ttl[0]).Err())
	}
	return wrapError(s.client.Set(ctx, key, value, ttl[0]).Err())
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Del(ctx, keys...).Result()
	return n, wrapError(err)
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Exists(ctx, keys...).Result()
	return n, wrapError(err)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	return ok, wrapError(err)
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrapError(err)
	}

	// -2 means the key does not exist, -1 that it has no expiry
	switch ttl {
	case -2, -2 * time.Second:
		return 0, kv.ErrNotFound
	case -1, -1 * time.Second:
		return -1, nil
	}

	return ttl, nil
}

// Set operations

func toArgs(members [][]byte) []interface{} {
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return args
}

func (s *Store) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	n, err := s.client.SAdd(ctx, key, toArgs(members)...).Result()
	return n, wrapError(err)
}

func (s *Store) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	n, err := s.client.SRem(ctx, key, toArgs(members)...).Result()
	return n, wrapError(err)
}

func (s *Store) SMembers(ctx context.Context, key string) ([][]byte, error) {
	result, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrapError(err)
	}

	members := make([][]byte, len(result))
	for i, member := range result {
		members[i] = []byte(member)
	}

	return members, nil
}

func (s *Store) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	return ok, wrapError(err)
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return wrapError(s.client.Ping(ctx).Err())
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
