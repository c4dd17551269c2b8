package memory

import (
	"context"
	"sync"
	"time"

	"github.com/leafsii/jsredis/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface.
// Strings and sets share one keyspace, as they do in Redis.
type Store struct {
	mu          sync.Mutex
	strings     map[string][]byte
	sets        map[string]map[string]struct{}
	expirations map[string]time.Time
	now         func() time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now as the source of the current time for TTL checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new in-memory store. A janitorInterval of zero disables the
// background eviction goroutine; expired keys are then only dropped on access.
func New(janitorInterval time.Duration, opts ...Option) *Store {
	s := &Store{
		strings:         make(map[string][]byte),
		sets:            make(map[string]map[string]struct{}),
		expirations:     make(map[string]time.Time),
		now:             time.Now,
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expiry := range s.expirations {
		if !now.Before(expiry) {
			s.deleteLocked(key)
		}
	}
}

// existsLocked reports whether key holds a live value, dropping it first if
// its TTL has passed. Must hold s.mu.
func (s *Store) existsLocked(key string) bool {
	if expiry, ok := s.expirations[key]; ok && !s.now().Before(expiry) {
		s.deleteLocked(key)
		return false
	}
	if _, ok := s.strings[key]; ok {
		return true
	}
	_, ok := s.sets[key]
	return ok
}

// deleteLocked removes a key of any type along with its TTL. Must hold s.mu.
func (s *Store) deleteLocked(key string) {
	delete(s.strings, key)
	delete(s.sets, key)
	delete(s.expirations, key)
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	if len(ttl) > 0 && ttl[0] < 0 {
		return kv.ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(key)
	s.strings[key] = append([]byte(nil), value...)

	if len(ttl) > 0 && ttl[0] > 0 {
		s.expirations[key] = s.now().Add(ttl[0])
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.existsLocked(key) {
		return nil, kv.ErrNotFound
	}

	value, ok := s.strings[key]
	if !ok {
		return nil, kv.ErrWrongType
	}

	return append([]byte(nil), value...), nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if s.existsLocked(key) {
			deleted++
		}
		s.deleteLocked(key)
	}

	return deleted, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, key := range keys {
		if s.existsLocked(key) {
			count++
		}
	}

	return count, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.existsLocked(key) {
		return false, nil
	}

	if ttl <= 0 {
		s.deleteLocked(key)
		return true, nil
	}

	s.expirations[key] = s.now().Add(ttl)
	return true, nil
}

// TTL mirrors Redis: ErrNotFound for a missing key, -1 for a key without expiry
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.existsLocked(key) {
		return 0, kv.ErrNotFound
	}

	expiry, ok := s.expirations[key]
	if !ok {
		return -1, nil
	}

	return expiry.Sub(s.now()), nil
}

// Set operations

func (s *Store) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.setLocked(key, true)
	if err != nil {
		return 0, err
	}

	var added int64
	for _, member := range members {
		if _, ok := set[string(member)]; !ok {
			set[string(member)] = struct{}{}
			added++
		}
	}

	return added, nil
}

func (s *Store) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.setLocked(key, false)
	if err != nil || set == nil {
		return 0, err
	}

	var removed int64
	for _, member := range members {
		if _, ok := set[string(member)]; ok {
			delete(set, string(member))
			removed++
		}
	}

	// Redis drops empty sets
	if len(set) == 0 {
		s.deleteLocked(key)
	}

	return removed, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.setLocked(key, false)
	if err != nil {
		return nil, err
	}

	members := make([][]byte, 0, len(set))
	for member := range set {
		members = append(members, []byte(member))
	}

	return members, nil
}

func (s *Store) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.setLocked(key, false)
	if err != nil || set == nil {
		return false, err
	}

	_, ok := set[string(member)]
	return ok, nil
}

// setLocked returns the live set stored at key, creating it when create is set.
// A missing key yields a nil set; a string at key yields kv.ErrWrongType.
// Must hold s.mu.
func (s *Store) setLocked(key string, create bool) (map[string]struct{}, error) {
	if !s.existsLocked(key) {
		if !create {
			return nil, nil
		}
		s.sets[key] = make(map[string]struct{})
		return s.sets[key], nil
	}

	set, ok := s.sets[key]
	if !ok {
		return nil, kv.ErrWrongType
	}
	return set, nil
}

// Ping always succeeds for the in-memory store
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background janitor and drops all data
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.janitorInterval > 0 {
			close(s.janitorStop)
			<-s.janitorDone
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		s.strings = make(map[string][]byte)
		s.sets = make(map[string]map[string]struct{})
		s.expirations = make(map[string]time.Time)
	})
	return nil
}
