package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// FailoverStore wraps a primary and fallback store, failing over when the
// primary reports ErrBackendUnavailable and promoting it back once a
// background ping succeeds.
//
// The command that observes the outage still fails with
// ErrBackendUnavailable; only later commands are served by the fallback.
// Those answers come from a store that does not hold the primary's data, and
// writes made to it are not replayed on recovery. Use it only where serving
// possibly stale or empty results beats failing.
type FailoverStore struct {
	primary       Store
	fallback      Store
	active        atomic.Pointer[storeRef]
	probeInterval time.Duration
	logger        LogFunc

	mu        sync.Mutex
	probing   bool
	closed    chan struct{}
	probeStop chan struct{}
	probeDone chan struct{}
	promote   chan struct{}
	closeOnce sync.Once
}

// NewFailoverStore creates a failover store that starts on the primary
func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	return newFailoverStore(primary, fallback, probeInterval, logger, false)
}

// NewFailoverStoreWithFallbackActive creates a failover store that starts on
// the fallback and probes the primary for recovery (used when the primary
// fails its startup health check)
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	return newFailoverStore(primary, fallback, probeInterval, logger, true)
}

// storeRef gives the active pointer one concrete type whichever backend it holds
type storeRef struct {
	Store
}

func newFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc, fallbackActive bool) *FailoverStore {
	if logger == nil {
		logger = func(string, ...any) {}
	}

	fs := &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
		closed:        make(chan struct{}),
		promote:       make(chan struct{}, 1),
	}

	if fallbackActive {
		fs.active.Store(&storeRef{fallback})
		fs.startProbing()
	} else {
		fs.active.Store(&storeRef{primary})
	}

	go fs.handlePromotions()
	return fs
}

func (fs *FailoverStore) activeStore() Store {
	return fs.active.Load().Store
}

// demoteToFallback switches to the fallback store and starts probing the primary
func (fs *FailoverStore) demoteToFallback() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.activeStore() == fs.fallback {
		return
	}

	fs.active.Store(&storeRef{fs.fallback})
	fs.logger("Failing over to in-memory store", "reason", "primary_unavailable")
	fs.startProbingLocked()
}

func (fs *FailoverStore) handlePromotions() {
	for {
		select {
		case <-fs.closed:
			return
		case <-fs.promote:
			if fs.activeStore() == fs.primary {
				continue
			}
			fs.active.Store(&storeRef{fs.primary})
			fs.logger("Recovered to primary store", "reason", "primary_healthy")
			fs.stopProbing()
		}
	}
}

func (fs *FailoverStore) signalPromotion() {
	select {
	case fs.promote <- struct{}{}:
	default:
		// promotion already pending
	}
}

func (fs *FailoverStore) startProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.startProbingLocked()
}

// startProbingLocked must be called with fs.mu held
func (fs *FailoverStore) startProbingLocked() {
	if fs.probing {
		return
	}
	fs.probing = true
	fs.probeStop = make(chan struct{})
	fs.probeDone = make(chan struct{})
	go fs.probeLoop(fs.probeStop, fs.probeDone)
}

func (fs *FailoverStore) stopProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.stopProbingLocked()
}

// stopProbingLocked must be called with fs.mu held
func (fs *FailoverStore) stopProbingLocked() {
	if !fs.probing {
		return
	}
	close(fs.probeStop)
	<-fs.probeDone
	fs.probing = false
}

func (fs *FailoverStore) probeLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.closed:
			return
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fs.probeInterval/2)
			err := fs.primary.Ping(ctx)
			cancel()

			if err == nil {
				fs.signalPromotion()
				return
			}
		}
	}
}

// withFailover runs fn on the active store. A connection failure on the
// primary demotes it; the failing call is not retried.
func withFailover[T any](fs *FailoverStore, fn func(Store) (T, error)) (T, error) {
	store := fs.activeStore()
	result, err := fn(store)

	if store == fs.primary && errors.Is(err, ErrBackendUnavailable) {
		fs.demoteToFallback()
	}

	return result, err
}

func (fs *FailoverStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	_, err := withFailover(fs, func(s Store) (struct{}, error) {
		return struct{}{}, s.Set(ctx, key, value, ttl...)
	})
	return err
}

func (fs *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	return withFailover(fs, func(s Store) ([]byte, error) {
		return s.Get(ctx, key)
	})
}

func (fs *FailoverStore) Del(ctx context.Context, keys ...string) (int64, error) {
	return withFailover(fs, func(s Store) (int64, error) {
		return s.Del(ctx, keys...)
	})
}

func (fs *FailoverStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	return withFailover(fs, func(s Store) (int64, error) {
		return s.Exists(ctx, keys...)
	})
}

func (fs *FailoverStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return withFailover(fs, func(s Store) (bool, error) {
		return s.Expire(ctx, key, ttl)
	})
}

func (fs *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return withFailover(fs, func(s Store) (time.Duration, error) {
		return s.TTL(ctx, key)
	})
}

func (fs *FailoverStore) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	return withFailover(fs, func(s Store) (int64, error) {
		return s.SAdd(ctx, key, members...)
	})
}

func (fs *FailoverStore) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	return withFailover(fs, func(s Store) (int64, error) {
		return s.SRem(ctx, key, members...)
	})
}

func (fs *FailoverStore) SMembers(ctx context.Context, key string) ([][]byte, error) {
	return withFailover(fs, func(s Store) ([][]byte, error) {
		return s.SMembers(ctx, key)
	})
}

func (fs *FailoverStore) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	return withFailover(fs, func(s Store) (bool, error) {
		return s.SIsMember(ctx, key, member)
	})
}

// Ping checks the active store
func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.activeStore().Ping(ctx)
}

// GetActiveBackend reports "primary" or "fallback"
func (fs *FailoverStore) GetActiveBackend() string {
	if fs.activeStore() == fs.primary {
		return "primary"
	}
	return "fallback"
}

// Close stops background probing and closes both stores
func (fs *FailoverStore) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		close(fs.closed)
		fs.stopProbing()

		err = errors.Join(fs.primary.Close(), fs.fallback.Close())
	})
	return err
}
