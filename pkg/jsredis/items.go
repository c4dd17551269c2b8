package jsredis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/jsredis/pkg/kv"
)

// Items is the scalar item store: JSON values under string keys
type Items struct {
	store    kv.Store
	codec    Codec
	logger   *zap.SugaredLogger
	recorder Recorder
	now      func() time.Time
}

// NewItems creates an item store over store
func NewItems(store kv.Store, opts ...Option) *Items {
	o := options{
		codec:    StdCodec{},
		logger:   zap.NewNop().Sugar(),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Items{
		store:    store,
		codec:    o.codec,
		logger:   o.logger,
		recorder: o.recorder,
		now:      o.now,
	}
}

// storeFor returns the request-scoped store if ctx carries one
func (i *Items) storeFor(ctx context.Context) kv.Store {
	if store, ok := StoreFromContext(ctx); ok {
		return store
	}
	return i.store
}

func (i *Items) storeError(ctx context.Context, op, key string, err error) error {
	i.recorder.RecordStoreError(ctx, op)
	i.logger.Errorw("Redis command failed", "op", op, "key", key, "error", err)
	return &StoreError{Op: op, Key: key, Err: err}
}

// Set stores value under key. With an expiration the write carries a
// store-native expiry of exp.Seconds() truncated to whole seconds; only the
// first expiration is used.
func (i *Items) Set(ctx context.Context, key string, value any, exp ...Expiration) error {
	data, err := i.codec.Marshal(value)
	if err != nil {
		return &EncodingError{Key: key, Err: err}
	}

	if len(exp) == 0 {
		if err := i.storeFor(ctx).Set(ctx, key, data); err != nil {
			return i.storeError(ctx, "set", key, err)
		}
		i.logger.Debugw("Redis item saved", "key", key)
		return nil
	}

	if err := exp[0].validate(); err != nil {
		return &EncodingError{Key: key, Err: err}
	}
	// time.Duration cannot carry a TTL beyond about 292 years
	if exp[0].Seconds() < 1 || exp[0].Seconds() >= maxDurationSeconds {
		return i.storeError(ctx, "setex", key, kv.ErrInvalidTTL)
	}
	secs := int64(exp[0].Seconds())

	if err := i.storeFor(ctx).Set(ctx, key, data, time.Duration(secs)*time.Second); err != nil {
		return i.storeError(ctx, "setex", key, err)
	}
	i.logger.Debugw("Redis item saved", "key", key, "ttl_seconds", secs)
	return nil
}

// Get loads the value at key into a T. A missing key is reported through the
// boolean, not as an error.
func Get[T any](ctx context.Context, items *Items, key string) (T, bool, error) {
	var value T

	data, ok, err := items.fetch(ctx, key)
	if err != nil {
		return value, false, err
	}
	if !ok {
		items.recorder.RecordItemMiss(ctx)
		return value, false, nil
	}
	items.recorder.RecordItemHit(ctx)

	if err := items.decode(key, data, &value); err != nil {
		return value, false, err
	}

	items.logger.Debugw("Redis item retrieved", "key", key)
	return value, true, nil
}

// fetch reads the raw bytes at key. It leaves the hit and miss counters alone
// so internal reads such as shadow records do not skew them.
func (i *Items) fetch(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := i.storeFor(ctx).Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, i.storeError(ctx, "get", key, err)
	}
	return data, true, nil
}

func (i *Items) decode(key string, data []byte, v any) error {
	if err := i.codec.Unmarshal(data, v); err != nil {
		return &DecodingError{Key: key, Err: err}
	}
	return nil
}

// Delete removes keys and returns how many existed
func (i *Items) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := i.storeFor(ctx).Del(ctx, keys...)
	if err != nil {
		return 0, i.storeError(ctx, "del", keys[0], err)
	}

	i.logger.Debugw("Redis items deleted", "keys", keys, "deleted", n)
	return n, nil
}
