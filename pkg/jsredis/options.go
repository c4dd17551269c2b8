package jsredis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/jsredis/pkg/kv"
)

// Recorder receives operational counters. internal/metrics provides the
// OpenTelemetry implementation.
type Recorder interface {
	RecordItemHit(ctx context.Context)
	RecordItemMiss(ctx context.Context)
	RecordMemberExpired(ctx context.Context)
	RecordStoreError(ctx context.Context, op string)
}

type nopRecorder struct{}

func (nopRecorder) RecordItemHit(context.Context)            {}
func (nopRecorder) RecordItemMiss(context.Context)           {}
func (nopRecorder) RecordMemberExpired(context.Context)      {}
func (nopRecorder) RecordStoreError(context.Context, string) {}

type options struct {
	codec    Codec
	logger   *zap.SugaredLogger
	recorder Recorder
	now      func() time.Time
}

// Option configures Items and the Sets built on top of them
type Option func(*options)

// WithCodec replaces the default encoding/json codec
func WithCodec(codec Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithLogger sets the logger used for per-operation debug output
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(o *options) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// WithClock replaces time.Now when computing and checking member deadlines
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

type storeContextKey struct{}

// ContextWithStore routes every operation issued with the returned context to
// store instead of the one Items was constructed with. HTTP middleware uses it
// to hand each request its own store handle.
func ContextWithStore(ctx context.Context, store kv.Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, store)
}

// StoreFromContext returns the store attached with ContextWithStore
func StoreFromContext(ctx context.Context) (kv.Store, bool) {
	store, ok := ctx.Value(storeContextKey{}).(kv.Store)
	return store, ok && store != nil
}
