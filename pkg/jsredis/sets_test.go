package jsredis_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/jsredis/pkg/jsredis"
	"github.com/leafsii/jsredis/pkg/kv"
	"github.com/leafsii/jsredis/pkg/kv/kvtest"
	"github.com/leafsii/jsredis/pkg/kv/memory"
	kvredis "github.com/leafsii/jsredis/pkg/kv/redis"
)

const aliceToken = "ImFsaWNlIg=="

func TestIsMemberBeforeAdd(t *testing.T) {
	f := newFixture(t)

	ok, err := f.client.Sets.IsMember(context.Background(), "allow-list", "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddWithoutExpiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "allow-list", "alice"))

	f.clock.Advance(10 * 365 * 24 * time.Hour)
	ok, err := f.client.Sets.IsMember(ctx, "allow-list", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := f.store.Exists(ctx, jsredis.ShadowKey("allow-list", aliceToken))
	require.NoError(t, err)
	assert.Zero(t, n, "members without expiration have no shadow record")
}

func TestAllowListScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "allow-list", "alice", jsredis.Seconds(1)))

	ok, err := f.client.Sets.IsMember(ctx, "allow-list", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(2 * time.Second)

	ok, err = f.client.Sets.IsMember(ctx, "allow-list", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	raw, err := f.store.SIsMember(ctx, "allow-list", []byte(aliceToken))
	require.NoError(t, err)
	assert.False(t, raw, "expired token is removed from the native set")

	n, err := f.store.Exists(ctx, jsredis.ShadowKey("allow-list", aliceToken))
	require.NoError(t, err)
	assert.Zero(t, n, "shadow record is removed")
	assert.Equal(t, int64(1), f.recorder.expired.Load())
}

func TestDeadlineIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "m", jsredis.Seconds(5)))

	f.clock.Advance(5 * time.Second)
	ok, err := f.client.Sets.IsMember(ctx, "s", "m")
	require.NoError(t, err)
	assert.True(t, ok, "member is live while now equals the deadline")

	f.clock.Advance(time.Nanosecond)
	ok, err = f.client.Sets.IsMember(ctx, "s", "m")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddWithPastExpiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "ghost", jsredis.Seconds(-1)))

	ok, err := f.client.Sets.IsMember(ctx, "s", "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := f.store.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestAddWithExpirationBeyondDurationRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "m", jsredis.Years(300)))

	f.clock.Advance(24 * time.Hour)
	ok, err := f.client.Sets.IsMember(ctx, "s", "m")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddRejectsUnrepresentableExpiration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.client.Sets.Add(ctx, "s", "m", jsredis.Years(1e9))

	var encErr *jsredis.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.ErrorIs(t, err, jsredis.ErrExpirationRange)

	members, err := f.store.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMembershipChecksLeaveItemCountersAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "timed", jsredis.Minutes(1)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", "plain"))

	for _, member := range []string{"timed", "plain", "absent"} {
		_, err := f.client.Sets.IsMember(ctx, "s", member)
		require.NoError(t, err)
	}
	_, err := jsredis.Members[string](ctx, f.client.Sets, "s")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	ok, err := f.client.Sets.IsMember(ctx, "s", "timed")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Zero(t, f.recorder.hits.Load())
	assert.Zero(t, f.recorder.misses.Load())
	assert.Equal(t, int64(1), f.recorder.expired.Load())
}

func TestReAddWithoutExpirationKeepsDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "m", jsredis.Minutes(1)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", "m"))

	f.clock.Advance(2 * time.Minute)
	ok, err := f.client.Sets.IsMember(ctx, "s", "m")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReAddWithExpirationReplacesDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "m", jsredis.Minutes(1)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", "m", jsredis.Hours(1)))

	f.clock.Advance(2 * time.Minute)
	ok, err := f.client.Sets.IsMember(ctx, "s", "m")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "m", jsredis.Days(1)))

	n, err := f.client.Sets.Remove(ctx, "s", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.client.Sets.Remove(ctx, "s", "m")
	require.NoError(t, err)
	assert.Zero(t, n)

	exists, err := f.store.Exists(ctx, jsredis.ShadowKey("s", "Im0i"))
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestStructurallyEqualMembersCollide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", map[string]any{"a": 1, "b": 2}))

	ok, err := f.client.Sets.IsMember(ctx, "s", map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.client.Sets.Add(ctx, "s", profile{Name: "bob", Age: 40}))
	ok, err = f.client.Sets.IsMember(ctx, "s", profile{Name: "bob", Age: 40})
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := f.store.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestDistinctMembersAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "short", jsredis.Seconds(1)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", "long", jsredis.Hours(1)))
	f.clock.Advance(time.Minute)

	ok, err := f.client.Sets.IsMember(ctx, "s", "short")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.client.Sets.IsMember(ctx, "s", "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddEncodingError(t *testing.T) {
	f := newFixture(t)

	err := f.client.Sets.Add(context.Background(), "s", func() {})

	var encErr *jsredis.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "s", encErr.Key)

	_, err = f.client.Sets.IsMember(context.Background(), "s", make(chan int))
	require.ErrorAs(t, err, &encErr)
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "carol"))
	require.NoError(t, f.client.Sets.Add(ctx, "s", "alice", jsredis.Seconds(1)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", "bob", jsredis.Hours(1)))

	members, err := jsredis.Members[string](ctx, f.client.Sets, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, members)

	f.clock.Advance(time.Minute)

	members, err = jsredis.Members[string](ctx, f.client.Sets, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, members)

	members, err = jsredis.Members[string](ctx, f.client.Sets, "missing")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMembersDecodingError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "not-a-number"))

	_, err := jsredis.Members[int](ctx, f.client.Sets, "s")
	var decErr *jsredis.DecodingError
	require.ErrorAs(t, err, &decErr)
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", 1, jsredis.Seconds(10)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", 2, jsredis.Seconds(20)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", 3, jsredis.Days(1)))
	require.NoError(t, f.client.Sets.Add(ctx, "s", 4))

	f.clock.Advance(30 * time.Second)

	purged, err := f.client.Sets.Purge(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	members, err := jsredis.Members[int](ctx, f.client.Sets, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{3, 4}, members)

	purged, err = f.client.Sets.Purge(ctx, "s")
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestConcurrentExpiredChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.Sets.Add(ctx, "s", "m", jsredis.Seconds(1)))
	f.clock.Advance(time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.client.Sets.IsMember(ctx, "s", "m")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	members, err := f.store.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestCascadeFailurePropagates(t *testing.T) {
	store := &mockStore{}
	clock := kvtest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	client := jsredis.New(store, jsredis.WithClock(clock.Now))
	ctx := context.Background()

	shadow := jsredis.ShadowKey("s", aliceToken)
	past, err := json.Marshal(jsredis.Deadline{Time: clock.Now().Add(-time.Hour)})
	require.NoError(t, err)

	store.On("Get", mock.Anything, shadow).Return(past, nil)
	store.On("Del", mock.Anything, []string{shadow}).Return(int64(0), kv.ErrBackendUnavailable)

	ok, err := client.Sets.IsMember(ctx, "s", "alice")
	assert.False(t, ok)

	var storeErr *jsredis.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "del", storeErr.Op)
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)

	store.AssertNotCalled(t, "SIsMember", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SRem", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddStopsWhenShadowWriteFails(t *testing.T) {
	store := &mockStore{}
	client := jsredis.New(store)

	store.On("Set", mock.Anything, jsredis.ShadowKey("s", aliceToken), mock.Anything, mock.Anything).
		Return(kv.ErrBackendUnavailable)

	err := client.Sets.Add(context.Background(), "s", "alice", jsredis.Minutes(5))
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
	store.AssertNotCalled(t, "SAdd", mock.Anything, mock.Anything, mock.Anything)
}

func newMiniredisClient(t *testing.T, clock *kvtest.Clock) (*miniredis.Miniredis, *jsredis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	store := kvredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: server.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	return server, jsredis.New(store, jsredis.WithClock(clock.Now))
}

func TestRedisKeyLayout(t *testing.T) {
	clock := kvtest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	server, client := newMiniredisClient(t, clock)
	ctx := context.Background()

	require.NoError(t, client.Sets.Add(ctx, "allow-list", "alice", jsredis.Seconds(1)))

	ok, err := server.IsMember("allow-list", aliceToken)
	require.NoError(t, err)
	assert.True(t, ok)

	shadow, err := server.Get("exp::allow-list::" + aliceToken)
	require.NoError(t, err)
	want, err := json.Marshal(jsredis.Deadline{Time: clock.Now().Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, string(want), shadow)
	assert.Zero(t, server.TTL("exp::allow-list::"+aliceToken), "shadow records carry no native expiry")

	clock.Advance(2 * time.Second)

	member, err := client.Sets.IsMember(ctx, "allow-list", "alice")
	require.NoError(t, err)
	assert.False(t, member)
	assert.False(t, server.Exists("allow-list"))
	assert.False(t, server.Exists("exp::allow-list::"+aliceToken))
}

func TestRedisReadsExistingShadowRecords(t *testing.T) {
	clock := kvtest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	server, client := newMiniredisClient(t, clock)
	ctx := context.Background()

	// 750000000s after 2001-01-01 is in October 2024
	_, err := server.SAdd("allow-list", aliceToken)
	require.NoError(t, err)
	require.NoError(t, server.Set("exp::allow-list::"+aliceToken, "750000000"))
	_, err = server.SAdd("allow-list", "ImJvYiI=")
	require.NoError(t, err)
	require.NoError(t, server.Set("exp::allow-list::ImJvYiI=", "1000000000.5"))

	ok, err := client.Sets.IsMember(ctx, "allow-list", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.Sets.IsMember(ctx, "allow-list", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisItemExpiry(t *testing.T) {
	clock := kvtest.NewClock(time.Now())
	server, client := newMiniredisClient(t, clock)
	ctx := context.Background()

	require.NoError(t, client.Items.Set(ctx, "session", map[string]string{"user": "alice"}, jsredis.Minutes(1)))
	assert.Equal(t, time.Minute, server.TTL("session"))

	server.FastForward(61 * time.Second)

	_, ok, err := jsredis.Get[map[string]string](ctx, client.Items, "session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisOutageFailsMembershipCheck(t *testing.T) {
	clock := kvtest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	server, client := newMiniredisClient(t, clock)
	ctx := context.Background()

	require.NoError(t, client.Sets.Add(ctx, "allow-list", "alice", jsredis.Hours(1)))
	server.Close()

	ok, err := client.Sets.IsMember(ctx, "allow-list", "alice")
	assert.False(t, ok)

	var storeErr *jsredis.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get", storeErr.Op)
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
}

func TestRedisOutageWithOptInFailover(t *testing.T) {
	clock := kvtest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	server := miniredis.RunT(t)
	primary := kvredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: server.Addr(), MaxRetries: -1}))
	store := kv.NewFailoverStore(primary, memory.New(0), time.Hour, nil)
	t.Cleanup(func() { _ = store.Close() })

	client := jsredis.New(store, jsredis.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, client.Sets.Add(ctx, "allow-list", "alice"))
	server.Close()

	// The check that runs into the outage fails instead of answering from memory
	_, err := client.Sets.IsMember(ctx, "allow-list", "alice")
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
	assert.Equal(t, "fallback", store.GetActiveBackend())

	// Later checks are answered by the empty fallback
	ok, err := client.Sets.IsMember(ctx, "allow-list", "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}
