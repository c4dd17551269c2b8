// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/leafsii/jsredis/pkg/kv"
)

// Harness is a fresh store plus a way to move its notion of time forward.
// Backends with a fake clock advance it; a real server simply sleeps.
type Harness struct {
	Store   kv.Store
	Advance func(d time.Duration)
}

// StoreFactory creates a fresh Harness for each test
type StoreFactory func(t *testing.T) Harness

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	groups := []struct {
		name  string
		tests []conformanceTest
	}{
		{"StringOperations", []conformanceTest{
			{"SetGet", testSetGet},
			{"GetNonExistent", testGetNonExistent},
			{"Overwrite", testOverwrite},
		}},
		{"KeyOperations", []conformanceTest{
			{"Del", testDel},
			{"DelMissing", testDelMissing},
			{"Exists", testExists},
		}},
		{"TTLOperations", []conformanceTest{
			{"SetWithTTL", testSetWithTTL},
			{"SetNegativeTTL", testSetNegativeTTL},
			{"Expire", testExpire},
			{"TTL", testTTL},
		}},
		{"SetOperations", []conformanceTest{
			{"SAddMembers", testSAddMembers},
			{"SRem", testSRem},
			{"SRemLastMemberDropsKey", testSRemLastMember},
			{"SIsMember", testSIsMember},
			{"SMembersMissing", testSMembersMissing},
			{"BinaryMembers", testBinaryMembers},
		}},
		{"TypeChecks", []conformanceTest{
			{"SAddOnString", testSAddOnString},
			{"GetOnSet", testGetOnSet},
			{"SetReplacesSet", testSetReplacesSet},
		}},
	}

	for _, group := range groups {
		t.Run(group.name, func(t *testing.T) {
			for _, tt := range group.tests {
				t.Run(tt.name, func(t *testing.T) {
					h := factory(t)
					defer h.Store.Close()
					tt.test(t, h)
				})
			}
		})
	}

	t.Run("HealthCheck", func(t *testing.T) {
		h := factory(t)
		defer h.Store.Close()
		if err := h.Store.Ping(context.Background()); err != nil {
			t.Fatalf("Ping failed for healthy store: %v", err)
		}
	})
}

type conformanceTest struct {
	name string
	test func(t *testing.T, h Harness)
}

func testSetGet(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:string"
	value := []byte(`{"hello":"world"}`)

	if err := h.Store.Set(ctx, key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := h.Store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(result, value) {
		t.Fatalf("Expected %q, got %q", value, result)
	}
}

func testGetNonExistent(t *testing.T, h Harness) {
	_, err := h.Store.Get(context.Background(), "test:nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testOverwrite(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:overwrite"

	h.Store.Set(ctx, key, []byte("first"), 10*time.Second)
	if err := h.Store.Set(ctx, key, []byte("second")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := h.Store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(result) != "second" {
		t.Fatalf("Expected %q, got %q", "second", result)
	}

	// A plain SET clears any previous expiry
	ttl, err := h.Store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected overwrite to clear TTL, got %v", ttl)
	}
}

func testDel(t *testing.T, h Harness) {
	ctx := context.Background()
	key1, key2 := "test:del1", "test:del2"
	value := []byte("test")

	h.Store.Set(ctx, key1, value)
	h.Store.Set(ctx, key2, value)

	deleted, err := h.Store.Del(ctx, key1)
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted, got %d", deleted)
	}

	_, err = h.Store.Get(ctx, key1)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted key, got %v", err)
	}

	if _, err := h.Store.Get(ctx, key2); err != nil {
		t.Fatalf("Expected key2 to still exist, got %v", err)
	}
}

func testDelMissing(t *testing.T, h Harness) {
	ctx := context.Background()

	h.Store.Set(ctx, "test:del-present", []byte("x"))
	h.Store.SAdd(ctx, "test:del-set", []byte("m"))

	deleted, err := h.Store.Del(ctx, "test:del-present", "test:del-set", "test:del-absent")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("Expected 2 deleted, got %d", deleted)
	}

	deleted, err = h.Store.Del(ctx, "test:del-present")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("Expected 0 deleted for absent key, got %d", deleted)
	}
}

func testExists(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:exists"

	count, err := h.Store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 for non-existent key, got %d", count)
	}

	h.Store.Set(ctx, key, []byte("test"))

	count, err = h.Store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 for existing key, got %d", count)
	}
}

func testSetWithTTL(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:ttl"

	if err := h.Store.Set(ctx, key, []byte("expires"), 1*time.Second); err != nil {
		t.Fatalf("Set with TTL failed: %v", err)
	}

	if _, err := h.Store.Get(ctx, key); err != nil {
		t.Fatalf("Expected key to exist initially, got %v", err)
	}

	h.Advance(1500 * time.Millisecond)

	_, err := h.Store.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testSetNegativeTTL(t *testing.T, h Harness) {
	err := h.Store.Set(context.Background(), "test:negative-ttl", []byte("x"), -time.Second)
	if !errors.Is(err, kv.ErrInvalidTTL) {
		t.Fatalf("Expected ErrInvalidTTL, got %v", err)
	}
}

func testExpire(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:expire"

	h.Store.Set(ctx, key, []byte("test"))

	ok, err := h.Store.Expire(ctx, key, 1*time.Second)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected Expire to return true for existing key")
	}

	ok, err = h.Store.Expire(ctx, "test:expire-missing", time.Second)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected Expire to return false for missing key")
	}

	h.Advance(1500 * time.Millisecond)

	_, err = h.Store.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testTTL(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:ttl-check"

	_, err := h.Store.TTL(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}

	h.Store.Set(ctx, key, []byte("test"))
	ttl, err := h.Store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 for key without TTL, got %v", ttl)
	}

	h.Store.Set(ctx, key, []byte("test"), 10*time.Second)
	ttl, err = h.Store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("Expected TTL between 0 and 10s, got %v", ttl)
	}
}

func testSAddMembers(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set"

	added, err := h.Store.SAdd(ctx, key, []byte("member1"), []byte("member2"))
	if err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("Expected 2 added, got %d", added)
	}

	members, err := h.Store.SMembers(ctx, key)
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	got := make([]string, len(members))
	for i, m := range members {
		got[i] = string(m)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "member1" || got[1] != "member2" {
		t.Fatalf("Expected [member1 member2], got %v", got)
	}

	added, err = h.Store.SAdd(ctx, key, []byte("member1"))
	if err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if added != 0 {
		t.Fatalf("Expected 0 added for duplicate, got %d", added)
	}
}

func testSRem(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set-rem"

	h.Store.SAdd(ctx, key, []byte("member1"), []byte("member2"))

	removed, err := h.Store.SRem(ctx, key, []byte("member1"))
	if err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Expected 1 removed, got %d", removed)
	}

	removed, err = h.Store.SRem(ctx, key, []byte("member1"))
	if err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("Expected 0 removed on second call, got %d", removed)
	}

	isMember, err := h.Store.SIsMember(ctx, key, []byte("member1"))
	if err != nil {
		t.Fatalf("SIsMember failed: %v", err)
	}
	if isMember {
		t.Fatalf("Expected member1 to be removed")
	}

	removed, err = h.Store.SRem(ctx, "test:set-rem-missing", []byte("member1"))
	if err != nil {
		t.Fatalf("SRem on missing set failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("Expected 0 removed from missing set, got %d", removed)
	}
}

func testSRemLastMember(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set-last"

	h.Store.SAdd(ctx, key, []byte("only"))
	h.Store.SRem(ctx, key, []byte("only"))

	count, err := h.Store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected empty set to be dropped, Exists returned %d", count)
	}
}

func testSIsMember(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set-member"

	h.Store.SAdd(ctx, key, []byte("member1"))

	isMember, err := h.Store.SIsMember(ctx, key, []byte("member1"))
	if err != nil {
		t.Fatalf("SIsMember failed: %v", err)
	}
	if !isMember {
		t.Fatalf("Expected member1 to be a member")
	}

	isMember, err = h.Store.SIsMember(ctx, key, []byte("nonmember"))
	if err != nil {
		t.Fatalf("SIsMember failed: %v", err)
	}
	if isMember {
		t.Fatalf("Expected nonmember to not be a member")
	}

	isMember, err = h.Store.SIsMember(ctx, "test:set-missing", []byte("member1"))
	if err != nil {
		t.Fatalf("SIsMember on missing set failed: %v", err)
	}
	if isMember {
		t.Fatalf("Expected no members in a missing set")
	}
}

func testSMembersMissing(t *testing.T, h Harness) {
	members, err := h.Store.SMembers(context.Background(), "test:set-none")
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("Expected no members, got %d", len(members))
	}
}

func testBinaryMembers(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:set-binary"
	member := []byte("eyJpZCI6MX0=") // base64 tokens contain '=' and '+'

	h.Store.SAdd(ctx, key, member)

	isMember, err := h.Store.SIsMember(ctx, key, member)
	if err != nil {
		t.Fatalf("SIsMember failed: %v", err)
	}
	if !isMember {
		t.Fatalf("Expected %q to be a member", member)
	}
}

func testSAddOnString(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:wrongtype-string"

	h.Store.Set(ctx, key, []byte("scalar"))

	_, err := h.Store.SAdd(ctx, key, []byte("m"))
	if !errors.Is(err, kv.ErrWrongType) {
		t.Fatalf("Expected ErrWrongType, got %v", err)
	}
}

func testGetOnSet(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:wrongtype-set"

	h.Store.SAdd(ctx, key, []byte("m"))

	_, err := h.Store.Get(ctx, key)
	if !errors.Is(err, kv.ErrWrongType) {
		t.Fatalf("Expected ErrWrongType, got %v", err)
	}
}

func testSetReplacesSet(t *testing.T, h Harness) {
	ctx := context.Background()
	key := "test:replace-set"

	h.Store.SAdd(ctx, key, []byte("m"))
	if err := h.Store.Set(ctx, key, []byte("scalar")); err != nil {
		t.Fatalf("Set over a set failed: %v", err)
	}

	value, err := h.Store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "scalar" {
		t.Fatalf("Expected %q, got %q", "scalar", value)
	}
}
