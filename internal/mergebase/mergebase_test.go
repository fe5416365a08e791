package mergebase

import (
	"context"
	"testing"

	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/pkg/vcs/vcstest"
)

type memCache struct {
	m map[[2]oid.OID]struct {
		result oid.OID
		ok     bool
	}
}

func newMemCache() *memCache {
	return &memCache{m: make(map[[2]oid.OID]struct {
		result oid.OID
		ok     bool
	})}
}

func (c *memCache) MergeBaseCacheGet(_ context.Context, lhs, rhs oid.OID) (oid.OID, bool, bool, error) {
	v, found := c.m[[2]oid.OID{lhs, rhs}]
	return v.result, v.ok, found, nil
}

func (c *memCache) MergeBaseCachePut(_ context.Context, lhs, rhs oid.OID, result oid.OID, ok bool) error {
	c.m[[2]oid.OID{lhs, rhs}] = struct {
		result oid.OID
		ok     bool
	}{result, ok}
	return nil
}

func TestMergeBaseCachesAnswer(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	root := fake.AddCommit(nil, oid.Zero, "root")
	a := fake.AddCommit([]oid.OID{root}, oid.Zero, "a")
	b := fake.AddCommit([]oid.OID{root}, oid.Zero, "b")

	cache := newMemCache()
	oracle := New(fake, cache)

	got, ok, err := oracle.MergeBase(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != root {
		t.Fatalf("expected merge base %v, got %v (ok=%v)", root, got, ok)
	}

	lo, hi := oid.Pair(a, b)
	if _, _, found, _ := cache.MergeBaseCacheGet(ctx, lo, hi); !found {
		t.Fatal("expected merge base to be cached after first call")
	}
}

func TestPathToMergeBase(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	root := fake.AddCommit(nil, oid.Zero, "root")
	mid := fake.AddCommit([]oid.OID{root}, oid.Zero, "mid")
	tip := fake.AddCommit([]oid.OID{mid}, oid.Zero, "tip")
	other := fake.AddCommit([]oid.OID{root}, oid.Zero, "other")

	oracle := New(fake, newMemCache())
	path, ok, err := oracle.PathToMergeBase(ctx, tip, other)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a path")
	}
	want := []oid.OID{tip, mid, root}
	if len(path) != len(want) {
		t.Fatalf("unexpected path length: %v", path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path[%d] = %v, want %v", i, path[i], want[i])
		}
	}
}
