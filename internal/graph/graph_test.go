package graph

import (
	"context"
	"testing"

	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/mergebase"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
	"github.com/smartbranch/smartbranch/pkg/vcs/vcstest"
)

type memCache struct {
	m map[[2]oid.OID]oid.OID
	k map[[2]oid.OID]bool
}

func newMemCache() *memCache {
	return &memCache{m: map[[2]oid.OID]oid.OID{}, k: map[[2]oid.OID]bool{}}
}
func (c *memCache) MergeBaseCacheGet(_ context.Context, lhs, rhs oid.OID) (oid.OID, bool, bool, error) {
	key := [2]oid.OID{lhs, rhs}
	ok, found := c.k[key]
	return c.m[key], ok, found, nil
}
func (c *memCache) MergeBaseCachePut(_ context.Context, lhs, rhs oid.OID, result oid.OID, ok bool) error {
	key := [2]oid.OID{lhs, rhs}
	c.m[key] = result
	c.k[key] = ok
	return nil
}

func TestBuildGraphVisibility(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	root := fake.AddCommit(nil, oid.Zero, "root")
	a := fake.AddCommit([]oid.OID{root}, oid.Zero, "a")
	b := fake.AddCommit([]oid.OID{a}, oid.Zero, "b")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(b)

	oracle := mergebase.New(fake, newMemCache())

	events := []eventlog.Event{
		{ID: 1, TxID: 1, Kind: eventlog.CommitK, CommitOID: &a},
		{ID: 2, TxID: 2, Kind: eventlog.CommitK, CommitOID: &b},
	}
	replayer := eventlog.NewReplayer(events)

	g, err := Build(ctx, fake, oracle, replayer, Inputs{
		HeadOID:       b,
		MainBranchOID: root,
		BranchOIDs:    map[refs.Name]oid.OID{refs.NewBranch("master"): root},
		Cursor:        replayer.DefaultCursor(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !g.Nodes[root].IsMain {
		t.Fatal("expected root to be main")
	}
	if g.Nodes[a] == nil || !g.Nodes[a].IsVisible {
		t.Fatal("expected a to be visible")
	}
	if g.Nodes[b] == nil || !g.Nodes[b].IsVisible {
		t.Fatal("expected b to be visible")
	}
	if len(g.Nodes[root].Children) != 1 || g.Nodes[root].Children[0] != a {
		t.Fatalf("expected root's only child to be a, got %v", g.Nodes[root].Children)
	}
}

func TestResolveBaseCommit(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	root := fake.AddCommit(nil, oid.Zero, "root")
	a := fake.AddCommit([]oid.OID{root}, oid.Zero, "a")
	b := fake.AddCommit([]oid.OID{a}, oid.Zero, "b")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(b)

	oracle := mergebase.New(fake, newMemCache())
	events := []eventlog.Event{
		{ID: 1, TxID: 1, Kind: eventlog.CommitK, CommitOID: &a},
		{ID: 2, TxID: 2, Kind: eventlog.CommitK, CommitOID: &b},
	}
	replayer := eventlog.NewReplayer(events)
	g, err := Build(ctx, fake, oracle, replayer, Inputs{
		HeadOID:       b,
		MainBranchOID: root,
		BranchOIDs:    map[refs.Name]oid.OID{refs.NewBranch("master"): root},
		Cursor:        replayer.DefaultCursor(),
	})
	if err != nil {
		t.Fatal(err)
	}
	base, found := ResolveBaseCommit(g, b)
	if !found || base != a {
		t.Fatalf("expected base %v, got %v (found=%v)", a, base, found)
	}
}
