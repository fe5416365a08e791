// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package rebase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/graph"
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

func buildGraph(t *testing.T, fake *vcstest.Fake, head, main oid.OID, branches map[refs.Name]oid.OID, touched []oid.OID) (*graph.Graph, *mergebase.Oracle) {
	t.Helper()
	oracle := mergebase.New(fake, newMemCache())
	events := make([]eventlog.Event, 0, len(touched))
	for i, o := range touched {
		oo := o
		events = append(events, eventlog.Event{ID: int64(i + 1), TxID: 1, Kind: eventlog.CommitK, CommitOID: &oo})
	}
	replayer := eventlog.NewReplayer(events)
	g, err := graph.Build(context.Background(), fake, oracle, replayer, graph.Inputs{
		HeadOID:       head,
		MainBranchOID: main,
		BranchOIDs:    branches,
		Cursor:        replayer.DefaultCursor(),
	})
	if err != nil {
		t.Fatalf("graph.Build: %v", err)
	}
	return g, oracle
}

func TestBuildPlanAndExecuteHappyPath(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()

	t0 := fake.PutTree(vcstest.Tree{})
	ta := fake.PutTree(vcstest.Tree{"fileA": "1"})
	tb := fake.PutTree(vcstest.Tree{"fileA": "1", "fileB": "2"})
	td := fake.PutTree(vcstest.Tree{"fileD": "x"})

	root := fake.AddCommit(nil, t0, "root")
	a := fake.AddCommit([]oid.OID{root}, ta, "add fileA")
	b := fake.AddCommit([]oid.OID{a}, tb, "add fileB")
	d := fake.AddCommit([]oid.OID{root}, td, "add fileD")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetBranch(refs.NewBranch("feature-d"), d)
	fake.SetHead(b)

	g, oracle := buildGraph(t, fake, b, root, map[refs.Name]oid.OID{
		refs.NewBranch("master"):    root,
		refs.NewBranch("feature-d"): d,
	}, []oid.OID{a, b, d})

	plan, err := BuildPlan(ctx, g, oracle, fake, a, d, Options{})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan == nil {
		t.Fatal("expected non-nil plan")
	}

	exec := NewInMemoryExecutor(fake)
	result, err := exec.Execute(ctx, plan, d, ExecuteOptions{Now: time.Unix(1000, 0)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.NewHead.IsZero() {
		t.Fatal("expected non-zero new head")
	}

	newHeadCommit, err := fake.FindCommit(ctx, result.NewHead)
	if err != nil {
		t.Fatalf("FindCommit(new head): %v", err)
	}
	if len(newHeadCommit.Parents) != 1 {
		t.Fatalf("expected new head to have 1 parent, got %d", len(newHeadCommit.Parents))
	}

	var sawCommit, sawRewrite int
	for _, ev := range result.Events {
		switch ev.Kind {
		case eventlog.CommitK:
			sawCommit++
		case eventlog.Rewrite:
			sawRewrite++
		}
	}
	if sawCommit != 2 || sawRewrite != 2 {
		t.Fatalf("expected 2 commit + 2 rewrite events for a 2-commit pick, got %d/%d", sawCommit, sawRewrite)
	}
}

func TestBuildPlanNoOp(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	t0 := fake.PutTree(vcstest.Tree{})
	root := fake.AddCommit(nil, t0, "root")
	a := fake.AddCommit([]oid.OID{root}, t0, "a")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(a)

	g, oracle := buildGraph(t, fake, a, root, map[refs.Name]oid.OID{refs.NewBranch("master"): root}, []oid.OID{a})

	plan, err := BuildPlan(ctx, g, oracle, fake, a, root, Options{})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan != nil {
		t.Fatalf("expected nil plan for no-op move, got %+v", plan)
	}
}

func TestBuildPlanConflict(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	t0 := fake.PutTree(vcstest.Tree{"file": "base"})
	ta := fake.PutTree(vcstest.Tree{"file": "A"})
	td := fake.PutTree(vcstest.Tree{"file": "D"})

	root := fake.AddCommit(nil, t0, "root")
	a := fake.AddCommit([]oid.OID{root}, ta, "change to A")
	d := fake.AddCommit([]oid.OID{root}, td, "change to D")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetBranch(refs.NewBranch("feature-d"), d)
	fake.SetHead(a)

	g, oracle := buildGraph(t, fake, a, root, map[refs.Name]oid.OID{
		refs.NewBranch("master"):    root,
		refs.NewBranch("feature-d"): d,
	}, []oid.OID{a, d})

	plan, err := BuildPlan(ctx, g, oracle, fake, a, d, Options{})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	exec := NewInMemoryExecutor(fake)
	_, err = exec.Execute(ctx, plan, d, ExecuteOptions{Now: time.Unix(1000, 0)})
	var conflict *errs.ConflictError
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if ce, ok := err.(*errs.ConflictError); !ok {
		t.Fatalf("expected *errs.ConflictError, got %T: %v", err, err)
	} else {
		conflict = ce
	}
	if len(conflict.Paths) != 1 || conflict.Paths[0] != "file" {
		t.Fatalf("expected conflict on [file], got %v", conflict.Paths)
	}
}

func TestBuildPlanPatchIDDedup(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	t0 := fake.PutTree(vcstest.Tree{})
	tdup := fake.PutTree(vcstest.Tree{"file": "same-change"})

	root := fake.AddCommit(nil, t0, "root")
	// d1 already carries the exact change "a" is about to reapply.
	d1 := fake.AddCommit([]oid.OID{root}, tdup, "duplicate change")
	a := fake.AddCommit([]oid.OID{root}, tdup, "duplicate change")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetBranch(refs.NewBranch("feature-d"), d1)
	fake.SetHead(a)

	g, oracle := buildGraph(t, fake, a, root, map[refs.Name]oid.OID{
		refs.NewBranch("master"):    root,
		refs.NewBranch("feature-d"): d1,
	}, []oid.OID{a, d1})

	plan, err := BuildPlan(ctx, g, oracle, fake, a, d1, Options{DetectDuplicateCommitsViaPatchID: true})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	var sawHook bool
	var sawPick bool
	for _, s := range plan.Steps {
		switch s.Kind {
		case RegisterExtraPostRewriteHook:
			sawHook = true
			if s.OldOID != a || s.NewOID != d1 {
				t.Fatalf("expected hook old=%v new=%v, got old=%v new=%v", a, d1, s.OldOID, s.NewOID)
			}
		case Pick:
			if s.CommitOID == a {
				sawPick = true
			}
		}
	}
	if !sawHook {
		t.Fatal("expected a RegisterExtraPostRewriteHook step for the duplicate commit")
	}
	if sawPick {
		t.Fatal("did not expect a Pick step for the duplicate commit")
	}
}

func TestOnDiskExecutorPauseContinueAbort(t *testing.T) {
	ctx := context.Background()
	fake := vcstest.New()
	t0 := fake.PutTree(vcstest.Tree{"file": "base"})
	ta := fake.PutTree(vcstest.Tree{"file": "A"})
	td := fake.PutTree(vcstest.Tree{"file": "D"})

	root := fake.AddCommit(nil, t0, "root")
	a := fake.AddCommit([]oid.OID{root}, ta, "change to A")
	d := fake.AddCommit([]oid.OID{root}, td, "change to D")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetBranch(refs.NewBranch("feature-d"), d)
	fake.SetHead(a)

	g, oracle := buildGraph(t, fake, a, root, map[refs.Name]oid.OID{
		refs.NewBranch("master"):    root,
		refs.NewBranch("feature-d"): d,
	}, []oid.OID{a, d})

	plan, err := BuildPlan(ctx, g, oracle, fake, a, d, Options{})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	metaPath := filepath.Join(t.TempDir(), "REBASE-MD")
	exec := NewOnDiskExecutor(fake, metaPath)
	if exec.InProgress() {
		t.Fatal("expected no rebase in progress before Execute")
	}

	_, err = exec.Execute(ctx, plan, d, ExecuteOptions{Now: time.Unix(1000, 0)})
	if err == nil {
		t.Fatal("expected conflict")
	}
	if _, ok := err.(*errs.ConflictError); !ok {
		t.Fatalf("expected *errs.ConflictError, got %T", err)
	}
	if !exec.InProgress() {
		t.Fatal("expected a pause file after a conflicting Execute")
	}

	orig, err := exec.Abort()
	if err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if orig != d {
		t.Fatalf("expected Abort to return original head %v, got %v", d, orig)
	}
	if exec.InProgress() {
		t.Fatal("expected pause file removed after Abort")
	}

	_, err = exec.Continue(ctx)
	if err != ErrNoRebaseInProgress {
		t.Fatalf("expected ErrNoRebaseInProgress after Abort, got %v", err)
	}
}
