// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"testing"

	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
	"github.com/smartbranch/smartbranch/pkg/vcs/vcstest"
)

func TestMoveRebasesSubtreeOntoDestAndUpdatesBranchTip(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestRepo(t)

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
	fake.SetBranch(refs.NewBranch("feature"), b)
	fake.SetHead(b)
	markVisible(t, r, a, b, d)

	if err := (&Move{Source: a.String(), Onto: d.String()}).run(ctx, r); err != nil {
		t.Fatalf("Move.run: %v", err)
	}

	head, err := r.VCS.Head(ctx)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head == b {
		t.Fatal("expected HEAD to move off the pre-move tip")
	}

	tips, err := r.VCS.BranchTips(ctx)
	if err != nil {
		t.Fatalf("BranchTips: %v", err)
	}
	if tips[refs.NewBranch("feature")] != head {
		t.Fatalf("expected feature's tip to follow the rewritten commit to %s, got %s", head, tips[refs.NewBranch("feature")])
	}
	if tips[refs.NewBranch("feature-d")] != d {
		t.Fatalf("expected feature-d untouched, got %s", tips[refs.NewBranch("feature-d")])
	}

	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	var sawRewrite, sawRefUpdate int
	for _, e := range events {
		switch e.Kind {
		case eventlog.Rewrite:
			sawRewrite++
		case eventlog.RefUpdate:
			sawRefUpdate++
		}
	}
	if sawRewrite != 2 {
		t.Fatalf("expected 2 rewrite events for the 2-commit pick, got %d", sawRewrite)
	}
	if sawRefUpdate != 1 {
		t.Fatalf("expected exactly 1 ref-update event (feature's tip), got %d", sawRefUpdate)
	}
}

func TestMoveIsANoopWhenAlreadyOntoDest(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestRepo(t)

	t0 := fake.PutTree(vcstest.Tree{})
	root := fake.AddCommit(nil, t0, "root")
	a := fake.AddCommit([]oid.OID{root}, t0, "a")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(a)
	markVisible(t, r, a)

	if err := (&Move{Source: a.String(), Onto: root.String()}).run(ctx, r); err != nil {
		t.Fatalf("Move.run: %v", err)
	}

	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for a no-op move, got %+v", events)
	}
}

func TestMoveRequiresSourceWithoutBase(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestRepo(t)
	t0 := fake.PutTree(vcstest.Tree{})
	root := fake.AddCommit(nil, t0, "root")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(root)

	if err := (&Move{Onto: "whatever"}).run(ctx, r); err != ErrArgRequired {
		t.Fatalf("expected ErrArgRequired, got %v", err)
	}
}

func TestMoveRequiresOnto(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestRepo(t)
	t0 := fake.PutTree(vcstest.Tree{})
	root := fake.AddCommit(nil, t0, "root")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(root)

	if err := (&Move{Source: root.String()}).run(ctx, r); err != ErrArgRequired {
		t.Fatalf("expected ErrArgRequired, got %v", err)
	}
}
