// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"testing"

	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
)

func TestHideAppendsHideEventPerRevision(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestRepo(t)

	t0 := fake.PutTree(nil)
	root := fake.AddCommit(nil, t0, "root")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(root)

	c := &Hide{Revisions: []string{root.String()}}
	if err := c.run(ctx, r); err != nil {
		t.Fatalf("Hide.run: %v", err)
	}

	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 1 || events[0].Kind != eventlog.Hide {
		t.Fatalf("expected exactly one hide event, got %+v", events)
	}
	if events[0].CommitOID == nil || *events[0].CommitOID != root {
		t.Fatalf("hide event targets wrong commit: %+v", events[0])
	}
}

func TestHideRequiresAtLeastOneRevision(t *testing.T) {
	c := &Hide{}
	if err := c.Run(&Globals{}); err != ErrArgRequired {
		t.Fatalf("expected ErrArgRequired, got %v", err)
	}
}

func TestHideRejectsUnresolvedRevision(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	c := &Hide{Revisions: []string{"does-not-exist"}}
	if err := c.run(ctx, r); err == nil {
		t.Fatal("expected an error for an unresolved revision")
	}
}

// TestHideRecursiveHidesWholeSubtree mirrors the linear-chain scenario:
// A <- B <- C with A as the main-branch tip and B, C stacked on it;
// hide A --recursive must hide all three in one transaction.
func TestHideRecursiveHidesWholeSubtree(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestRepo(t)

	t0 := fake.PutTree(nil)
	a := fake.AddCommit(nil, t0, "a")
	b := fake.AddCommit([]oid.OID{a}, t0, "b")
	c := fake.AddCommit([]oid.OID{b}, t0, "c")
	fake.SetBranch(refs.NewBranch("master"), a)
	fake.SetHead(c)

	if err := (&Hide{Revisions: []string{a.String()}, Recursive: true}).run(ctx, r); err != nil {
		t.Fatalf("Hide.run: %v", err)
	}

	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected exactly 3 hide events, got %+v", events)
	}
	seen := map[oid.OID]bool{}
	txIDs := map[int64]bool{}
	for _, e := range events {
		if e.Kind != eventlog.Hide {
			t.Fatalf("expected a hide event, got %+v", e)
		}
		seen[*e.CommitOID] = true
		txIDs[e.TxID] = true
	}
	for _, want := range []oid.OID{a, b, c} {
		if !seen[want] {
			t.Fatalf("expected %s to be hidden, got %+v", want.Short(), events)
		}
	}
	if len(txIDs) != 1 {
		t.Fatalf("expected all 3 hide events in a single transaction, got %d distinct tx ids", len(txIDs))
	}
}
