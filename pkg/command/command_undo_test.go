// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"testing"

	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/refs"
)

func TestUndoYesReversesMostRecentTransaction(t *testing.T) {
	ctx := context.Background()
	r, fake := newTestRepo(t)

	t0 := fake.PutTree(nil)
	root := fake.AddCommit(nil, t0, "root")
	fake.SetBranch(refs.NewBranch("master"), root)
	fake.SetHead(root)

	if err := (&Hide{Revisions: []string{root.String()}}).run(ctx, r); err != nil {
		t.Fatalf("Hide.run: %v", err)
	}

	if err := (&Undo{Yes: true}).run(ctx, r); err != nil {
		t.Fatalf("Undo.run: %v", err)
	}

	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	// hide, then undo's own inverse (unhide).
	if len(events) != 2 || events[0].Kind != eventlog.Hide || events[1].Kind != eventlog.Unhide {
		t.Fatalf("expected hide followed by its undo (unhide), got %+v", events)
	}
}

func TestUndoWithNoTransactionsIsANoop(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	if err := (&Undo{Yes: true}).run(ctx, r); err != nil {
		t.Fatalf("Undo.run on an empty store: %v", err)
	}
	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events to have been appended, got %+v", events)
	}
}
