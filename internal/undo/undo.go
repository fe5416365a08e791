// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package undo implements C7: it diffs the event log between a past
// cursor and the current one and synthesizes the inverse sequence
// that, once applied, puts the repository back the way it was.
package undo

import (
	"context"
	"fmt"
	"sort"

	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// ActionKind discriminates the four inverse shapes §4.7 defines.
type ActionKind int

const (
	RefUpdate ActionKind = iota
	Hide
	Unhide
	Rewrite
)

// Action is one entry in the ordered list Synthesize returns. For
// RefUpdate, From is the ref's current OID and To is where undo moves
// it back to (oid.Zero meaning "delete the ref"). For Rewrite, From
// and To are the new RewriteEvent's old/new commit OIDs. For Hide and
// Unhide, CommitOID is the commit being toggled.
type Action struct {
	Kind      ActionKind
	RefName   refs.Name
	From, To  oid.OID
	CommitOID oid.OID
}

func (a Action) String() string {
	switch a.Kind {
	case RefUpdate:
		if a.To.IsZero() {
			return fmt.Sprintf("delete ref %s (was %s)", a.RefName, a.From.Short())
		}
		return fmt.Sprintf("move %s from %s back to %s", a.RefName, a.From.Short(), a.To.Short())
	case Hide:
		return fmt.Sprintf("hide %s", a.CommitOID.Short())
	case Unhide:
		return fmt.Sprintf("unhide %s", a.CommitOID.Short())
	case Rewrite:
		return fmt.Sprintf("restore %s in place of %s", a.To.Short(), a.From.Short())
	default:
		return "unknown undo action"
	}
}

// refRange tracks the earliest old_oid and latest new_oid a ref saw
// across the undone window, so N ref-update events fold into one.
type refRange struct {
	first, last oid.OID
	touched     bool
}

// Synthesize computes the inverse action list for events = { e |
// pastCursor <= e.ID < nowCursor }, per §4.7 steps 1-3. The caller is
// responsible for slicing events to that window (eventlog.Replayer's
// Events() plus cursor bounds).
func Synthesize(events []eventlog.Event) []Action {
	var actions []Action
	refs_ := map[refs.Name]*refRange{}

	for _, e := range events {
		switch e.Kind {
		case eventlog.RefUpdate:
			rr, ok := refs_[e.RefName]
			if !ok {
				rr = &refRange{}
				refs_[e.RefName] = rr
			}
			old := derefOr(e.OldOID, oid.Zero)
			new := derefOr(e.NewOID, oid.Zero)
			if !rr.touched {
				rr.first = old
				rr.touched = true
			}
			rr.last = new
		case eventlog.CommitK:
			actions = append(actions, Action{Kind: Hide, CommitOID: derefOr(e.CommitOID, oid.Zero)})
		case eventlog.Hide:
			actions = append(actions, Action{Kind: Unhide, CommitOID: derefOr(e.CommitOID, oid.Zero)})
		case eventlog.Unhide:
			actions = append(actions, Action{Kind: Hide, CommitOID: derefOr(e.CommitOID, oid.Zero)})
		case eventlog.Rewrite:
			actions = append(actions, Action{
				Kind: Rewrite,
				From: derefOr(e.NewOID, oid.Zero),
				To:   derefOr(e.OldOID, oid.Zero),
			})
		}
	}

	// Step 2 processes events in reverse order; the loop above appended
	// them forward, so reverse the whole slice in place.
	for i, j := 0, len(actions)-1; i < j; i, j = i+1, j-1 {
		actions[i], actions[j] = actions[j], actions[i]
	}

	// Step 3: fold each ref's N inverse updates into one, latest-new
	// back to earliest-old, appended after the per-commit actions so
	// refs land on their restored targets only once history underneath
	// them is back in place.
	var names []refs.Name
	for name := range refs_ {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, name := range names {
		rr := refs_[name]
		if rr.last == rr.first {
			continue
		}
		actions = append(actions, Action{Kind: RefUpdate, RefName: name, From: rr.last, To: rr.first})
	}
	return actions
}

func derefOr(p *oid.OID, fallback oid.OID) oid.OID {
	if p == nil {
		return fallback
	}
	return *p
}

// Execute applies actions through the VCS (ref moves only — hide,
// unhide and rewrite are pure event-log visibility toggles with no
// VCS side effect) and appends one grouping transaction of the
// resulting inverse events (§4.7 step 4).
func Execute(ctx context.Context, v vcs.Capability, store *eventlog.Store, txName string, now float64, actions []Action) error {
	txID, err := store.MakeTransactionID(ctx, txName)
	if err != nil {
		return err
	}
	inverse := make([]eventlog.Event, 0, len(actions))
	for _, a := range actions {
		switch a.Kind {
		case RefUpdate:
			if err := v.UpdateRef(ctx, a.RefName, a.From, a.To); err != nil {
				return err
			}
			inverse = append(inverse, eventlog.NewRefUpdateEvent(now, a.RefName, a.From, a.To, "undo"))
		case Hide:
			inverse = append(inverse, eventlog.NewHideEvent(now, a.CommitOID, "undo"))
		case Unhide:
			inverse = append(inverse, eventlog.NewUnhideEvent(now, a.CommitOID, "undo"))
		case Rewrite:
			inverse = append(inverse, eventlog.NewRewriteEvent(now, a.From, a.To, "undo"))
		}
	}
	return store.AddEvents(ctx, txID, inverse)
}
