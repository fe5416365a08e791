// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/graph"
	"github.com/smartbranch/smartbranch/internal/oid"
)

// Hide marks one or more commits hidden, the way worktree_status.go's
// teacher commands take a list of positional revisions.
type Hide struct {
	Revisions []string
	Recursive bool
}

func (c *Hide) Run(g *Globals) error {
	if len(c.Revisions) == 0 {
		return ErrArgRequired
	}
	r, err := OpenRepo(g)
	if err != nil {
		diev("%v", err)
		return err
	}
	defer r.Close() // nolint
	return c.run(context.Background(), r)
}

func (c *Hide) run(ctx context.Context, r *Repo) error {
	targets, err := resolveVisibilityTargets(ctx, r, c.Revisions, c.Recursive)
	if err != nil {
		return err
	}
	txID, err := r.Store.MakeTransactionID(ctx, "hide")
	if err != nil {
		return &errs.StoreError{Op: "make-tx", Err: err}
	}
	now := float64(time.Now().Unix())
	var events []eventlog.Event
	for _, o := range targets {
		events = append(events, eventlog.NewHideEvent(now, o, fmt.Sprintf("hide %s", o.Short())))
	}
	if err := r.Store.AddEvents(ctx, txID, events); err != nil {
		return &errs.StoreError{Op: "add-events", Err: err}
	}
	for _, o := range targets {
		fmt.Printf("hid %s\n", o.Short())
	}
	return nil
}

// resolveVisibilityTargets resolves each revision and, when recursive is
// set, expands it to every descendant reachable through the commit graph
// (including currently-hidden ones, so a repeated --recursive hide/unhide
// stays idempotent), deduplicated and returned in a stable order. Shared
// by Hide and Unhide, the only two commands with a --recursive flag.
func resolveVisibilityTargets(ctx context.Context, r *Repo, revisions []string, recursive bool) ([]oid.OID, error) {
	var gr *graph.Graph
	if recursive {
		g, _, err := r.BuildGraph(ctx, true)
		if err != nil {
			return nil, err
		}
		gr = g
	}
	seen := make(map[oid.OID]bool)
	var out []oid.OID
	add := func(o oid.OID) {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	for _, rev := range revisions {
		o, err := ResolveCommit(ctx, r.VCS, rev)
		if err != nil {
			return nil, errs.NewUserError("unresolved revision: %v", err)
		}
		if !recursive {
			add(o)
			continue
		}
		collectDescendants(gr, o, add)
	}
	return out, nil
}

// collectDescendants walks n's subtree in the commit graph depth-first,
// visiting o itself and every reachable child exactly once.
func collectDescendants(gr *graph.Graph, o oid.OID, visit func(oid.OID)) {
	visit(o)
	n, ok := gr.Nodes[o]
	if !ok {
		return
	}
	for _, c := range n.Children {
		collectDescendants(gr, c, visit)
	}
}
