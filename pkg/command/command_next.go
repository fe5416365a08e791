// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/graph"
	"github.com/smartbranch/smartbranch/internal/oid"
)

// Next moves HEAD towards a descendant commit, walking visible
// children. An ambiguous step (more than one visible child) prints an
// oldest/newest annotated listing and fails unless Oldest or Newest
// disambiguates it, mirroring the original's Towards enum in
// advance_towards_own_commit.
type Next struct {
	Count  int
	Oldest bool
	Newest bool
}

func (c *Next) Run(g *Globals) error {
	r, err := OpenRepo(g)
	if err != nil {
		diev("%v", err)
		return err
	}
	defer r.Close() // nolint
	return c.run(context.Background(), r)
}

func (c *Next) run(ctx context.Context, r *Repo) error {
	if c.Oldest && c.Newest {
		return errs.NewUserError("next: --oldest and --newest are mutually exclusive")
	}
	gr, _, err := r.BuildGraph(ctx, false)
	if err != nil {
		return err
	}
	current, err := r.VCS.Head(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < c.Count; i++ {
		n, ok := gr.Nodes[current]
		if !ok {
			return errs.NewUserError("next: %s is not in the visible graph", current.Short())
		}
		// children is sorted oldest-first (internal/graph.populateChildren),
		// so index 0 is the oldest candidate and the last is the newest.
		children := visibleChildren(gr, n.Children)
		switch {
		case len(children) == 0:
			return errs.NewUserError("next: %s has no visible child", current.Short())
		case len(children) == 1:
			current = children[0]
		case c.Oldest:
			current = children[0]
		case c.Newest:
			current = children[len(children)-1]
		default:
			printAmbiguousChildren(children)
			return errs.NewUserError("next: %s has %d visible children, pick one explicitly with --oldest or --newest", current.Short(), len(children))
		}
	}
	if err := r.VCS.CheckoutRef(ctx, current); err != nil {
		return err
	}
	fmt.Printf("now at %s\n", current.Short())
	return nil
}

func visibleChildren(g *graph.Graph, children []oid.OID) []oid.OID {
	var out []oid.OID
	for _, c := range children {
		if n, ok := g.Nodes[c]; ok && n.IsVisible {
			out = append(out, c)
		}
	}
	return out
}

// printAmbiguousChildren lists candidates oldest-first, annotating
// the first and last entries, so the user can tell at a glance which
// branch to name explicitly.
func printAmbiguousChildren(children []oid.OID) {
	fmt.Println("next: ambiguous, candidates are:")
	for i, c := range children {
		annotation := ""
		switch i {
		case 0:
			annotation = " (oldest)"
		case len(children) - 1:
			annotation = " (newest)"
		}
		fmt.Printf("  %s%s\n", c.Short(), annotation)
	}
}
