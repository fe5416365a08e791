// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/smartbranch/smartbranch/internal/errs"
)

// Prev moves HEAD towards an ancestor commit, walking first-parent
// links N times (default 1).
type Prev struct {
	Count int
}

func (c *Prev) Run(g *Globals) error {
	r, err := OpenRepo(g)
	if err != nil {
		diev("%v", err)
		return err
	}
	defer r.Close() // nolint
	return c.run(context.Background(), r)
}

func (c *Prev) run(ctx context.Context, r *Repo) error {
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
			return errs.NewUserError("prev: %s is not in the visible graph", current.Short())
		}
		if n.Parent == nil {
			return errs.NewUserError("prev: %s has no parent", current.Short())
		}
		current = *n.Parent
	}
	if err := r.VCS.CheckoutRef(ctx, current); err != nil {
		return err
	}
	fmt.Printf("now at %s\n", current.Short())
	return nil
}
