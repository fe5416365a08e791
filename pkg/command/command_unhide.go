// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/eventlog"
)

// Unhide reverses a prior Hide for one or more commits.
type Unhide struct {
	Revisions []string
	Recursive bool
}

func (c *Unhide) Run(g *Globals) error {
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

func (c *Unhide) run(ctx context.Context, r *Repo) error {
	targets, err := resolveVisibilityTargets(ctx, r, c.Revisions, c.Recursive)
	if err != nil {
		return err
	}
	txID, err := r.Store.MakeTransactionID(ctx, "unhide")
	if err != nil {
		return &errs.StoreError{Op: "make-tx", Err: err}
	}
	now := float64(time.Now().Unix())
	var events []eventlog.Event
	for _, o := range targets {
		events = append(events, eventlog.NewUnhideEvent(now, o, fmt.Sprintf("unhide %s", o.Short())))
	}
	if err := r.Store.AddEvents(ctx, txID, events); err != nil {
		return &errs.StoreError{Op: "add-events", Err: err}
	}
	for _, o := range targets {
		fmt.Printf("unhid %s\n", o.Short())
	}
	return nil
}
