// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/undo"
)

// Undo synthesizes and, after confirmation, applies the inverse of
// the most recent transaction (C7). --yes skips the interactive
// prompt, matching a scriptable `--yes` escape hatch.
type Undo struct {
	Yes bool
}

func (c *Undo) Run(g *Globals) error {
	r, err := OpenRepo(g)
	if err != nil {
		diev("%v", err)
		return err
	}
	defer r.Close() // nolint
	return c.run(context.Background(), r)
}

func (c *Undo) run(ctx context.Context, r *Repo) error {
	events, err := r.Store.GetEvents(ctx)
	if err != nil {
		return &errs.StoreError{Op: "get-events", Err: err}
	}
	if len(events) == 0 {
		fmt.Println("nothing to undo")
		return nil
	}
	replayer := eventlog.NewReplayer(events)
	cursorNow := replayer.DefaultCursor()
	cursorPast := replayer.Retreat(cursorNow)
	if cursorPast == cursorNow {
		fmt.Println("nothing to undo")
		return nil
	}

	var slice []eventlog.Event
	for _, e := range events {
		if e.ID >= int64(cursorPast) && e.ID < int64(cursorNow) {
			slice = append(slice, e)
		}
	}
	actions := undo.Synthesize(slice)
	if len(actions) == 0 {
		fmt.Println("nothing to undo")
		return nil
	}

	fmt.Println("this will:")
	for _, a := range actions {
		fmt.Printf("  %s\n", a)
	}
	if !c.Yes && !confirm("proceed?") {
		fmt.Println("aborted")
		return nil
	}

	if err := undo.Execute(ctx, r.VCS, r.Store, "undo", float64(time.Now().Unix()), actions); err != nil {
		return err
	}
	fmt.Println("done")
	return nil
}
