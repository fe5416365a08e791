// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/graph"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/rebase"
)

// rebaseMDPath is the on-disk pause file a move leaves behind when it
// stops for conflict resolution, paralleling worktree_rebase.go's
// REBASE-MD path under the worktree metadata directory.
func rebaseMDPath(root string) string {
	return filepath.Join(root, metaDir, "rebase-md.toml")
}

// Move is `move --source|--base SOURCE --onto DEST`, the rebase-plan
// entry point (C5 -> C6), plus the --continue/--abort pair that
// resumes or cancels a paused on-disk execution.
type Move struct {
	Source string
	Onto   string
	Base   bool

	Continue bool
	Abort    bool

	InMemory bool
	OnDisk   bool
}

func (c *Move) Run(g *Globals) error {
	r, err := OpenRepo(g)
	if err != nil {
		diev("%v", err)
		return err
	}
	defer r.Close() // nolint
	return c.run(context.Background(), r)
}

func (c *Move) run(ctx context.Context, r *Repo) error {
	metaPath := rebaseMDPath(r.Root)
	disk := rebase.NewOnDiskExecutor(r.VCS, metaPath)

	if c.Abort {
		orig, err := disk.Abort()
		if err != nil {
			return errs.NewUserError("abort: %v", err)
		}
		if err := r.VCS.CheckoutRef(ctx, orig); err != nil {
			return err
		}
		fmt.Printf("aborted, restored to %s\n", orig.Short())
		return nil
	}

	if c.Continue {
		result, err := disk.Continue(ctx)
		if err != nil {
			if _, ok := err.(*errs.ConflictError); ok {
				fmt.Println("still conflicted, resolve and run `move --continue` again")
				return err
			}
			return errs.NewUserError("continue: %v", err)
		}
		return r.finishMove(ctx, result)
	}

	g2, _, err := r.BuildGraph(ctx, false)
	if err != nil {
		return err
	}

	var sourceOID oid.OID
	if c.Base {
		head, err := r.VCS.Head(ctx)
		if err != nil {
			return err
		}
		start := head
		if c.Source != "" {
			start, err = ResolveCommit(ctx, r.VCS, c.Source)
			if err != nil {
				return errs.NewUserError("move: %v", err)
			}
		}
		base, ok := graph.ResolveBaseCommit(g2, start)
		if !ok {
			return errs.NewUserError("move --base: %s has no ancestor off the main branch", start.Short())
		}
		sourceOID = base
	} else {
		if c.Source == "" {
			return ErrArgRequired
		}
		sourceOID, err = ResolveCommit(ctx, r.VCS, c.Source)
		if err != nil {
			return errs.NewUserError("move: %v", err)
		}
	}
	if c.Onto == "" {
		return ErrArgRequired
	}
	destOID, err := ResolveCommit(ctx, r.VCS, c.Onto)
	if err != nil {
		return errs.NewUserError("move: %v", err)
	}

	plan, err := rebase.BuildPlan(ctx, g2, r.Oracle, r.VCS, sourceOID, destOID, rebase.Options{
		DetectDuplicateCommitsViaPatchID: true,
	})
	if err != nil {
		return err
	}
	if plan == nil {
		fmt.Println("already up to date")
		return nil
	}

	opts := rebase.ExecuteOptions{
		Now:                time.Now(),
		TxName:             "move",
		PreserveTimestamps: r.Cfg.Branchless.Restack.PreserveTimestamps,
		ForceInMemory:      c.InMemory,
		ForceOnDisk:        c.OnDisk,
	}
	mem := rebase.NewInMemoryExecutor(r.VCS)
	executor := rebase.Select(plan, opts, mem, disk)

	startHead, err := r.VCS.Head(ctx)
	if err != nil {
		return err
	}
	result, err := executor.Execute(ctx, plan, startHead, opts)
	if err != nil {
		if conflict, ok := err.(*errs.ConflictError); ok {
			fmt.Printf("conflict applying %s, paused: resolve and run `move --continue`\n", conflict.CommitOID)
			return conflict
		}
		return err
	}
	return r.finishMove(ctx, result)
}

// finishMove appends the rebase's buffered events in one transaction,
// moves every branch ref that pointed at a rewritten commit, and
// checks out the new head.
func (r *Repo) finishMove(ctx context.Context, result *rebase.Result) error {
	txID, err := r.Store.MakeTransactionID(ctx, "move")
	if err != nil {
		return &errs.StoreError{Op: "make-tx", Err: err}
	}
	events := result.Events
	if err := moveBranchTips(ctx, r, result, &events); err != nil {
		return err
	}
	if err := r.Store.AddEvents(ctx, txID, events); err != nil {
		return &errs.StoreError{Op: "add-events", Err: err}
	}
	if err := r.VCS.CheckoutRef(ctx, result.NewHead); err != nil {
		return err
	}
	fmt.Printf("moved to %s\n", result.NewHead.Short())
	return nil
}

// moveBranchTips finds rewritten-commit pairs among events and, for
// every branch still pointing at an old (now-hidden) OID, updates the
// ref and appends the matching ref-update event.
func moveBranchTips(ctx context.Context, r *Repo, result *rebase.Result, events *[]eventlog.Event) error {
	rewritten := map[string]string{}
	for _, e := range result.Events {
		if e.Kind == eventlog.Rewrite && e.OldOID != nil && e.NewOID != nil {
			rewritten[e.OldOID.String()] = e.NewOID.String()
		}
	}
	tips, err := r.VCS.BranchTips(ctx)
	if err != nil {
		return err
	}
	now := float64(time.Now().Unix())
	for name, tip := range tips {
		newHex, ok := rewritten[tip.String()]
		if !ok {
			continue
		}
		newOID, err := oid.New(newHex)
		if err != nil {
			continue
		}
		if err := r.VCS.UpdateRef(ctx, name, tip, newOID); err != nil {
			return err
		}
		*events = append(*events, eventlog.NewRefUpdateEvent(now, name, tip, newOID, "move"))
	}
	return nil
}
