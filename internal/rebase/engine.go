// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package rebase

import (
	"context"
	"time"

	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// ExecuteOptions mirrors spec.md §4.6/§6's rebase execution knobs.
type ExecuteOptions struct {
	Now                time.Time
	TxName             string
	PreserveTimestamps bool
	ForceInMemory      bool
	ForceOnDisk        bool
}

// Result is what C6 hands back to the caller for event persistence
// and ref/checkout follow-up; the caller (pkg/command) is responsible
// for the actual store.AddEvents/UpdateRef/CheckoutRef calls so that
// "on failure, nothing is appended" (§4.6) holds even across process
// boundaries for the on-disk backend.
type Result struct {
	NewHead oid.OID
	Events  []eventlog.Event
}

// engine interprets a Plan's steps against an in-memory label table
// and running HEAD, buffering events as it goes. It is shared by both
// backends: the in-memory backend runs it start to finish; the
// on-disk backend runs it step by step, checkpointing to disk.
type engine struct {
	ctx    context.Context
	vcs    vcs.Capability
	opts   ExecuteOptions
	labels map[string]oid.OID
	head   oid.OID
	events []eventlog.Event
}

func newEngine(ctx context.Context, v vcs.Capability, opts ExecuteOptions) *engine {
	return &engine{ctx: ctx, vcs: v, opts: opts, labels: map[string]oid.OID{}}
}

func (e *engine) ts() float64 {
	return float64(e.opts.Now.Unix())
}

// applyStep executes one Step, advancing e.head and e.labels and
// buffering any events it produces. Returns a *errs.ConflictError if
// a Pick's three-way merge could not be resolved automatically.
func (e *engine) applyStep(step Step) error {
	switch step.Kind {
	case CreateLabel:
		e.labels[step.Name] = step.OID
		return nil
	case Label:
		e.labels[step.Name] = e.head
		return nil
	case Reset:
		o, ok := e.labels[step.Name]
		if !ok {
			return &errs.PlanError{Kind: errs.CommitNotFound, Subject: step.Name}
		}
		e.head = o
		return nil
	case RegisterExtraPostRewriteHook:
		e.events = append(e.events, eventlog.NewRewriteEvent(e.ts(), step.OldOID, step.NewOID, "rebase: skip duplicate"))
		return nil
	case Pick:
		return e.pick(step)
	default:
		return &errs.PlanError{Kind: errs.CommitNotFound, Subject: "unknown step kind"}
	}
}

func (e *engine) pick(step Step) error {
	c, err := e.vcs.FindCommit(e.ctx, step.CommitOID)
	if err != nil {
		return &errs.PlanError{Kind: errs.CommitNotFound, Subject: step.CommitOID.String()}
	}
	var baseTree oid.OID
	if len(c.Parents) > 0 {
		if p, err := e.vcs.FindCommit(e.ctx, c.Parents[0]); err == nil {
			baseTree = p.Tree
		}
	}
	ours, err := e.vcs.FindCommit(e.ctx, e.head)
	oursTree := c.Tree
	if err == nil {
		oursTree = ours.Tree
	}

	mergedTree, err := e.vcs.ThreeWayMergeTrees(e.ctx, baseTree, oursTree, c.Tree)
	if err != nil {
		if conflict, ok := err.(*vcs.ErrConflict); ok {
			return &errs.ConflictError{CommitOID: step.CommitOID.String(), Paths: conflict.Paths}
		}
		return err
	}

	parents := []oid.OID{e.head}
	if step.SecondParent != nil {
		parents = append(parents, *step.SecondParent)
	}
	committer := c.Committer
	if !e.opts.PreserveTimestamps {
		committer.When = e.opts.Now
	}
	newOID, err := e.vcs.CommitTree(e.ctx, mergedTree, parents, c.Author, committer, c.Message)
	if err != nil {
		return err
	}
	e.events = append(e.events,
		eventlog.NewCommitEvent(e.ts(), newOID, "rebase: pick "+c.Message),
		eventlog.NewRewriteEvent(e.ts(), step.CommitOID, newOID, "rebase: pick"),
	)
	e.head = newOID
	return nil
}
