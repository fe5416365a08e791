// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package rebase

import (
	"context"

	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// Executor applies a Plan and returns the resulting head plus the
// events to append. Two backends share the identical contract (§4.6).
type Executor interface {
	Execute(ctx context.Context, plan *Plan, startHead oid.OID, opts ExecuteOptions) (*Result, error)
}

// InMemoryExecutor applies picks by three-way merging trees in
// process memory; it never touches a working directory. Any conflict
// surfaces immediately as *errs.ConflictError.
type InMemoryExecutor struct {
	vcs vcs.Capability
}

func NewInMemoryExecutor(v vcs.Capability) *InMemoryExecutor {
	return &InMemoryExecutor{vcs: v}
}

func (ex *InMemoryExecutor) Execute(ctx context.Context, plan *Plan, startHead oid.OID, opts ExecuteOptions) (*Result, error) {
	e := newEngine(ctx, ex.vcs, opts)
	e.head = startHead
	for _, step := range plan.Steps {
		if err := e.applyStep(step); err != nil {
			return nil, err
		}
	}
	return &Result{NewHead: e.head, Events: e.events}, nil
}

// NeedsOnDisk reports whether plan contains an operation the
// in-memory backend cannot express — currently none, since this
// core's primitive vocabulary never requires a working-tree index
// update; kept as a named hook for the selection rule in Select.
func NeedsOnDisk(plan *Plan) bool {
	return false
}

// Select implements §4.6's backend selection rule: force flags win;
// otherwise in-memory first, falling back to on-disk only when the
// plan needs working-tree operations the in-memory backend can't do.
func Select(plan *Plan, opts ExecuteOptions, mem Executor, disk Executor) Executor {
	if opts.ForceInMemory {
		return mem
	}
	if opts.ForceOnDisk {
		return disk
	}
	if NeedsOnDisk(plan) {
		return disk
	}
	return mem
}
