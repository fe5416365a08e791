// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package mergebase implements C3, the merge-base oracle: it
// memoizes pairwise merge-base answers and derives the first-parent
// path from a commit to its merge base with a target.
package mergebase

import (
	"context"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// Cache is the subset of the event store the oracle needs; satisfied
// by *eventlog.Store. Kept as an interface so tests can swap a
// non-persistent fake without spinning up sqlite.
type Cache interface {
	MergeBaseCacheGet(ctx context.Context, lhs, rhs oid.OID) (result oid.OID, ok bool, found bool, err error)
	MergeBaseCachePut(ctx context.Context, lhs, rhs oid.OID, result oid.OID, ok bool) error
}

// Oracle answers merge-base questions, consulting and populating
// Cache before falling back to the VCS capability.
type Oracle struct {
	vcs   vcs.Capability
	cache Cache
}

func New(v vcs.Capability, cache Cache) *Oracle {
	return &Oracle{vcs: v, cache: cache}
}

// MergeBase returns the lowest common ancestor of a and b, or ok=false
// if they are disjoint. Answers are memoized by the unordered pair
// (min(a,b), max(a,b)); invalidation is unnecessary since the commit
// DAG is monotonic (§4.3).
func (o *Oracle) MergeBase(ctx context.Context, a, b oid.OID) (oid.OID, bool, error) {
	lo, hi := oid.Pair(a, b)
	if cached, ok, found, err := o.cache.MergeBaseCacheGet(ctx, lo, hi); err == nil && found {
		return cached, ok, nil
	}
	result, ok, err := o.vcs.MergeBase(ctx, a, b)
	if err != nil {
		return oid.Zero, false, &errs.MergeBaseError{A: a.String(), B: b.String(), Err: err}
	}
	// Cache population failures do not poison or fail the call; they
	// only cost a repeated VCS round trip next time.
	_ = o.cache.MergeBaseCachePut(ctx, lo, hi, result, ok)
	return result, ok, nil
}

// PathToMergeBase returns the first-parent chain from `from` down to
// `merge_base(from, target)` inclusive: from is first, the merge base
// is last. Returns ok=false if from and target are disjoint.
func (o *Oracle) PathToMergeBase(ctx context.Context, from, target oid.OID) ([]oid.OID, bool, error) {
	base, ok, err := o.MergeBase(ctx, from, target)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	path := []oid.OID{from}
	current := from
	for current != base {
		c, err := o.vcs.FindCommit(ctx, current)
		if err != nil {
			return nil, false, &errs.MergeBaseError{A: from.String(), B: target.String(), Err: err}
		}
		if len(c.Parents) == 0 {
			// Reached a root without hitting base; treat as disjoint
			// rather than looping forever.
			return nil, false, nil
		}
		current = c.Parents[0]
		path = append(path, current)
	}
	return path, true, nil
}
