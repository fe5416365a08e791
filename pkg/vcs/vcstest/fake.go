// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package vcstest is an in-memory fake implementing pkg/vcs.Capability,
// used by the core's test suite in place of a real VCS subprocess
// (spec.md §9: "Tests substitute a mock").
package vcstest

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sort"
	"sync"

	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// Tree is a flat path->content map, the fake's stand-in for a real
// content-addressed tree object.
type Tree map[string]string

// Fake is a small, deterministic in-memory repository. It is safe for
// concurrent use, though the core itself never calls it concurrently.
type Fake struct {
	mu       sync.Mutex
	commits  map[oid.OID]*vcs.Commit
	trees    map[oid.OID]Tree
	branches map[refs.Name]oid.OID
	head     oid.OID
	seq      uint64
}

var _ vcs.Capability = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		commits:  make(map[oid.OID]*vcs.Commit),
		trees:    make(map[oid.OID]Tree),
		branches: make(map[refs.Name]oid.OID),
	}
}

func (f *Fake) nextOID(seed string) oid.OID {
	f.seq++
	sum := sha1.Sum([]byte(fmt.Sprintf("%s#%d", seed, f.seq)))
	var o oid.OID
	copy(o[:], sum[:])
	return o
}

// PutTree stores an explicit tree and returns its synthetic OID.
func (f *Fake) PutTree(t Tree) oid.OID {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.nextOID("tree")
	f.trees[o] = t
	return o
}

// AddCommit creates a commit with the given parents/tree/message,
// stores it, and returns its OID. Author and committer are left
// zero-valued.
func (f *Fake) AddCommit(parents []oid.OID, tree oid.OID, message string) oid.OID {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.nextOID("commit:" + message)
	f.commits[o] = &vcs.Commit{
		OID:     o,
		Parents: parents,
		Tree:    tree,
		Message: message,
	}
	return o
}

// SetBranch points a branch reference at an OID directly, bypassing
// UpdateRef's compare-and-swap (setup helper, not an event-producing
// operation).
func (f *Fake) SetBranch(name refs.Name, o oid.OID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches[name] = o
}

// SetHead moves HEAD directly (setup helper).
func (f *Fake) SetHead(o oid.OID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = o
}

func (f *Fake) FindCommit(_ context.Context, o oid.OID) (*vcs.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commits[o]
	if !ok {
		return nil, fmt.Errorf("commit not found: %s", o)
	}
	cp := *c
	cp.Parents = append([]oid.OID(nil), c.Parents...)
	return &cp, nil
}

func (f *Fake) Head(_ context.Context) (oid.OID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *Fake) BranchTips(_ context.Context) (map[refs.Name]oid.OID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[refs.Name]oid.OID, len(f.branches))
	for k, v := range f.branches {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) MainBranchOID(_ context.Context, mainBranch string) (oid.OID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.branches[refs.NewBranch(mainBranch)]
	if !ok {
		return oid.Zero, fmt.Errorf("main branch %q not found", mainBranch)
	}
	return o, nil
}

// ancestors returns the full ancestor set of o (all parents,
// transitively, including o itself) mapped to BFS depth.
func (f *Fake) ancestors(o oid.OID) map[oid.OID]int {
	depth := map[oid.OID]int{o: 0}
	queue := []oid.OID{o}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, ok := f.commits[cur]
		if !ok {
			continue
		}
		for _, p := range c.Parents {
			if _, seen := depth[p]; seen {
				continue
			}
			depth[p] = depth[cur] + 1
			queue = append(queue, p)
		}
	}
	return depth
}

func (f *Fake) MergeBase(_ context.Context, a, b oid.OID) (oid.OID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	da := f.ancestors(a)
	db := f.ancestors(b)
	best := oid.Zero
	bestDepth := -1
	found := false
	for o, d := range da {
		d2, ok := db[o]
		if !ok {
			continue
		}
		total := d + d2
		if !found || total < bestDepth {
			found = true
			bestDepth = total
			best = o
		} else if total == bestDepth && o.Less(best) {
			best = o
		}
	}
	return best, found, nil
}

func (f *Fake) CommitTree(_ context.Context, tree oid.OID, parents []oid.OID, author, committer vcs.Signature, message string) (oid.OID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.nextOID("commit-tree:" + message)
	f.commits[o] = &vcs.Commit{
		OID:       o,
		Parents:   append([]oid.OID(nil), parents...),
		Tree:      tree,
		Author:    author,
		Committer: committer,
		Message:   message,
	}
	return o, nil
}

// ThreeWayMergeTrees performs a per-path three-way merge: a path
// changed identically on both sides, or only on one side, merges
// cleanly; a path changed differently on both sides conflicts.
func (f *Fake) ThreeWayMergeTrees(_ context.Context, base, ours, theirs oid.OID) (oid.OID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	baseTree := f.trees[base]
	oursTree := f.trees[ours]
	theirsTree := f.trees[theirs]

	paths := map[string]bool{}
	for p := range baseTree {
		paths[p] = true
	}
	for p := range oursTree {
		paths[p] = true
	}
	for p := range theirsTree {
		paths[p] = true
	}

	merged := Tree{}
	var conflicts []string
	for p := range paths {
		b, o, t := baseTree[p], oursTree[p], theirsTree[p]
		switch {
		case o == t:
			if o != "" {
				merged[p] = o
			}
		case o == b:
			if t != "" {
				merged[p] = t
			}
		case t == b:
			if o != "" {
				merged[p] = o
			}
		default:
			conflicts = append(conflicts, p)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return oid.Zero, &vcs.ErrConflict{Paths: conflicts}
	}
	mergedOID := f.nextOID("merge-tree")
	f.trees[mergedOID] = merged
	return mergedOID, nil
}

func (f *Fake) RunGit(_ context.Context, _ []string, _ []string) (int, error) {
	return 0, nil
}

func (f *Fake) CheckoutRef(_ context.Context, target oid.OID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = target
	return nil
}

func (f *Fake) UpdateRef(_ context.Context, name refs.Name, old, new oid.OID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current := f.branches[name]
	if current != old {
		return fmt.Errorf("update_ref %s: expected old %s, found %s", name, old, current)
	}
	if new.IsZero() {
		delete(f.branches, name)
		return nil
	}
	f.branches[name] = new
	return nil
}
