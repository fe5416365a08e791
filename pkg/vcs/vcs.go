// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package vcs defines the capability set the core consumes from the
// underlying content-addressed VCS (spec.md §6, "VCS library
// contract"). Implementations may shell out to a real VCS binary
// (pkg/vcsexec) or be an in-memory fake (pkg/vcs/vcstest) — C3
// through C6 only ever depend on this interface, never on a concrete
// implementation.
package vcs

import (
	"context"
	"time"

	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
)

// Signature is an author or committer identity and time, matching
// the teacher's object.Signature shape (Name, Email, When).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is the subset of commit metadata the core needs: identity,
// parents (first parent first), tree, and the two timestamps
// preserve-timestamps policy cares about.
type Commit struct {
	OID       oid.OID
	Parents   []oid.OID
	Tree      oid.OID
	Author    Signature
	Committer Signature
	Message   string
}

// ConflictPaths lists file paths that produced a conflict during a
// three-way tree merge.
type ConflictPaths []string

// ErrConflict is returned by ThreeWayMergeTrees when the merge cannot
// be resolved automatically.
type ErrConflict struct {
	Paths ConflictPaths
}

func (e *ErrConflict) Error() string { return "merge conflict" }

// Capability is the operation set spec.md §6 names, plus CheckoutRef
// and UpdateRef for moving HEAD and branch references. All methods
// take a context so subprocess-backed implementations can be
// cancelled by process termination, matching §5's scheduling model.
type Capability interface {
	// FindCommit resolves o, returning the commit metadata or an
	// error if it does not exist in the underlying VCS.
	FindCommit(ctx context.Context, o oid.OID) (*Commit, error)

	// Head returns the OID HEAD currently points at, or oid.Zero if
	// the repository has no commits yet.
	Head(ctx context.Context) (oid.OID, error)

	// BranchTips returns every local branch's tip OID keyed by
	// reference name.
	BranchTips(ctx context.Context) (map[refs.Name]oid.OID, error)

	// MainBranchOID resolves the distinguished main branch's tip.
	MainBranchOID(ctx context.Context, mainBranch string) (oid.OID, error)

	// MergeBase returns the lowest common ancestor of a and b, or
	// oid.Zero with ok=false if they are disjoint.
	MergeBase(ctx context.Context, a, b oid.OID) (result oid.OID, ok bool, err error)

	// CommitTree creates a new commit object from tree, parents, and
	// the given identities/message, returning its OID.
	CommitTree(ctx context.Context, tree oid.OID, parents []oid.OID, author, committer Signature, message string) (oid.OID, error)

	// ThreeWayMergeTrees merges ours and theirs against base,
	// returning the merged tree OID, or *ErrConflict on conflict.
	ThreeWayMergeTrees(ctx context.Context, base, ours, theirs oid.OID) (oid.OID, error)

	// RunGit is the escape hatch: run an arbitrary VCS subcommand
	// with a sanitized environment, returning its exit code.
	RunGit(ctx context.Context, args []string, env []string) (exitCode int, err error)

	// CheckoutRef moves the working tree/HEAD to target, used by the
	// on-disk rebase backend and by next/prev navigation.
	CheckoutRef(ctx context.Context, target oid.OID) error

	// UpdateRef moves a named reference from old to new, matching the
	// event log's RefUpdateEvent semantics. If new is oid.Zero the
	// reference is deleted.
	UpdateRef(ctx context.Context, name refs.Name, old, new oid.OID) error
}
