// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package rebase implements C5 (the rebase plan builder) and C6 (the
// rebase executor, both in-memory and on-disk backends).
package rebase

import (
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/graph"
	"github.com/smartbranch/smartbranch/internal/mergebase"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// StepKind discriminates the five primitive rebase operations (§4.5).
type StepKind int

const (
	Pick StepKind = iota
	Label
	Reset
	CreateLabel
	RegisterExtraPostRewriteHook
)

func (k StepKind) String() string {
	switch k {
	case Pick:
		return "pick"
	case Label:
		return "label"
	case Reset:
		return "reset"
	case CreateLabel:
		return "create-label"
	case RegisterExtraPostRewriteHook:
		return "post-rewrite"
	default:
		return "unknown"
	}
}

// Step is one primitive operation in a Plan.
type Step struct {
	Kind StepKind

	// Pick
	CommitOID    oid.OID
	SecondParent *oid.OID // set when CommitOID is a merge commit whose second parent lies outside the subtree (§4.5 step 5)

	// Label / Reset / CreateLabel
	Name string
	OID  oid.OID // absolute OID for CreateLabel

	// RegisterExtraPostRewriteHook
	OldOID oid.OID
	NewOID oid.OID
}

// Plan is an ordered sequence of Steps the executor applies.
type Plan struct {
	Steps []Step
}

// Options controls plan construction (§4.5 "Options").
type Options struct {
	DumpRebaseConstraints            bool
	DumpRebasePlan                   bool
	DetectDuplicateCommitsViaPatchID bool
}

const ontoLabel = "onto"

// BuildPlan computes the ordered steps to move the subtree rooted at
// sourceOID onto destOID. Returns (nil, nil) for the no-op case
// (source's parent already is dest — S4), or a *errs.PlanError for a
// structured construction failure.
func BuildPlan(ctx context.Context, g *graph.Graph, oracle *mergebase.Oracle, v vcs.Capability, sourceOID, destOID oid.OID, opts Options) (*Plan, error) {
	srcNode, ok := g.Nodes[sourceOID]
	if !ok {
		return nil, &errs.PlanError{Kind: errs.CommitNotFound, Subject: sourceOID.String()}
	}
	if _, ok := g.Nodes[destOID]; !ok {
		return nil, &errs.PlanError{Kind: errs.CommitNotFound, Subject: destOID.String()}
	}
	if srcNode.Parent != nil && *srcNode.Parent == destOID {
		return nil, nil
	}

	subtree := collectSubtree(g, sourceOID)
	for _, c := range subtree {
		if c == destOID {
			return nil, &errs.PlanError{Kind: errs.SubtreeIncludesDest, Subject: destOID.String()}
		}
	}

	var destAncestors map[oid.OID]bool
	var patchIDs map[oid.OID]string
	if opts.DetectDuplicateCommitsViaPatchID {
		var err error
		destAncestors, err = ancestorSet(ctx, v, destOID)
		if err != nil {
			return nil, &errs.PlanError{Kind: errs.MergeBaseMissing, Subject: err.Error()}
		}
		patchIDs = make(map[oid.OID]string, len(destAncestors)+len(subtree))
		for a := range destAncestors {
			c, err := v.FindCommit(ctx, a)
			if err != nil {
				continue
			}
			patchIDs[a] = PatchID(c)
		}
	}

	b := &planBuilder{ctx: ctx, vcs: v, g: g, patchIDs: patchIDs, destAncestors: destAncestors, labelSeq: 0}
	b.steps = append(b.steps, Step{Kind: CreateLabel, Name: ontoLabel, OID: destOID})
	b.steps = append(b.steps, Step{Kind: Reset, Name: ontoLabel})
	if err := b.walk(sourceOID, ontoLabel); err != nil {
		return nil, err
	}
	return &Plan{Steps: b.steps}, nil
}

type planBuilder struct {
	ctx           context.Context
	vcs           vcs.Capability
	g             *graph.Graph
	patchIDs      map[oid.OID]string
	destAncestors map[oid.OID]bool
	steps         []Step
	labelSeq      int
}

func (b *planBuilder) freshLabel(o oid.OID) string {
	b.labelSeq++
	return fmt.Sprintf("step-%d-%s", b.labelSeq, o.Short())
}

// matchingAncestor reports whether c's patch-id already appears among
// dest's ancestors (a commit dropped during an earlier conflict
// resolution and re-applied upstream, say). c itself is never a dest
// ancestor yet, so its patch-id is computed fresh rather than looked
// up in the precomputed table.
func (b *planBuilder) matchingAncestor(c oid.OID) (oid.OID, bool) {
	if b.destAncestors == nil {
		return oid.Zero, false
	}
	commit, err := b.vcs.FindCommit(b.ctx, c)
	if err != nil {
		return oid.Zero, false
	}
	id := PatchID(commit)
	for a := range b.destAncestors {
		if a != c && b.patchIDs[a] == id {
			return a, true
		}
	}
	return oid.Zero, false
}

func (b *planBuilder) walk(c oid.OID, parentLabel string) error {
	if match, skip := b.matchingAncestor(c); skip {
		b.steps = append(b.steps, Step{Kind: RegisterExtraPostRewriteHook, OldOID: c, NewOID: match})
		children := b.g.Nodes[c].Children
		for _, child := range children {
			if err := b.walk(child, parentLabel); err != nil {
				return err
			}
		}
		return nil
	}

	step := Step{Kind: Pick, CommitOID: c}
	if commit, err := b.vcs.FindCommit(b.ctx, c); err == nil && len(commit.Parents) > 1 {
		inSubtree := b.g.Nodes[commit.Parents[0]] != nil
		if inSubtree {
			sp := commit.Parents[1]
			step.SecondParent = &sp
		}
	}
	b.steps = append(b.steps, step)

	label := b.freshLabel(c)
	b.steps = append(b.steps, Step{Kind: Label, Name: label})

	children := b.g.Nodes[c].Children
	for i, child := range children {
		if i > 0 {
			b.steps = append(b.steps, Step{Kind: Reset, Name: label})
		}
		if err := b.walk(child, label); err != nil {
			return err
		}
	}
	_ = parentLabel
	return nil
}

// collectSubtree returns source plus every descendant, in child-order
// preorder (a valid topological order: every in-subtree parent
// precedes its children).
func collectSubtree(g *graph.Graph, source oid.OID) []oid.OID {
	var out []oid.OID
	var visit func(o oid.OID)
	visited := map[oid.OID]bool{}
	visit = func(o oid.OID) {
		if visited[o] {
			return
		}
		visited[o] = true
		out = append(out, o)
		n, ok := g.Nodes[o]
		if !ok {
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(source)
	return out
}

func ancestorSet(ctx context.Context, v vcs.Capability, start oid.OID) (map[oid.OID]bool, error) {
	set := map[oid.OID]bool{start: true}
	queue := []oid.OID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, err := v.FindCommit(ctx, cur)
		if err != nil {
			continue
		}
		for _, p := range c.Parents {
			if !set[p] {
				set[p] = true
				queue = append(queue, p)
			}
		}
	}
	return set, nil
}

// PatchID computes a stable hash of a commit's effective change,
// normalized against author/committer identity and time: diff
// computation itself is delegated to the underlying VCS (diff
// algorithms are explicitly out of scope for this core), so PatchID
// hashes the post-change tree plus the commit message, which is
// stable across a rebase that only changes parentage and timestamps.
func PatchID(c *vcs.Commit) string {
	h := sha1.New()
	_, _ = h.Write([]byte(c.Tree.String()))
	_, _ = h.Write([]byte("\x00"))
	_, _ = h.Write([]byte(c.Message))
	return fmt.Sprintf("%x", h.Sum(nil))
}
