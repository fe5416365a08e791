// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package graph implements C4, the commit graph builder: it produces
// the minimal visible DAG the rest of the core operates over.
package graph

import (
	"context"
	"sort"

	"github.com/smartbranch/smartbranch/internal/eventlog"
	"github.com/smartbranch/smartbranch/internal/errs"
	"github.com/smartbranch/smartbranch/internal/mergebase"
	"github.com/smartbranch/smartbranch/internal/oid"
	"github.com/smartbranch/smartbranch/internal/refs"
	"github.com/smartbranch/smartbranch/internal/xlog"
	"github.com/smartbranch/smartbranch/pkg/vcs"
)

// Node is a single commit graph node, keyed by OID in Graph.Nodes.
type Node struct {
	Commit    oid.OID
	Parent    *oid.OID // nil denotes a root
	Children  []oid.OID
	IsMain    bool
	IsVisible bool
}

// Graph is a map OID -> node; there is no other structure, avoiding
// reference cycles entirely (spec.md §9).
type Graph struct {
	Nodes map[oid.OID]*Node
}

// Inputs bundles the commit graph builder's parameters (§4.4).
type Inputs struct {
	HeadOID       oid.OID
	MainBranchOID oid.OID
	BranchOIDs    map[refs.Name]oid.OID
	Cursor        eventlog.Cursor
	IncludeHidden bool
}

type builder struct {
	ctx      context.Context
	vcs      vcs.Capability
	oracle   *mergebase.Oracle
	replayer *eventlog.Replayer
	in       Inputs

	nodes        map[oid.OID]*Node
	committerAt  map[oid.OID]int64
}

// Build runs the six-step algorithm of §4.4 and returns the
// resulting graph.
func Build(ctx context.Context, v vcs.Capability, oracle *mergebase.Oracle, replayer *eventlog.Replayer, in Inputs) (*Graph, error) {
	b := &builder{
		ctx:         ctx,
		vcs:         v,
		oracle:      oracle,
		replayer:    replayer,
		in:          in,
		nodes:       make(map[oid.OID]*Node),
		committerAt: make(map[oid.OID]int64),
	}
	return b.run()
}

func (b *builder) run() (*Graph, error) {
	seeds, err := b.seeds()
	if err != nil {
		return nil, err
	}
	if b.in.HeadOID.IsZero() || b.in.MainBranchOID.IsZero() {
		return nil, &errs.UserError{Message: "graph build requires both head and main-branch tip"}
	}

	// Step 2: walk first-parent ancestry from every seed.
	for _, s := range seeds {
		if err := b.walkFirstParent(s); err != nil {
			return nil, err
		}
	}

	// Step 3: extend the main branch's first-parent chain back to the
	// eldest merge base found among the seeds.
	if err := b.addMainChain(seeds); err != nil {
		return nil, err
	}

	// Step 4: visibility.
	for o, n := range b.nodes {
		if n.IsMain {
			n.IsVisible = true
			continue
		}
		v, err := b.replayer.CommitVisibility(b.in.Cursor, o)
		if err != nil {
			return nil, err
		}
		n.IsVisible = v == eventlog.Visible
	}

	// Step 5: invert parent edges into children, ordered by committer
	// time ascending, ties broken by OID ascending.
	b.populateChildren()

	// Step 6: prune invisible leaves with no visible descendant.
	if !b.in.IncludeHidden {
		b.prune()
	}

	return &Graph{Nodes: b.nodes}, nil
}

func (b *builder) seeds() ([]oid.OID, error) {
	set := map[oid.OID]bool{}
	var out []oid.OID
	add := func(o oid.OID) {
		if o.IsZero() || set[o] {
			return
		}
		set[o] = true
		out = append(out, o)
	}
	add(b.in.HeadOID)
	for _, o := range b.in.BranchOIDs {
		add(o)
	}
	add(b.in.MainBranchOID)
	visible, err := b.replayer.VisibleCommits(b.in.Cursor)
	if err != nil {
		return nil, err
	}
	for _, o := range visible {
		add(o)
	}
	return out, nil
}

// node looks up or creates a bare node for o, loading its commit
// metadata from the VCS on first visit.
func (b *builder) node(o oid.OID) (*Node, bool, error) {
	if n, ok := b.nodes[o]; ok {
		return n, true, nil
	}
	c, err := b.vcs.FindCommit(b.ctx, o)
	if err != nil {
		return nil, false, &errs.Warning{Message: "graph: commit lookup failed for " + o.String() + ": " + err.Error()}
	}
	n := &Node{Commit: o}
	if len(c.Parents) > 0 {
		p := c.Parents[0]
		n.Parent = &p
	}
	b.nodes[o] = n
	b.committerAt[o] = c.Committer.When.Unix()
	return n, false, nil
}

func (b *builder) walkFirstParent(start oid.OID) error {
	current := start
	for {
		n, existed, err := b.node(current)
		if err != nil {
			if w, ok := err.(*errs.Warning); ok {
				xlog.Warn(w) // individual failed lookups are skipped with a warning (§4.4)
				return nil
			}
			return err
		}
		if existed {
			return nil
		}
		if current == b.in.MainBranchOID || n.Parent == nil {
			return nil
		}
		current = *n.Parent
	}
}

func (b *builder) addMainChain(seeds []oid.OID) error {
	// Walk the full main branch chain, recording position (0 = tip).
	chain := []oid.OID{}
	index := map[oid.OID]int{}
	current := b.in.MainBranchOID
	for {
		chain = append(chain, current)
		index[current] = len(chain) - 1
		c, err := b.vcs.FindCommit(b.ctx, current)
		if err != nil {
			return &errs.UserError{Message: "graph: main branch lookup failed: " + err.Error()}
		}
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	maxIdx := 0
	for _, s := range seeds {
		mb, ok, err := b.oracle.MergeBase(b.ctx, s, b.in.MainBranchOID)
		if err != nil || !ok {
			continue
		}
		if i, found := index[mb]; found && i > maxIdx {
			maxIdx = i
		}
	}

	for i := 0; i <= maxIdx && i < len(chain); i++ {
		o := chain[i]
		n, existed, err := b.node(o)
		if err != nil {
			return err
		}
		if !existed && i+1 < len(chain) {
			p := chain[i+1]
			n.Parent = &p
		}
		n.IsMain = true
	}
	return nil
}

func (b *builder) populateChildren() {
	for o, n := range b.nodes {
		if n.Parent == nil {
			continue
		}
		parent, ok := b.nodes[*n.Parent]
		if !ok {
			continue
		}
		parent.Children = append(parent.Children, o)
	}
	for _, n := range b.nodes {
		children := n.Children
		sort.Slice(children, func(i, j int) bool {
			ti, tj := b.committerAt[children[i]], b.committerAt[children[j]]
			if ti != tj {
				return ti < tj
			}
			return children[i].Less(children[j])
		})
	}
}

func (b *builder) prune() {
	// Post-order sweep: a node survives if it is visible, or if any
	// descendant (recursively) is visible.
	hasVisibleDescendant := make(map[oid.OID]bool)
	var visit func(o oid.OID) bool
	visiting := make(map[oid.OID]bool)
	visit = func(o oid.OID) bool {
		if v, done := hasVisibleDescendant[o]; done {
			return v
		}
		if visiting[o] {
			return false
		}
		visiting[o] = true
		n := b.nodes[o]
		result := n.IsVisible
		for _, c := range n.Children {
			if visit(c) {
				result = true
			}
		}
		hasVisibleDescendant[o] = result
		return result
	}
	for o := range b.nodes {
		visit(o)
	}
	for o, n := range b.nodes {
		if !n.IsVisible && !hasVisibleDescendant[o] {
			delete(b.nodes, o)
		}
	}
	// Remove dangling children references left by deletion.
	for _, n := range b.nodes {
		kept := n.Children[:0]
		for _, c := range n.Children {
			if _, ok := b.nodes[c]; ok {
				kept = append(kept, c)
			}
		}
		n.Children = kept
	}
}
