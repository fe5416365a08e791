// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/smartbranch/smartbranch/internal/graph"
	"github.com/smartbranch/smartbranch/internal/oid"
)

// Smartlog renders the commit graph as an indented tree, one line per
// commit, in the line-oriented style this core favors over a
// terminal-width-aware table.
type Smartlog struct {
	Hidden bool
}

func (c *Smartlog) Run(g *Globals) error {
	r, err := OpenRepo(g)
	if err != nil {
		diev("%v", err)
		return err
	}
	defer r.Close() // nolint
	return c.run(context.Background(), r)
}

func (c *Smartlog) run(ctx context.Context, r *Repo) error {
	gr, _, err := r.BuildGraph(ctx, c.Hidden)
	if err != nil {
		return err
	}
	head, err := r.VCS.Head(ctx)
	if err != nil {
		return err
	}
	tips, err := r.VCS.BranchTips(ctx)
	if err != nil {
		return err
	}
	branchesAt := map[oid.OID][]string{}
	for name, o := range tips {
		branchesAt[o] = append(branchesAt[o], name.Short())
	}
	for o := range branchesAt {
		sort.Strings(branchesAt[o])
	}

	roots := rootsOf(gr)
	for _, root := range roots {
		printRoot(gr, root, head, branchesAt)
	}
	return nil
}

func printRoot(g *graph.Graph, o oid.OID, head oid.OID, branchesAt map[oid.OID][]string) {
	printLine(g, o, "", head, branchesAt)
	n := g.Nodes[o]
	for i, child := range n.Children {
		printNode(g, child, "", i == len(n.Children)-1, head, branchesAt)
	}
}

// rootsOf returns every node with no in-graph parent, ordered by OID
// for deterministic output.
func rootsOf(g *graph.Graph) []oid.OID {
	var roots []oid.OID
	for o, n := range g.Nodes {
		if n.Parent == nil {
			roots = append(roots, o)
			continue
		}
		if _, ok := g.Nodes[*n.Parent]; !ok {
			roots = append(roots, o)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })
	return roots
}

func printNode(g *graph.Graph, o oid.OID, prefix string, isLast bool, head oid.OID, branchesAt map[oid.OID][]string) {
	connector := "├─ "
	childPrefix := prefix + "│  "
	if isLast {
		connector = "└─ "
		childPrefix = prefix + "   "
	}
	printLine(g, o, prefix+connector, head, branchesAt)

	n := g.Nodes[o]
	for i, child := range n.Children {
		printNode(g, child, childPrefix, i == len(n.Children)-1, head, branchesAt)
	}
}

func printLine(g *graph.Graph, o oid.OID, linePrefix string, head oid.OID, branchesAt map[oid.OID][]string) {
	n := g.Nodes[o]
	var marker string
	switch {
	case o == head:
		marker = "@ "
	case !n.IsVisible:
		marker = "x "
	default:
		marker = "o "
	}

	var suffix string
	if labels := branchesAt[o]; len(labels) > 0 {
		suffix = " (" + strings.Join(labels, ", ") + ")"
	}
	if !n.IsVisible {
		suffix += " [hidden]"
	}

	fmt.Printf("%s%s%s%s\n", linePrefix, marker, o.Short(), suffix)
}
