// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package graph

import "github.com/smartbranch/smartbranch/internal/oid"

// ResolveBaseCommit walks up from start through the first-parent
// chain and returns the topmost commit that is not on the main
// branch — the subtree root `move --base` operates on when the user
// didn't give an explicit --source. Grounded on the original
// implementation's resolve_base_commit recursive walk.
func ResolveBaseCommit(g *Graph, start oid.OID) (oid.OID, bool) {
	current := start
	last := oid.Zero
	found := false
	for {
		n, ok := g.Nodes[current]
		if !ok || n.IsMain {
			break
		}
		last = current
		found = true
		if n.Parent == nil {
			break
		}
		current = *n.Parent
	}
	return last, found
}
