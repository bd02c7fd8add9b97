// Package revision indexes one repository's revision list by position and
// identifier and resolves parent revisions.
package revision

import (
	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/models"
)

// Slot selects a parent of a revision
type Slot int

const (
	First Slot = iota
	Second
)

func (s Slot) String() string {
	if s == Second {
		return "second"
	}
	return "first"
}

// Node wraps a revision with derived bookkeeping. Immutable after Build.
type Node struct {
	rev          *models.Revision
	contributors int
	parents      [2]*Node
}

// Position returns the revision's sequence position
func (n *Node) Position() int { return n.rev.Position }

// ID returns the revision identifier
func (n *Node) ID() string { return n.rev.ID }

// Revision returns the wrapped record
func (n *Node) Revision() *models.Revision { return n.rev }

// Contributors is the number of distinct authors at or before this revision
func (n *Node) Contributors() int { return n.contributors }

// IsMerge reports whether a second parent is set
func (n *Node) IsMerge() bool { return n.parents[Second] != nil }

// Index maps positions and identifiers to revision nodes
type Index struct {
	byPosition []*Node
	byID       map[string]*Node
}

// Build indexes revs in one pass. Revisions must be supplied in position
// order starting at zero, and every parent must precede its children.
func Build(revs []models.Revision) (*Index, error) {
	idx := &Index{
		byPosition: make([]*Node, 0, len(revs)),
		byID:       make(map[string]*Node, len(revs)),
	}
	authors := make(map[string]struct{})

	for i := range revs {
		rev := &revs[i]
		if rev.Position != i {
			return nil, errors.InconsistentHistoryf("revision %q has position %d, expected %d", rev.ID, rev.Position, i).
				WithContext("revision", rev.ID)
		}
		if rev.ID == "" {
			return nil, errors.InconsistentHistoryf("revision at position %d has no identifier", i)
		}
		if _, dup := idx.byID[rev.ID]; dup {
			return nil, errors.InconsistentHistoryf("revision identifier %q appears twice", rev.ID).
				WithContext("position", i)
		}
		if len(rev.Parents) > 2 {
			return nil, errors.InconsistentHistoryf("revision %q declares %d parents, at most 2 supported", rev.ID, len(rev.Parents))
		}

		node := &Node{rev: rev}
		for slot, p := range rev.Parents {
			if p < 0 || p >= i {
				return nil, errors.InconsistentHistoryf("revision %q (position %d) references parent %d that is not indexed yet", rev.ID, i, p).
					WithContext("parent", p)
			}
			if slot == int(Second) && p == rev.Parents[First] {
				return nil, errors.InconsistentHistoryf("revision %q lists parent %d twice", rev.ID, p)
			}
			node.parents[slot] = idx.byPosition[p]
		}

		authors[rev.Author] = struct{}{}
		node.contributors = len(authors)

		idx.byPosition = append(idx.byPosition, node)
		idx.byID[rev.ID] = node
	}

	return idx, nil
}

// Len returns the number of indexed revisions
func (idx *Index) Len() int { return len(idx.byPosition) }

// ByPosition returns the node at position p or nil
func (idx *Index) ByPosition(p int) *Node {
	if p < 0 || p >= len(idx.byPosition) {
		return nil
	}
	return idx.byPosition[p]
}

// ByID returns the node with the given identifier or nil
func (idx *Index) ByID(id string) *Node {
	return idx.byID[id]
}

// Parent returns the parent in the given slot, or nil when unset
func (idx *Index) Parent(n *Node, which Slot) *Node {
	if n == nil || which < First || which > Second {
		return nil
	}
	return n.parents[which]
}

// Newest returns nodes from the highest position to the lowest
func (idx *Index) Newest() []*Node {
	out := make([]*Node, len(idx.byPosition))
	for i, n := range idx.byPosition {
		out[len(out)-1-i] = n
	}
	return out
}

// Oldest returns nodes in position order
func (idx *Index) Oldest() []*Node {
	out := make([]*Node, len(idx.byPosition))
	copy(out, idx.byPosition)
	return out
}

// WalkFirstParents calls fn on start and then on each first-parent ancestor
// until fn returns false or the root is passed.
func (idx *Index) WalkFirstParents(start *Node, fn func(*Node) bool) {
	for cur := start; cur != nil; cur = cur.parents[First] {
		if !fn(cur) {
			return
		}
	}
}

// WalkAncestors visits start and every ancestor once, breadth first, first
// parents before second parents.
func (idx *Index) WalkAncestors(start *Node, fn func(*Node) bool) {
	if start == nil {
		return
	}
	seen := map[int]bool{start.Position(): true}
	queue := []*Node{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !fn(cur) {
			return
		}
		for _, p := range cur.parents {
			if p != nil && !seen[p.Position()] {
				seen[p.Position()] = true
				queue = append(queue, p)
			}
		}
	}
}
