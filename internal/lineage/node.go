package lineage

import (
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Node is one entity version. Nodes are created once per location and only
// gain parent links, bonds and edit scripts afterwards.
type Node struct {
	Loc         Location
	Change      models.ChangeKind
	Key         string
	Path        string
	Fingerprint string

	File   *models.FileChange
	Decl   *models.Declaration
	Method *models.Method
	Field  *models.Field

	// Children are the owned nested versions: declarations for files,
	// methods then fields for declarations.
	Children []Location

	parents    [2]Location
	hasParent  [2]bool
	bonds      []Bond
	scripts    [2]*EditScript
	hasScripts bool
}

// Parent returns the predecessor location in the given slot
func (n *Node) Parent(slot revision.Slot) (Location, bool) {
	return n.parents[slot], n.hasParent[slot]
}

// HasParent reports whether the slot is linked
func (n *Node) HasParent(slot revision.Slot) bool {
	return n.hasParent[slot]
}

func (n *Node) setParent(slot revision.Slot, loc Location) {
	n.parents[slot] = loc
	n.hasParent[slot] = true
}

// Bonds returns the refactoring bonds recorded on the first-parent edge,
// plus linked bonds naming this version on either side
func (n *Node) Bonds() []Bond {
	return n.bonds
}

// Script returns the edit script against the given parent slot. The first
// slot is always set once diffs are attached, the second only for merges.
func (n *Node) Script(slot revision.Slot) *EditScript {
	return n.scripts[slot]
}

// AttachScript records a computed edit script
func (n *Node) AttachScript(slot revision.Slot, s *EditScript) {
	n.scripts[slot] = s
	n.hasScripts = true
}

// HasScripts reports whether diffs were attached
func (n *Node) HasScripts() bool {
	return n.hasScripts
}

// BondOutcome says what a bond did to the forest
type BondOutcome string

const (
	BondSpliced   BondOutcome = "spliced"
	BondJoined    BondOutcome = "joined"
	BondAnnotated BondOutcome = "annotated"
	BondLinked    BondOutcome = "linked"
)

// Bond is a cross-lineage edge from a refactoring record
type Bond struct {
	Source      Location    `json:"source"`
	Target      Location    `json:"target"`
	Kind        string      `json:"kind"`
	Revision    int         `json:"revision"`
	Outcome     BondOutcome `json:"outcome"`
	Description string      `json:"description,omitempty"`
}
