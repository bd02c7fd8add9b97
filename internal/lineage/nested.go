package lineage

import (
	"sort"

	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// NestedSpec links declarations, methods or fields. A nested version can only
// descend from a version owned by its container's linked parent, so nested
// lineage never leaves the container lineage that the enclosing forest has
// already settled. Matching is by structural key; repeated keys inside one
// container pair up by rank.
type NestedSpec struct {
	kind       Kind
	containers *Forest
	matches    map[Location][2]*Node
}

// NewNestedSpec prepares the specialization for kind using the pruned forest
// of its container kind, and assigns every nested version its change kind.
func NewNestedSpec(containers *Forest, kind Kind) *NestedSpec {
	s := &NestedSpec{
		kind:       kind,
		containers: containers,
		matches:    make(map[Location][2]*Node),
	}
	for _, c := range containers.Store().Nodes(containers.Kind()) {
		s.match(c)
	}
	return s
}

// NewDeclarationSpec matches declarations inside linked file versions
func NewDeclarationSpec(files *Forest) *NestedSpec {
	return NewNestedSpec(files, KindDeclaration)
}

// NewMethodSpec matches methods inside linked declaration versions
func NewMethodSpec(decls *Forest) *NestedSpec {
	return NewNestedSpec(decls, KindMethod)
}

// NewFieldSpec matches fields inside linked declaration versions
func NewFieldSpec(decls *Forest) *NestedSpec {
	return NewNestedSpec(decls, KindField)
}

func (s *NestedSpec) Kind() Kind { return s.kind }

func (s *NestedSpec) children(c *Node) []*Node {
	store := s.containers.Store()
	var out []*Node
	for _, loc := range c.Children {
		if loc.Kind != s.kind {
			continue
		}
		if n, ok := store.Node(loc); ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *NestedSpec) match(c *Node) {
	kids := s.children(c)
	if len(kids) == 0 {
		return
	}
	store := s.containers.Store()
	live := s.containers.Claimed(c.Loc)

	if live {
		for _, slot := range []revision.Slot{revision.First, revision.Second} {
			ploc, ok := c.Parent(slot)
			if !ok {
				continue
			}
			p, ok := store.Node(ploc)
			if !ok {
				continue
			}
			byKey := make(map[string][]*Node)
			for _, pk := range s.children(p) {
				byKey[pk.Key] = append(byKey[pk.Key], pk)
			}
			for _, k := range kids {
				cands := byKey[k.Key]
				if len(cands) == 0 {
					continue
				}
				m := s.matches[k.Loc]
				m[slot] = cands[0]
				s.matches[k.Loc] = m
				byKey[k.Key] = cands[1:]
			}
		}
	}

	for _, k := range kids {
		k.Change = s.changeOf(c, k, live)
	}
}

func (s *NestedSpec) changeOf(c, k *Node, live bool) models.ChangeKind {
	if pred := s.matches[k.Loc][revision.First]; pred != nil {
		if pred.Fingerprint == k.Fingerprint {
			return models.ChangeUnchanged
		}
		return models.ChangeModified
	}
	if !live {
		// Containers outside any surviving lineage give their members none.
		return models.ChangeModified
	}
	if c.HasParent(revision.First) || c.Change == models.ChangeAdded {
		return models.ChangeAdded
	}
	return models.ChangeModified
}

// Seeds lists nested versions by container, newest container first and in
// declaration order within a container
func (s *NestedSpec) Seeds() []*Node {
	cs := s.containers.Store().Nodes(s.containers.Kind())
	sort.SliceStable(cs, func(i, j int) bool { return cs[j].Loc.Less(cs[i].Loc) })

	var out []*Node
	for _, c := range cs {
		out = append(out, s.children(c)...)
	}
	return out
}

// Predecessor returns the version n was matched to inside its container's
// parent in the given slot
func (s *NestedSpec) Predecessor(n *Node, slot revision.Slot) *Node {
	return s.matches[n.Loc][slot]
}
