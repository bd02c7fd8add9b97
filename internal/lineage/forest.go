package lineage

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Tree is one entity's continuous identity: node locations from the newest
// version to the oldest along first-parent links.
type Tree struct {
	ID     int
	Kind   Kind
	Nodes  []Location
	Broken bool
	Reason string
	Bonded bool
}

// Head returns the newest version
func (t *Tree) Head() Location { return t.Nodes[0] }

// Tail returns the oldest version
func (t *Tree) Tail() Location { return t.Nodes[len(t.Nodes)-1] }

// Len returns the number of versions in the tree
func (t *Tree) Len() int { return len(t.Nodes) }

// Forest is the set of lineage trees of one entity kind plus the claim map
// from every linked location to its tree.
type Forest struct {
	kind        Kind
	store       *Store
	trees       map[int]*Tree
	claims      map[Location]int
	nextID      int
	bonds       []Bond
	dropped     []*Tree
	diagnostics []*errors.Error
	log         logrus.FieldLogger
}

func newForest(kind Kind, store *Store) *Forest {
	return &Forest{
		kind:   kind,
		store:  store,
		trees:  make(map[int]*Tree),
		claims: make(map[Location]int),
		log:    store.Logger().WithField("kind", kind.String()),
	}
}

// Kind returns the entity kind of the forest
func (f *Forest) Kind() Kind { return f.kind }

// Store returns the arena backing the forest
func (f *Forest) Store() *Store { return f.store }

func (f *Forest) newTree(seed Location) (*Tree, error) {
	t := &Tree{ID: f.nextID, Kind: f.kind}
	f.nextID++
	if err := f.claim(seed, t); err != nil {
		return nil, err
	}
	f.trees[t.ID] = t
	return t, nil
}

// claim is write-once per location
func (f *Forest) claim(loc Location, t *Tree) error {
	if owner, ok := f.claims[loc]; ok {
		err := errors.DuplicateClaimf(f.store.Strict(), "location %s already claimed by tree %d", loc, owner).
			WithContext("location", loc.String()).
			WithContext("tree", t.ID)
		if f.store.Strict() {
			return err
		}
		f.log.WithField("location", loc.String()).Warn("duplicate claim ignored")
		f.diagnostics = append(f.diagnostics, err)
		return nil
	}
	f.claims[loc] = t.ID
	t.Nodes = append(t.Nodes, loc)
	return nil
}

// Claimed reports whether loc belongs to a tree
func (f *Forest) Claimed(loc Location) bool {
	_, ok := f.claims[loc]
	return ok
}

// TreeOf returns the tree containing loc
func (f *Forest) TreeOf(loc Location) (*Tree, bool) {
	id, ok := f.claims[loc]
	if !ok {
		return nil, false
	}
	t, ok := f.trees[id]
	return t, ok
}

// Tree returns the tree with the given id
func (f *Forest) Tree(id int) (*Tree, bool) {
	t, ok := f.trees[id]
	return t, ok
}

// Node returns the version at loc from the backing arena
func (f *Forest) Node(loc Location) (*Node, bool) {
	return f.store.Node(loc)
}

// Trees returns the trees ordered by id
func (f *Forest) Trees() []*Tree {
	out := make([]*Tree, 0, len(f.trees))
	for _, t := range f.trees {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of trees
func (f *Forest) Len() int { return len(f.trees) }

// Bonds returns every bond recorded on the forest in application order
func (f *Forest) Bonds() []Bond { return f.bonds }

// Dropped returns trees removed by Prune
func (f *Forest) Dropped() []*Tree { return f.dropped }

// Diagnostics returns BrokenLineage and DuplicateClaim diagnostics
func (f *Forest) Diagnostics() []*errors.Error { return f.diagnostics }

// Joins returns the tree the oldest version of t links into, if any. Such a
// tree is a branch that rejoins a lineage claimed earlier.
func (f *Forest) Joins(t *Tree) (*Tree, bool) {
	tail := f.store.MustNode(t.Tail())
	if tail == nil {
		return nil, false
	}
	p, ok := tail.Parent(revision.First)
	if !ok {
		return nil, false
	}
	other, ok := f.TreeOf(p)
	if !ok || other.ID == t.ID {
		return nil, false
	}
	return other, true
}

// Prune drops every broken tree, including trees that join a broken
// lineage. Dropped nodes stay addressable through the store.
func (f *Forest) Prune() {
	verdict := make(map[int]string)
	var resolve func(t *Tree) string
	resolve = func(t *Tree) string {
		if v, ok := verdict[t.ID]; ok {
			return v
		}
		v := ""
		if t.Broken {
			v = t.Reason
		} else if other, ok := f.Joins(t); ok && resolve(other) != "" {
			v = fmt.Sprintf("joins broken lineage %d", other.ID)
		}
		verdict[t.ID] = v
		return v
	}

	for _, t := range f.Trees() {
		resolve(t)
	}

	for _, t := range f.Trees() {
		reason := verdict[t.ID]
		if reason == "" {
			continue
		}
		t.Broken = true
		t.Reason = reason
		for _, loc := range t.Nodes {
			delete(f.claims, loc)
		}
		delete(f.trees, t.ID)
		f.dropped = append(f.dropped, t)

		f.diagnostics = append(f.diagnostics,
			errors.BrokenLineagef("%s lineage ending at %s dropped: %s", f.kind, t.Tail(), reason).
				WithContext("tree", t.ID).
				WithContext("location", t.Tail().String()))
		f.log.WithFields(logrus.Fields{
			"tree":     t.ID,
			"location": t.Tail().String(),
			"reason":   reason,
		}).Debug("broken lineage dropped")
	}
}

// Bond stitches the lineage of post onto pre. Versions already in the same
// tree only get the bond recorded on post's edge. When post already descends
// from another lineage, or both versions belong to the same revision, the
// bond is recorded on both versions as linked and no tree changes.
// Otherwise post is the unlinked oldest version of its tree; pre becomes its
// first parent and, when pre is the newest surviving version of its own
// tree, pre's history moves into post's tree.
func (f *Forest) Bond(pre, post Location, kind string, rev int, description string) (Bond, error) {
	b := Bond{Source: pre, Target: post, Kind: kind, Revision: rev, Description: description}

	preTree, ok := f.TreeOf(pre)
	if !ok {
		return b, errors.UnresolvedBondf("pre-image %s is not part of any lineage", pre)
	}
	postTree, ok := f.TreeOf(post)
	if !ok {
		return b, errors.UnresolvedBondf("post-image %s is not part of any lineage", post)
	}
	postNode := f.store.MustNode(post)

	if preTree.ID == postTree.ID {
		b.Outcome = BondAnnotated
		postNode.bonds = append(postNode.bonds, b)
		f.bonds = append(f.bonds, b)
		return b, nil
	}

	if pre.Revision > post.Revision {
		return b, errors.UnresolvedBondf("pre-image %s is newer than post-image %s", pre, post)
	}
	if pre.Revision == post.Revision || postNode.HasParent(revision.First) {
		return f.link(b, pre, postNode), nil
	}
	if postTree.Tail() != post {
		return b, errors.InternalErrorf("unlinked version %s is not the tail of tree %d", post, postTree.ID)
	}

	postNode.setParent(revision.First, pre)

	cut := 0
	for cut < len(preTree.Nodes) && preTree.Nodes[cut] != pre {
		cut++
	}
	newer := preTree.Nodes[:cut]

	if f.onlyDeletions(newer) {
		suffix := preTree.Nodes[cut:]
		postTree.Nodes = append(postTree.Nodes, suffix...)
		for _, loc := range suffix {
			f.claims[loc] = postTree.ID
		}
		postTree.Broken, postTree.Reason = preTree.Broken, preTree.Reason
		postTree.Bonded = postTree.Bonded || preTree.Bonded

		if len(newer) == 0 {
			delete(f.trees, preTree.ID)
		} else {
			preTree.Nodes = append([]Location(nil), newer...)
			preTree.Broken, preTree.Reason = false, ""
		}
		b.Outcome = BondSpliced
	} else {
		postTree.Broken, postTree.Reason = false, ""
		b.Outcome = BondJoined
	}
	postTree.Bonded = true

	postNode.bonds = append(postNode.bonds, b)
	f.bonds = append(f.bonds, b)
	return b, nil
}

func (f *Forest) link(b Bond, pre Location, post *Node) Bond {
	b.Outcome = BondLinked
	post.bonds = append(post.bonds, b)
	if n := f.store.MustNode(pre); n != nil {
		n.bonds = append(n.bonds, b)
	}
	f.bonds = append(f.bonds, b)

	f.log.WithFields(logrus.Fields{
		"source": pre.String(),
		"target": post.Loc.String(),
		"kind":   b.Kind,
	}).Debug("bond linked without moving lineage")
	return b
}

func (f *Forest) onlyDeletions(locs []Location) bool {
	for _, loc := range locs {
		n := f.store.MustNode(loc)
		if n == nil || n.Change != models.ChangeDeleted {
			return false
		}
	}
	return true
}
