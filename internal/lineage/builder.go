package lineage

import (
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Spec supplies the kind-specific capabilities of the forest builder
type Spec interface {
	// Kind is the entity kind the forest tracks
	Kind() Kind
	// Seeds lists candidate tree heads, newest revision first
	Seeds() []*Node
	// Predecessor locates the version n descends from through the given
	// parent slot, or nil when there is none
	Predecessor(n *Node, slot revision.Slot) *Node
}

// Build runs the backward linking sweep for one entity kind. Every unclaimed
// seed starts a tree that is extended along first-parent predecessors until
// an ADDED version, an already claimed version, or a dead end is reached.
func Build(store *Store, spec Spec) (*Forest, error) {
	f := newForest(spec.Kind(), store)

	for _, seed := range spec.Seeds() {
		if f.Claimed(seed.Loc) {
			continue
		}
		t, err := f.newTree(seed.Loc)
		if err != nil {
			return nil, err
		}
		if err := f.linkAll(spec, t, seed); err != nil {
			return nil, err
		}
	}

	f.log.WithFields(logrus.Fields{
		"trees":    f.Len(),
		"versions": store.Len(spec.Kind()),
	}).Debug("lineage forest built")
	return f, nil
}

func (f *Forest) linkAll(spec Spec, t *Tree, seed *Node) error {
	cur := seed
	for {
		// Second parents are side links for diffing only and never join the
		// mainline sequence.
		if side := spec.Predecessor(cur, revision.Second); side != nil {
			cur.setParent(revision.Second, side.Loc)
		}

		if cur.Change == models.ChangeAdded {
			return nil
		}

		pred := spec.Predecessor(cur, revision.First)
		if pred == nil {
			t.Broken = true
			t.Reason = "no predecessor for " + string(cur.Change) + " version " + cur.Loc.String()
			return nil
		}

		cur.setParent(revision.First, pred.Loc)
		if f.Claimed(pred.Loc) {
			return nil
		}
		if err := f.claim(pred.Loc, t); err != nil {
			return err
		}
		cur = pred
	}
}
