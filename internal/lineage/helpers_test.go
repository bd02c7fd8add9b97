package lineage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

func rev(pos int, parents []int, files ...models.FileChange) models.Revision {
	return models.Revision{
		Position: pos,
		ID:       "r" + string(rune('0'+pos)),
		Author:   "dev",
		Parents:  parents,
		Files:    files,
	}
}

func change(kind models.ChangeKind, path string) models.FileChange {
	return models.FileChange{Kind: kind, Path: path}
}

func withTree(fc models.FileChange, decls ...models.Declaration) models.FileChange {
	fc.Tree = &models.SyntaxTree{Declarations: decls}
	return fc
}

func newStore(t *testing.T, revs []models.Revision, opts Options) *Store {
	t.Helper()
	idx, err := revision.Build(revs)
	require.NoError(t, err)
	store, err := NewStore(idx, opts)
	require.NoError(t, err)
	return store
}

func fileForest(t *testing.T, revs []models.Revision) (*Store, *Forest) {
	t.Helper()
	store := newStore(t, revs, Options{})
	f, err := Build(store, NewFileSpec(store))
	require.NoError(t, err)
	return store, f
}

// allForests builds and prunes every kind in nesting order
func allForests(t *testing.T, revs []models.Revision) (*Store, map[Kind]*Forest) {
	t.Helper()
	store, files := fileForest(t, revs)
	files.Prune()

	decls, err := Build(store, NewDeclarationSpec(files))
	require.NoError(t, err)
	decls.Prune()

	methods, err := Build(store, NewMethodSpec(decls))
	require.NoError(t, err)
	methods.Prune()

	fields, err := Build(store, NewFieldSpec(decls))
	require.NoError(t, err)
	fields.Prune()

	return store, map[Kind]*Forest{
		KindFile:        files,
		KindDeclaration: decls,
		KindMethod:      methods,
		KindField:       fields,
	}
}

// checkInvariants asserts location uniqueness, backward-only links, and
// that every unbroken tree starts at an addition, a join or a bond
func checkInvariants(t *testing.T, f *Forest) {
	t.Helper()
	seen := make(map[Location]int)
	for _, tree := range f.Trees() {
		if !tree.Broken {
			tail := f.store.MustNode(tree.Tail())
			require.NotNil(t, tail)
			require.Truef(t,
				tail.Change == models.ChangeAdded || tail.HasParent(revision.First) || tree.Bonded,
				"tree %d starts at %s %s without a bond", tree.ID, tail.Change, tail.Loc)
		}
		for _, loc := range tree.Nodes {
			owner, dup := seen[loc]
			require.Falsef(t, dup, "%s in trees %d and %d", loc, owner, tree.ID)
			seen[loc] = tree.ID

			n := f.store.MustNode(loc)
			require.NotNil(t, n)
			for _, slot := range []revision.Slot{revision.First, revision.Second} {
				if p, ok := n.Parent(slot); ok {
					require.Lessf(t, p.Revision, loc.Revision, "edge %s -> %s", loc, p)
				}
			}
		}
	}
}
