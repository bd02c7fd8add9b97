package refactoring

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

func rev(pos int, parents []int, files ...models.FileChange) models.Revision {
	return models.Revision{
		Position: pos,
		ID:       fmt.Sprintf("r%d", pos),
		Author:   "dev",
		Parents:  parents,
		Files:    files,
	}
}

func change(kind models.ChangeKind, path string) models.FileChange {
	return models.FileChange{Kind: kind, Path: path}
}

func rename(kind, before, after string) models.Refactoring {
	return models.Refactoring{
		Kind:            kind,
		BeforeLocations: []string{before},
		AfterLocations:  []string{after},
	}
}

func buildForest(t *testing.T, revs []models.Revision) *lineage.Forest {
	t.Helper()
	idx, err := revision.Build(revs)
	require.NoError(t, err)
	store, err := lineage.NewStore(idx, lineage.Options{})
	require.NoError(t, err)
	f, err := lineage.Build(store, lineage.NewFileSpec(store))
	require.NoError(t, err)
	return f
}

// membership renders tree contents independent of tree ids
func membership(f *lineage.Forest) []string {
	var out []string
	for _, tree := range f.Trees() {
		out = append(out, fmt.Sprint(tree.Nodes))
	}
	sort.Strings(out)
	return out
}

func TestRenameBondSplicesLineage(t *testing.T) {
	r1 := rev(1, []int{0}, change(models.ChangeModified, "B.txt"))
	r1.Refactorings = []models.Refactoring{rename("Rename Class", "A.txt", "B.txt")}
	f := buildForest(t, []models.Revision{
		rev(0, nil, change(models.ChangeAdded, "A.txt")),
		r1,
	})
	require.Equal(t, 2, f.Len(), "path matching alone leaves two trees")

	report, err := NewResolver(f, EmbeddedOracle{}, Options{}).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Bonds, 1)
	assert.Empty(t, report.Unresolved)
	assert.Equal(t, lineage.BondSpliced, report.Bonds[0].Outcome)

	require.Equal(t, 1, f.Len())
	tree := f.Trees()[0]
	assert.Equal(t, []lineage.Location{lineage.FileLoc(1, 0), lineage.FileLoc(0, 0)}, tree.Nodes)
	assert.False(t, tree.Broken)
	assert.True(t, tree.Bonded)

	post := f.Store().MustNode(lineage.FileLoc(1, 0))
	p, ok := post.Parent(revision.First)
	require.True(t, ok)
	assert.Equal(t, lineage.FileLoc(0, 0), p)
	require.Len(t, post.Bonds(), 1)
	assert.Equal(t, "Rename Class", post.Bonds()[0].Kind)

	f.Prune()
	assert.Equal(t, 1, f.Len())
	requireExplainedRoots(t, f)
}

func TestDeleteAddRenameSplicesAcrossDeletion(t *testing.T) {
	r1 := rev(1, []int{0}, change(models.ChangeDeleted, "A.txt"), change(models.ChangeAdded, "B.txt"))
	r1.Refactorings = []models.Refactoring{rename("Move Class", "A.txt", "B.txt")}
	f := buildForest(t, []models.Revision{
		rev(0, nil, change(models.ChangeAdded, "A.txt")),
		r1,
	})

	report, err := NewResolver(f, EmbeddedOracle{}, Options{}).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Bonds, 1)
	assert.Equal(t, lineage.BondSpliced, report.Bonds[0].Outcome)

	moved, ok := f.TreeOf(lineage.FileLoc(1, 1))
	require.True(t, ok)
	assert.Equal(t, []lineage.Location{lineage.FileLoc(1, 1), lineage.FileLoc(0, 0)}, moved.Nodes)

	deleted, ok := f.TreeOf(lineage.FileLoc(1, 0))
	require.True(t, ok)
	assert.Equal(t, []lineage.Location{lineage.FileLoc(1, 0)}, deleted.Nodes)
	joined, ok := f.Joins(deleted)
	require.True(t, ok)
	assert.Equal(t, moved.ID, joined.ID)

	f.Prune()
	assert.Equal(t, 2, f.Len())
	requireExplainedRoots(t, f)
}

func TestBondOnExistingEdgeAnnotates(t *testing.T) {
	r1 := rev(1, []int{0}, models.FileChange{Kind: models.ChangeRenamed, Path: "B.txt", PreviousPath: "A.txt"})
	r1.Refactorings = []models.Refactoring{rename("Rename Class", "A.txt", "B.txt")}
	f := buildForest(t, []models.Revision{
		rev(0, nil, change(models.ChangeAdded, "A.txt")),
		r1,
	})

	report, err := NewResolver(f, EmbeddedOracle{}, Options{}).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Bonds, 1)
	assert.Equal(t, lineage.BondAnnotated, report.Bonds[0].Outcome)
	assert.Equal(t, 1, f.Len())
}

func TestUnresolvedBonds(t *testing.T) {
	tests := []struct {
		name   string
		record models.Refactoring
	}{
		{"unknown before path", rename("Rename Class", "Missing.txt", "B.txt")},
		{"after path not recorded", rename("Rename Class", "A.txt", "C.txt")},
		{"no locations", models.Refactoring{Kind: "Rename Class"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r2 := rev(2, []int{1}, change(models.ChangeModified, "A.txt"), change(models.ChangeModified, "B.txt"))
			r2.Refactorings = []models.Refactoring{tt.record}
			f := buildForest(t, []models.Revision{
				rev(0, nil, change(models.ChangeAdded, "A.txt")),
				rev(1, []int{0}, change(models.ChangeAdded, "B.txt")),
				r2,
			})
			before := membership(f)

			report, err := NewResolver(f, EmbeddedOracle{}, Options{}).Resolve(context.Background())
			require.NoError(t, err)
			assert.Empty(t, report.Bonds)
			require.Len(t, report.Unresolved, 1)
			assert.Equal(t, 2, report.Unresolved[0].Revision)
			assert.Equal(t, "r2", report.Unresolved[0].RevisionID)
			assert.NotEmpty(t, report.Unresolved[0].Reason)
			assert.Equal(t, before, membership(f))
		})
	}
}

func TestResolvedBondsWithoutNewEdgeAreLinked(t *testing.T) {
	tests := []struct {
		name      string
		revisions func() []models.Revision
		source    lineage.Location
		target    lineage.Location
	}{
		{
			name: "move into a file with its own history",
			revisions: func() []models.Revision {
				r1 := rev(1, []int{0}, change(models.ChangeModified, "A.java"), change(models.ChangeModified, "B.java"))
				r1.Refactorings = []models.Refactoring{rename("Move Method", "A.java", "B.java")}
				return []models.Revision{
					rev(0, nil, change(models.ChangeAdded, "A.java"), change(models.ChangeAdded, "B.java")),
					r1,
				}
			},
			source: lineage.FileLoc(0, 0),
			target: lineage.FileLoc(1, 1),
		},
		{
			name: "both files added in the same revision",
			revisions: func() []models.Revision {
				r1 := rev(1, []int{0}, change(models.ChangeAdded, "A.java"), change(models.ChangeAdded, "B.java"))
				r1.Refactorings = []models.Refactoring{rename("Extract Class", "A.java", "B.java")}
				return []models.Revision{
					rev(0, nil, change(models.ChangeAdded, "X.java")),
					r1,
				}
			},
			source: lineage.FileLoc(1, 0),
			target: lineage.FileLoc(1, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := buildForest(t, tt.revisions())
			before := membership(f)

			report, err := NewResolver(f, EmbeddedOracle{}, Options{}).Resolve(context.Background())
			require.NoError(t, err)
			assert.Empty(t, report.Unresolved)
			require.Len(t, report.Bonds, 1)
			b := report.Bonds[0]
			assert.Equal(t, lineage.BondLinked, b.Outcome)
			assert.Equal(t, tt.source, b.Source)
			assert.Equal(t, tt.target, b.Target)
			assert.Equal(t, before, membership(f))
			assert.Len(t, f.Bonds(), 1)

			for _, loc := range []lineage.Location{tt.source, tt.target} {
				require.Lenf(t, f.Store().MustNode(loc).Bonds(), 1, "bonds on %s", loc)
			}

			f.Prune()
			requireExplainedRoots(t, f)
		})
	}
}

// requireExplainedRoots checks that every surviving tree starts at an
// addition, a join or a bond
func requireExplainedRoots(t *testing.T, f *lineage.Forest) {
	t.Helper()
	for _, tree := range f.Trees() {
		tail := f.Store().MustNode(tree.Tail())
		require.NotNil(t, tail)
		require.Truef(t,
			tail.Change == models.ChangeAdded || tail.HasParent(revision.First) || tree.Bonded,
			"tree %d starts at %s %s", tree.ID, tail.Change, tail.Loc)
	}
}

func TestKindFilter(t *testing.T) {
	r1 := rev(1, []int{0}, change(models.ChangeModified, "B.txt"))
	r1.Refactorings = []models.Refactoring{rename("Extract Method", "A.txt", "B.txt")}
	f := buildForest(t, []models.Revision{
		rev(0, nil, change(models.ChangeAdded, "A.txt")),
		r1,
	})

	report, err := NewResolver(f, EmbeddedOracle{}, Options{Kinds: []string{"rename class", "Move Class"}}).
		Resolve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Bonds)
	assert.Equal(t, 1, report.Filtered)
	assert.Equal(t, 2, f.Len())
}

func TestBondOrderWithinRevisionIsCanonical(t *testing.T) {
	history := func(records ...models.Refactoring) []models.Revision {
		r1 := rev(1, []int{0}, change(models.ChangeModified, "C.txt"), change(models.ChangeModified, "D.txt"))
		r1.Refactorings = records
		return []models.Revision{
			rev(0, nil, change(models.ChangeAdded, "A.txt"), change(models.ChangeAdded, "B.txt")),
			r1,
		}
	}
	a := rename("Rename Class", "A.txt", "C.txt")
	b := rename("Rename Class", "A.txt", "D.txt")
	c := rename("Move Class", "B.txt", "D.txt")

	forward := buildForest(t, history(a, b, c))
	_, err := NewResolver(forward, EmbeddedOracle{}, Options{}).Resolve(context.Background())
	require.NoError(t, err)

	backward := buildForest(t, history(c, b, a))
	_, err = NewResolver(backward, EmbeddedOracle{}, Options{}).Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, membership(forward), membership(backward))
	forward.Prune()
	requireExplainedRoots(t, forward)
	for _, loc := range []lineage.Location{lineage.FileLoc(1, 0), lineage.FileLoc(1, 1)} {
		pf, okf := forward.Store().MustNode(loc).Parent(revision.First)
		pb, okb := backward.Store().MustNode(loc).Parent(revision.First)
		assert.Equal(t, okf, okb)
		assert.Equal(t, pf, pb)
	}
}

func TestSearchMergeParents(t *testing.T) {
	history := func() []models.Revision {
		r2 := rev(2, []int{0, 1}, change(models.ChangeModified, "B.txt"))
		r2.Refactorings = []models.Refactoring{rename("Rename Class", "A.txt", "B.txt")}
		return []models.Revision{
			rev(0, nil, change(models.ChangeAdded, "X.txt")),
			rev(1, []int{0}, change(models.ChangeAdded, "A.txt")),
			r2,
		}
	}

	f := buildForest(t, history())
	report, err := NewResolver(f, EmbeddedOracle{}, Options{}).Resolve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Bonds)
	assert.Len(t, report.Unresolved, 1)

	f = buildForest(t, history())
	report, err = NewResolver(f, EmbeddedOracle{}, Options{SearchMergeParents: true}).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Bonds, 1)
	assert.Equal(t, lineage.FileLoc(1, 0), report.Bonds[0].Source)
	assert.Equal(t, lineage.FileLoc(2, 0), report.Bonds[0].Target)
}

type failingOracle struct{}

func (failingOracle) Refactorings(context.Context, models.Revision) ([]models.Refactoring, error) {
	return nil, fmt.Errorf("detector crashed")
}

func TestOracleFailureAborts(t *testing.T) {
	f := buildForest(t, []models.Revision{rev(0, nil, change(models.ChangeAdded, "A.txt"))})
	_, err := NewResolver(f, failingOracle{}, Options{}).Resolve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector crashed")
}

func TestStaticOracleKeysByRevisionID(t *testing.T) {
	o := StaticOracle{"r1": {rename("Rename Class", "A.txt", "B.txt")}}
	recs, err := o.Refactorings(context.Background(), rev(1, []int{0}))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = o.Refactorings(context.Background(), rev(0, nil))
	require.NoError(t, err)
	assert.Empty(t, recs)
}
