package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

func greeter(path string, kind models.ChangeKind, body string) models.FileChange {
	return models.FileChange{
		Kind: kind,
		Path: path,
		Tree: &models.SyntaxTree{Declarations: []models.Declaration{{
			QualifiedName: "demo.Greeter",
			Kind:          "class",
			Methods:       []models.Method{{Name: "greet", Signature: "greet(String)", Body: body}},
			Fields:        []models.Field{{Name: "prefix", Type: "String"}},
		}}},
	}
}

func renameRepo() *models.Repository {
	return &models.Repository{
		Name: "rename-demo",
		Revisions: []models.Revision{
			{Position: 0, ID: "c0", Author: "alice", Files: []models.FileChange{
				greeter("Greeter.java", models.ChangeAdded, "hi"),
				{Kind: models.ChangeAdded, Path: "README"},
			}},
			{Position: 1, ID: "c1", Author: "bob", Parents: []int{0},
				Files: []models.FileChange{greeter("Welcomer.java", models.ChangeModified, "hello")},
				Refactorings: []models.Refactoring{{
					Kind:            "Rename Class",
					BeforeLocations: []string{"Greeter.java"},
					AfterLocations:  []string{"Welcomer.java"},
				}},
			},
		},
	}
}

func TestAnalyzeFollowsRenameIntoNestedLineage(t *testing.T) {
	res, err := NewAnalyzer(nil, Options{}, nil).Analyze(context.Background(), renameRepo())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "rename-demo", res.Repository)
	assert.Empty(t, res.Diagnostics)

	welcomer := lineage.FileLoc(1, 0)
	tree, ok := res.TreeOf(welcomer)
	require.True(t, ok)
	assert.Equal(t, []lineage.Location{welcomer, lineage.FileLoc(0, 0)}, tree.Nodes)

	decl := lineage.DeclLoc(welcomer, 0)
	method := lineage.MethodLoc(decl, 0)
	history := res.History(method)
	require.Len(t, history, 2)
	assert.Equal(t, models.ChangeModified, history[0].Change)
	assert.Equal(t, models.ChangeAdded, history[1].Change)

	field, ok := res.Node(lineage.FieldLoc(decl, 0))
	require.True(t, ok)
	assert.Equal(t, models.ChangeUnchanged, field.Change)

	declNode, _ := res.Node(decl)
	assert.Equal(t, lineage.EditModified, declNode.Script(revision.First).Summary())

	assert.Equal(t, Summary{
		Revisions:    2,
		Contributors: 2,
		Versions:     map[string]int{"file": 3, "declaration": 2, "method": 2, "field": 2},
		Trees:        map[string]int{"file": 2, "declaration": 1, "method": 1, "field": 1},
		Dropped:      map[string]int{"file": 0, "declaration": 0, "method": 0, "field": 0},
		Bonds:        1,
		Edits:        res.Summary.Edits,
	}, res.Summary)
}

func TestAnalyzeFilteredBondDropsRenamedLineage(t *testing.T) {
	res, err := NewAnalyzer(nil, Options{BondKinds: []string{"Move Class"}}, nil).
		Analyze(context.Background(), renameRepo())
	require.NoError(t, err)

	_, ok := res.TreeOf(lineage.FileLoc(1, 0))
	assert.False(t, ok)
	assert.Equal(t, 1, res.Summary.Dropped["file"])
	assert.Equal(t, 1, res.Summary.Dropped["declaration"])
	// the file, its class, and the class's method and field
	assert.Equal(t, 4, res.DiagnosticCounts()["BROKEN_LINEAGE"])
	assert.Zero(t, res.Summary.Unresolved)
}

func TestAnalyzeInconsistentHistoryFails(t *testing.T) {
	repo := &models.Repository{Name: "bad", Revisions: []models.Revision{
		{Position: 0, ID: "x0", Parents: []int{1}},
	}}
	_, err := NewAnalyzer(nil, Options{}, nil).Analyze(context.Background(), repo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInconsistentHistory))
}

func TestAnalyzeStrictDuplicateClaimFails(t *testing.T) {
	repo := &models.Repository{Name: "dup", Revisions: []models.Revision{
		{Position: 0, ID: "d0", Files: []models.FileChange{
			{Kind: models.ChangeAdded, Path: "A.txt"},
			{Kind: models.ChangeAdded, Path: "A.txt"},
		}},
	}}

	_, err := NewAnalyzer(nil, Options{Strict: true}, nil).Analyze(context.Background(), repo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateClaim))

	res, err := NewAnalyzer(nil, Options{}, nil).Analyze(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DiagnosticCounts()["DUPLICATE_CLAIM"])
}

func TestBatchIsolatesFailures(t *testing.T) {
	repos := []*models.Repository{renameRepo()}
	for i := 0; i < 3; i++ {
		repos = append(repos, &models.Repository{
			Name: fmt.Sprintf("linear-%d", i),
			Revisions: []models.Revision{
				{Position: 0, ID: "a", Author: "x", Files: []models.FileChange{{Kind: models.ChangeAdded, Path: "A"}}},
				{Position: 1, ID: "b", Author: "y", Parents: []int{0}, Files: []models.FileChange{{Kind: models.ChangeModified, Path: "A"}}},
			},
		})
	}
	repos = append(repos, &models.Repository{Name: "bad", Revisions: []models.Revision{{Position: 3, ID: "z"}}})

	out := NewAnalyzer(nil, Options{}, nil).Batch(context.Background(), repos, 2)
	require.Len(t, out.Results, 4)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "bad", out.Failures[0].Repository)
	assert.True(t, errors.Is(out.Failures[0].Err, errors.ErrInconsistentHistory))

	assert.Equal(t, "rename-demo", out.Results[0].Repository)
	seen := make(map[string]bool)
	for _, r := range out.Results {
		assert.False(t, seen[r.RunID], "run ids are unique")
		seen[r.RunID] = true
	}
}

func TestBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewAnalyzer(nil, Options{}, nil).Batch(ctx, []*models.Repository{renameRepo()}, 4)
	assert.Empty(t, out.Results)
	require.Len(t, out.Failures, 1)
	assert.ErrorIs(t, out.Failures[0].Err, context.Canceled)
}
