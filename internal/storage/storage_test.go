package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codelineage/internal/analysis"
	"github.com/rohankatakam/codelineage/internal/config"
	"github.com/rohankatakam/codelineage/internal/ingest"
	"github.com/rohankatakam/codelineage/internal/logging"
)

func analyzeFixture(t *testing.T) *analysis.Result {
	t.Helper()
	in, err := ingest.Load(filepath.Join("..", "ingest", "testdata", "rename.yaml"))
	require.NoError(t, err)
	require.Len(t, in.Repositories, 1)

	res, err := analysis.NewAnalyzer(nil, analysis.Options{}, nil).Analyze(context.Background(), in.Repositories[0])
	require.NoError(t, err)
	return res
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	res := analyzeFixture(t)

	require.NoError(t, store.SaveRun(ctx, res))
	// saving again replaces rather than duplicates
	require.NoError(t, store.SaveRun(ctx, res))

	run, err := store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "rename-demo", run.Repository)
	assert.Equal(t, 2, run.Revisions)
	assert.Equal(t, 1, run.Bonds)
	assert.Zero(t, run.Unresolved)
	assert.WithinDuration(t, res.StartedAt, run.StartedAt, time.Second)

	summary, err := run.Summary()
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Trees, summary.Trees)

	runs, err := store.ListRuns(ctx, "rename-demo", 10)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, res.RunID, runs[0].ID)

	runs, err = store.ListRuns(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	history, err := store.GetLineage(ctx, res.RunID, "0:0")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "1:0", history[0].Location)
	assert.Equal(t, "src/Welcomer.java", history[0].Path)
	assert.Equal(t, "c1", history[0].RevisionID)
	assert.Equal(t, "0:0", history[0].Parent.String)
	assert.Equal(t, "0:0", history[1].Location)
	assert.False(t, history[1].Parent.Valid)

	trees, err := store.GetTrees(ctx, res.RunID, "file")
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, "1:0", trees[0].Head)
	assert.Equal(t, "0:0", trees[0].Tail)
	assert.True(t, trees[0].Bonded)

	all, err := store.GetTrees(ctx, res.RunID, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	edits, err := store.GetEdits(ctx, res.RunID, "1:0/d0")
	require.NoError(t, err)
	require.Len(t, edits, 2)
	kinds := []string{edits[0].Kind, edits[1].Kind}
	assert.ElementsMatch(t, []string{"MODIFIED", "UNCHANGED"}, kinds)

	bonds, err := store.GetBonds(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, bonds, 1)
	assert.Equal(t, "Rename Class", bonds[0].Kind)
	assert.Equal(t, "spliced", bonds[0].Outcome)

	unresolved, err := store.GetUnresolved(ctx, res.RunID)
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetLineage(ctx, res.RunID, "9:9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreInMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lineage.db")
	store, err := Open(config.StorageConfig{Type: "sqlite", LocalPath: path}, logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
	assert.FileExists(t, path)
}

func TestOpenSelectsBackend(t *testing.T) {
	_, err := Open(config.StorageConfig{Type: "none"}, nil)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(config.StorageConfig{Type: "mongo"}, nil)
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	store, err := NewPostgresStore(dsn, logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}
