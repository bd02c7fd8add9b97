package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codelineage/internal/analysis"
	"github.com/rohankatakam/codelineage/internal/config"
	"github.com/rohankatakam/codelineage/internal/logging"
)

func sampleResult() *analysis.Result {
	return &analysis.Result{
		RunID:      "run-1",
		Repository: "demo",
		Summary: analysis.Summary{
			Revisions: 3,
			Bonds:     1,
			Trees:     map[string]int{"file": 2},
		},
	}
}

func open(t *testing.T, dir string, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(config.CacheConfig{Enabled: true, Directory: dir, TTL: ttl}, logging.Discard())
	require.NoError(t, err)
	return m
}

func TestKey(t *testing.T) {
	base := Key("abc", "demo", analysis.Options{BondKinds: []string{"Rename Class", "Move Class"}})

	assert.Equal(t, base, Key("abc", "demo", analysis.Options{BondKinds: []string{" move class", "RENAME CLASS"}}))
	assert.NotEqual(t, base, Key("abd", "demo", analysis.Options{BondKinds: []string{"Rename Class", "Move Class"}}))
	assert.NotEqual(t, base, Key("abc", "other", analysis.Options{BondKinds: []string{"Rename Class", "Move Class"}}))
	assert.NotEqual(t, base, Key("abc", "demo", analysis.Options{Strict: true, BondKinds: []string{"Rename Class", "Move Class"}}))
	assert.NotEqual(t, Key("abc", "demo", analysis.Options{}), Key("abc", "demo", analysis.Options{SearchMergeParents: true}))
}

func TestPutGetSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m := open(t, dir, time.Hour)
	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Put(ctx, "k", sampleResult()))
	entry, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-1", entry.RunID)
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, m.Stats())
	require.NoError(t, m.Close())

	m = open(t, dir, time.Hour)
	defer m.Close()
	entry, found, err = m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, entry.Summary.Trees["file"])
	assert.Equal(t, 1, entry.Summary.Bonds)
}

func TestExpiredEntriesAreDropped(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m := open(t, dir, time.Hour)
	require.NoError(t, m.Put(ctx, "k", sampleResult()))
	require.NoError(t, m.Close())

	m = open(t, dir, time.Hour)
	defer m.Close()
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	// the expired entry is gone from disk too
	m.now = time.Now
	_, found, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClearAndInvalidate(t *testing.T) {
	ctx := context.Background()
	m := open(t, t.TempDir(), 0)
	defer m.Close()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(ctx, k, sampleResult()))
	}
	require.NoError(t, m.Invalidate(ctx, "a"))
	_, found, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := m.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err = m.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, found)
}
