package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codelineage/internal/storage"
)

const testdata = "../../internal/ingest/testdata"

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommandsEndToEnd(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"STORAGE_TYPE", "POSTGRES_DSN", "LOCAL_DB_PATH", "CACHE_DIRECTORY", "NEO4J_URI", "LOG_LEVEL", "LOG_FILE"} {
		t.Setenv(key, "")
	}

	cfgPath := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  type: sqlite
  local_path: `+filepath.Join(home, "runs.db")+`
cache:
  enabled: true
  directory: `+filepath.Join(home, "cache")+`
  ttl: 1h
logging:
  level: error
`), 0644))
	base := []string{"--config", cfgPath, "-o", "json"}
	run := func(args ...string) string {
		return execute(t, append(args, base...)...)
	}

	var reports []report
	require.NoError(t, json.Unmarshal([]byte(run("analyze", filepath.Join(testdata, "rename.yaml"))), &reports))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Cached)
	assert.Equal(t, "rename-demo", reports[0].Repository)
	assert.Equal(t, 1, reports[0].Summary.Bonds)

	reports = nil
	require.NoError(t, json.Unmarshal([]byte(run("analyze", filepath.Join(testdata, "rename.yaml"))), &reports))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Cached)

	var runs []storage.Run
	require.NoError(t, json.Unmarshal([]byte(run("runs")), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, reports[0].RunID, runs[0].ID)

	var versions []map[string]any
	require.NoError(t, json.Unmarshal([]byte(run("show", runs[0].ID, "1:0/d0/m0")), &versions))
	require.Len(t, versions, 2)
	assert.Equal(t, "1:0/d0/m0", versions[0]["location"])
	assert.Equal(t, "MODIFIED", versions[0]["change"])
	assert.Equal(t, "0:0/d0/m0", versions[1]["location"])

	var batch struct {
		Reports  []report `json:"reports"`
		Failures []any    `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(run("batch", testdata, "--no-store")), &batch))
	assert.Len(t, batch.Reports, 4)
	assert.Empty(t, batch.Failures)

	out := run("config", "validate", "--context", "analyze")
	assert.Contains(t, out, "Configuration is valid")

	out = run("cache", "clear")
	assert.Contains(t, out, "Removed 1 cached summaries")

	var detail struct {
		Trees []storage.TreeRecord `json:"trees"`
	}
	require.NoError(t, json.Unmarshal([]byte(run("show", runs[0].ID, "--kind", "method")), &detail))
	require.NotEmpty(t, detail.Trees)
	for _, tr := range detail.Trees {
		assert.Equal(t, "method", tr.Kind)
	}

	t.Cleanup(func() { showKind = "file" })
	rootCmd.SetArgs(append([]string{"show", runs[0].ID, "--kind", "class"}, base...))
	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown entity kind "class"`)
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	r := report{Repository: "demo", RunID: "r1", Cached: true, Diagnostics: map[string]int{"BROKEN_LINEAGE": 2}}
	r.Summary.Versions = map[string]int{"file": 3}
	printReport(&out, r)

	s := out.String()
	assert.Contains(t, s, "demo  run r1  (cached)")
	assert.Contains(t, s, "diagnostics: BROKEN_LINEAGE=2")
}
