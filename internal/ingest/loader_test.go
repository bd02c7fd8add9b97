package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/models"
)

func TestLoadYAMLRepository(t *testing.T) {
	in, err := Load("testdata/rename.yaml")
	require.NoError(t, err)
	require.Len(t, in.Repositories, 1)
	assert.Len(t, in.Digest, 64)

	repo := in.Repositories[0]
	assert.Equal(t, "rename-demo", repo.Name)
	require.Len(t, repo.Revisions, 2)

	r0, r1 := repo.Revisions[0], repo.Revisions[1]
	assert.Equal(t, 0, r0.Position)
	assert.Equal(t, 1, r1.Position)
	assert.Equal(t, []int{0}, r1.Parents)
	assert.Equal(t, 2024, r0.Timestamp.Year())

	require.Len(t, r0.Files, 1)
	assert.Equal(t, models.ChangeAdded, r0.Files[0].Kind)
	require.NotNil(t, r0.Files[0].Tree)
	decl := r0.Files[0].Tree.Declarations[0]
	assert.Equal(t, "demo.Greeter", decl.QualifiedName)
	assert.Equal(t, "greet(String)", decl.Methods[0].Key())
	assert.Equal(t, "prefix", decl.Fields[0].Name)

	require.Len(t, r1.Refactorings, 1)
	assert.Equal(t, "src/Greeter.java", r1.Refactorings[0].BeforePath())
	assert.Equal(t, "src/Welcomer.java", r1.Refactorings[0].AfterPath())
	assert.Equal(t, models.ChangeModified, r1.Files[0].Kind)
}

func TestLoadJSONBatch(t *testing.T) {
	in, err := Load("testdata/batch.json")
	require.NoError(t, err)
	require.Len(t, in.Repositories, 2)

	assert.Equal(t, "linear", in.Repositories[0].Name)
	assert.Equal(t, 1, in.Repositories[0].Revisions[1].Position)

	merge := in.Repositories[1]
	assert.Equal(t, []int{0, 1}, merge.Revisions[2].Parents)
	assert.True(t, merge.Revisions[2].IsMerge())
	assert.Equal(t, models.ChangeModified, merge.Revisions[2].Files[0].Kind)
}

func TestLoadDir(t *testing.T) {
	inputs, err := LoadDir("testdata")
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Equal(t, "testdata/batch.json", inputs[0].Path)
	assert.Equal(t, "broken", inputs[1].Repositories[0].Name)
}

func TestDecodeRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", "revisions:\n  - id: x\n    files:\n      - {kind: Z, path: A.txt}\n"},
		{"unchanged kind", "revisions:\n  - id: x\n    files:\n      - {kind: UNCHANGED, path: A.txt}\n"},
		{"missing path", "revisions:\n  - id: x\n    files:\n      - {kind: A}\n"},
		{"malformed", "revisions: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}

func TestDigestTracksContent(t *testing.T) {
	a, err := Decode(strings.NewReader("name: a\n"))
	require.NoError(t, err)
	b, err := Decode(strings.NewReader("name: b\n"))
	require.NoError(t, err)
	c, err := Decode(strings.NewReader("name: a\n"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Digest, b.Digest)
	assert.Equal(t, a.Digest, c.Digest)
}

func TestLoadRefactorings(t *testing.T) {
	records, err := LoadRefactorings("testdata/oracle/refactorings.yaml")
	require.NoError(t, err)
	require.Len(t, records["c1"], 1)
	assert.Equal(t, "Rename Class", records["c1"][0].Kind)
	assert.Equal(t, "src/Welcomer.java", records["c1"][0].AfterPath())

	_, err = LoadRefactorings("testdata/oracle/missing.yaml")
	assert.Error(t, err)
}
