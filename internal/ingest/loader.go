// Package ingest decodes materialized revision streams. Documents are YAML,
// and since YAML is a superset of JSON the same decoder reads JSON exports.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/models"
)

// Input is one decoded document
type Input struct {
	Path         string
	Digest       string
	Repositories []*models.Repository
}

// document accepts either a single repository at the top level or a list
// under "repositories"
type document struct {
	models.Repository `yaml:",inline"`
	Repositories      []models.Repository `yaml:"repositories,omitempty"`
}

// Load reads and decodes one document from disk
func Load(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read %s", path)
	}
	in, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	in.Path = path
	if len(in.Repositories) == 1 && in.Repositories[0].Name == "" {
		in.Repositories[0].Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return in, nil
}

// LoadDir loads every .yaml, .yml and .json document in dir, sorted by name
func LoadDir(dir string) ([]*Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to list %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	inputs := make([]*Input, 0, len(names))
	for _, name := range names {
		in, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// Decode reads one document and normalizes change kinds and positions
func Decode(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read revision stream")
	}
	sum := sha256.Sum256(data)

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ValidationErrorf("invalid revision stream: %v", err)
	}

	repos := doc.Repositories
	if len(repos) == 0 {
		repos = []models.Repository{doc.Repository}
	}

	in := &Input{Digest: hex.EncodeToString(sum[:])}
	for i := range repos {
		repo := repos[i]
		if err := normalize(&repo); err != nil {
			return nil, err
		}
		in.Repositories = append(in.Repositories, &repo)
	}
	return in, nil
}

func normalize(repo *models.Repository) error {
	// Streams may omit positions entirely; they are then implied by order.
	implied := true
	for _, rev := range repo.Revisions {
		if rev.Position != 0 {
			implied = false
			break
		}
	}
	if implied {
		for i := range repo.Revisions {
			repo.Revisions[i].Position = i
		}
	}

	for i := range repo.Revisions {
		rev := &repo.Revisions[i]
		for j := range rev.Files {
			fc := &rev.Files[j]
			kind, err := models.ParseChangeKind(string(fc.Kind))
			if err != nil {
				return errors.ValidationErrorf("repository %q revision %q file %q: %v", repo.Name, rev.ID, fc.Path, err).
					WithContext("revision", rev.ID)
			}
			if kind == models.ChangeUnchanged {
				return errors.ValidationErrorf("repository %q revision %q file %q: UNCHANGED is not a file record kind", repo.Name, rev.ID, fc.Path)
			}
			fc.Kind = kind
			if fc.Path == "" {
				return errors.ValidationErrorf("repository %q revision %q has a file record without path", repo.Name, rev.ID)
			}
		}
	}
	return nil
}

// LoadRefactorings reads detector output: refactoring records keyed by
// revision identifier
func LoadRefactorings(path string) (map[string][]models.Refactoring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read %s", path)
	}
	var records map[string][]models.Refactoring
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, errors.ValidationErrorf("invalid refactoring records in %s: %v", path, err)
	}
	for rev, list := range records {
		for _, r := range list {
			if strings.TrimSpace(r.Kind) == "" {
				return nil, errors.ValidationErrorf("revision %q has a refactoring record without kind", rev)
			}
		}
	}
	return records, nil
}
