package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/diff"
	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/logging"
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/refactoring"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Options configures one repository analysis
type Options struct {
	Strict             bool
	BondKinds          []string
	SearchMergeParents bool
}

// Analyzer runs the lineage pipeline for one repository at a time
type Analyzer struct {
	oracle refactoring.Oracle
	opts   Options
	logger *logrus.Logger
}

// NewAnalyzer creates an analyzer. A nil oracle falls back to the records
// embedded in the revision stream.
func NewAnalyzer(oracle refactoring.Oracle, opts Options, logger *logrus.Logger) *Analyzer {
	if oracle == nil {
		oracle = refactoring.EmbeddedOracle{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Analyzer{oracle: oracle, opts: opts, logger: logger}
}

// Analyze indexes the repository history, builds every forest, resolves
// refactoring bonds and attaches edit scripts. Only inconsistent history,
// strict-mode duplicate claims, oracle failures and cancellation fail the
// analysis; everything else is reported as diagnostics on the result.
func (a *Analyzer) Analyze(ctx context.Context, repo *models.Repository) (*Result, error) {
	start := time.Now()
	log := a.logger.WithField("repo", repo.Name)
	log.WithField("revisions", len(repo.Revisions)).Info("Starting lineage analysis")

	// Phase 1: index history
	idx, err := revision.Build(repo.Revisions)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", repo.Name, err)
	}

	store, err := lineage.NewStore(idx, lineage.Options{Strict: a.opts.Strict, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", repo.Name, err)
	}

	// Phase 2: file lineage, repaired by refactoring bonds, then pruned
	files, err := lineage.Build(store, lineage.NewFileSpec(store))
	if err != nil {
		return nil, fmt.Errorf("file lineage %s: %w", repo.Name, err)
	}
	resolver := refactoring.NewResolver(files, a.oracle, refactoring.Options{
		Kinds:              a.opts.BondKinds,
		SearchMergeParents: a.opts.SearchMergeParents,
	})
	report, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("refactoring bonds %s: %w", repo.Name, err)
	}
	files.Prune()

	// Phase 3: nested lineage inside the settled file lineage
	forests := map[lineage.Kind]*lineage.Forest{lineage.KindFile: files}
	decls, err := a.nested(ctx, store, lineage.NewDeclarationSpec(files))
	if err != nil {
		return nil, err
	}
	forests[lineage.KindDeclaration] = decls
	for _, spec := range []*lineage.NestedSpec{lineage.NewMethodSpec(decls), lineage.NewFieldSpec(decls)} {
		f, err := a.nested(ctx, store, spec)
		if err != nil {
			return nil, err
		}
		forests[spec.Kind()] = f
	}

	// Phase 4: structural diffs
	edits := diff.NewComputer(store).AttachAll()

	result := &Result{
		RunID:      uuid.New().String(),
		Repository: repo.Name,
		StartedAt:  start,
		Store:      store,
		Forests:    forests,
		Bonds:      report,
	}
	result.Diagnostics = append(result.Diagnostics, store.Diagnostics()...)
	for _, kind := range lineage.Kinds {
		result.Diagnostics = append(result.Diagnostics, forests[kind].Diagnostics()...)
	}
	for _, u := range report.Unresolved {
		result.Diagnostics = append(result.Diagnostics,
			errors.UnresolvedBondf("%s at %s: %s", u.Record.Kind, u.RevisionID, u.Reason).
				WithContext("revision", u.RevisionID))
	}
	result.Duration = time.Since(start)
	result.Summary = summarize(idx, result, edits)

	log.WithFields(logrus.Fields{
		"run_id":      result.RunID,
		"duration":    result.Duration.String(),
		"file_trees":  result.Summary.Trees[lineage.KindFile.String()],
		"bonds":       result.Summary.Bonds,
		"unresolved":  result.Summary.Unresolved,
		"diagnostics": len(result.Diagnostics),
	}).Info("Lineage analysis completed")

	return result, nil
}

func (a *Analyzer) nested(ctx context.Context, store *lineage.Store, spec *lineage.NestedSpec) (*lineage.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := lineage.Build(store, spec)
	if err != nil {
		return nil, fmt.Errorf("%s lineage: %w", spec.Kind(), err)
	}
	f.Prune()
	return f, nil
}

func summarize(idx *revision.Index, r *Result, edits diff.Stats) Summary {
	s := Summary{
		Revisions:  idx.Len(),
		Versions:   make(map[string]int),
		Trees:      make(map[string]int),
		Dropped:    make(map[string]int),
		Bonds:      len(r.Bonds.Bonds),
		Unresolved: len(r.Bonds.Unresolved),
		Edits:      edits,
	}
	if newest := idx.ByPosition(idx.Len() - 1); newest != nil {
		s.Contributors = newest.Contributors()
	}
	for _, rn := range idx.Oldest() {
		if rn.IsMerge() {
			s.Merges++
		}
	}
	for _, kind := range lineage.Kinds {
		f := r.Forests[kind]
		s.Versions[kind.String()] = r.Store.Len(kind)
		s.Trees[kind.String()] = f.Len()
		s.Dropped[kind.String()] = len(f.Dropped())
	}
	return s
}
