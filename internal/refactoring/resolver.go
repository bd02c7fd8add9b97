package refactoring

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Options configures bond resolution
type Options struct {
	// Kinds restricts bonds to these refactoring kinds (case-insensitive).
	// Empty accepts every kind.
	Kinds []string
	// SearchMergeParents extends the pre-image search over merge parents
	// when the first-parent chain has no record for the path
	SearchMergeParents bool
}

// Unresolved is one refactoring record that could not be stitched
type Unresolved struct {
	Record     models.Refactoring `json:"record"`
	Revision   int                `json:"revision"`
	RevisionID string             `json:"revision_id"`
	Reason     string             `json:"reason"`
}

// Report summarises one resolver run
type Report struct {
	Bonds      []lineage.Bond `json:"bonds"`
	Unresolved []Unresolved   `json:"unresolved"`
	Filtered   int            `json:"filtered"`
}

// Resolver applies oracle records to a file forest
type Resolver struct {
	forest *lineage.Forest
	files  *lineage.FileSpec
	oracle Oracle
	opts   Options
	kinds  map[string]bool
	logger logrus.FieldLogger
}

// NewResolver creates a resolver over an unpruned file forest
func NewResolver(forest *lineage.Forest, oracle Oracle, opts Options) *Resolver {
	if oracle == nil {
		oracle = NopOracle{}
	}
	kinds := make(map[string]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kinds[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return &Resolver{
		forest: forest,
		files:  lineage.NewFileSpec(forest.Store()),
		oracle: oracle,
		opts:   opts,
		kinds:  kinds,
		logger: forest.Store().Logger().WithField("component", "refactoring"),
	}
}

// Resolve walks revisions oldest first so earlier splices are visible to
// later lookups. Records within a revision are applied in a canonical order.
// Only oracle failures and cancellation are returned as errors.
func (r *Resolver) Resolve(ctx context.Context) (*Report, error) {
	report := &Report{}
	idx := r.forest.Store().Index()

	for _, rn := range idx.Oldest() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := r.oracle.Refactorings(ctx, *rn.Revision())
		if err != nil {
			return nil, errors.ExternalErrorf(err, "refactoring oracle failed at revision %s", rn.ID()).
				WithContext("revision", rn.ID())
		}
		records = r.filter(records, report)
		sortRecords(records)

		for _, rec := range records {
			if err := r.apply(rn, rec, report); err != nil {
				return nil, err
			}
		}
	}

	r.logger.WithFields(logrus.Fields{
		"bonds":      len(report.Bonds),
		"unresolved": len(report.Unresolved),
		"filtered":   report.Filtered,
	}).Debug("refactoring bonds resolved")
	return report, nil
}

func (r *Resolver) filter(records []models.Refactoring, report *Report) []models.Refactoring {
	out := make([]models.Refactoring, 0, len(records))
	for _, rec := range records {
		if len(r.kinds) > 0 && !r.kinds[strings.ToLower(rec.Kind)] {
			report.Filtered++
			continue
		}
		out = append(out, rec)
	}
	return out
}

func sortRecords(records []models.Refactoring) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.BeforePath() != b.BeforePath() {
			return a.BeforePath() < b.BeforePath()
		}
		if a.AfterPath() != b.AfterPath() {
			return a.AfterPath() < b.AfterPath()
		}
		return a.Description < b.Description
	})
}

func (r *Resolver) apply(rn *revision.Node, rec models.Refactoring, report *Report) error {
	unresolved := func(reason string) {
		report.Unresolved = append(report.Unresolved, Unresolved{
			Record:     rec,
			Revision:   rn.Position(),
			RevisionID: rn.ID(),
			Reason:     reason,
		})
		r.logger.WithFields(logrus.Fields{
			"revision": rn.ID(),
			"kind":     rec.Kind,
			"reason":   reason,
		}).Debug("unresolved refactoring bond")
	}

	before, after := rec.BeforePath(), rec.AfterPath()
	if before == "" || after == "" {
		unresolved("record has no before or after location")
		return nil
	}

	pre := r.PreImage(rn, before)
	if pre == nil {
		unresolved("no version of " + before + " at or before revision " + rn.ID())
		return nil
	}
	post := r.PostImage(rn, after)
	if post == nil {
		unresolved("no version of " + after + " at revision " + rn.ID())
		return nil
	}

	b, err := r.forest.Bond(pre.Loc, post.Loc, rec.Kind, rn.Position(), rec.Description)
	if err != nil {
		if errors.Is(err, errors.ErrUnresolvedBond) {
			unresolved(err.Error())
			return nil
		}
		return err
	}
	report.Bonds = append(report.Bonds, b)
	return nil
}

// PreImage returns the version of path as of the last revision at or
// before rn that touched it
func (r *Resolver) PreImage(rn *revision.Node, path string) *lineage.Node {
	store := r.forest.Store()
	if n, ok := store.FileAt(rn.Position(), path); ok && n.Change == models.ChangeAdded {
		return n
	}

	idx := store.Index()
	if found := r.files.LastTouch(idx.Parent(rn, revision.First), path); found != nil {
		return found
	}
	if !r.opts.SearchMergeParents || !rn.IsMerge() {
		return nil
	}

	var found *lineage.Node
	idx.WalkAncestors(rn, func(cur *revision.Node) bool {
		if cur == rn {
			return true
		}
		if n, ok := store.FileAt(cur.Position(), path); ok && n.Change.HasContent() {
			found = n
			return false
		}
		return true
	})
	return found
}

// PostImage returns the version of path recorded exactly at rn
func (r *Resolver) PostImage(rn *revision.Node, path string) *lineage.Node {
	n, ok := r.forest.Store().FileAt(rn.Position(), path)
	if !ok || !n.Change.HasContent() {
		return nil
	}
	return n
}
