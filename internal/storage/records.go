package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rohankatakam/codelineage/internal/analysis"
	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Run is one persisted analysis
type Run struct {
	ID          string    `db:"id" json:"id"`
	Repository  string    `db:"repository" json:"repository"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	DurationMS  int64     `db:"duration_ms" json:"duration_ms"`
	Revisions   int       `db:"revisions" json:"revisions"`
	Bonds       int       `db:"bonds" json:"bonds"`
	Unresolved  int       `db:"unresolved" json:"unresolved"`
	Diagnostics int       `db:"diagnostics" json:"diagnostics"`
	SummaryJSON string    `db:"summary" json:"-"`
}

// Summary decodes the stored summary
func (r *Run) Summary() (analysis.Summary, error) {
	var s analysis.Summary
	err := json.Unmarshal([]byte(r.SummaryJSON), &s)
	return s, err
}

// NodeRecord is one entity version
type NodeRecord struct {
	RunID      string         `db:"run_id" json:"-"`
	Location   string         `db:"location" json:"location"`
	Kind       string         `db:"kind" json:"kind"`
	Revision   int            `db:"revision" json:"revision"`
	RevisionID string         `db:"revision_id" json:"revision_id"`
	Change     string         `db:"change_kind" json:"change"`
	Key        string         `db:"entity_key" json:"key"`
	Path       string         `db:"path" json:"path"`
	TreeID     sql.NullInt64  `db:"tree_id" json:"-"`
	TreePos    sql.NullInt64  `db:"tree_pos" json:"-"`
	Parent     sql.NullString `db:"parent" json:"-"`
	SideParent sql.NullString `db:"side_parent" json:"-"`
	Summary    string         `db:"edit_summary" json:"edit_summary"`
}

// TreeRecord is one lineage tree
type TreeRecord struct {
	RunID  string `db:"run_id" json:"-"`
	Kind   string `db:"kind" json:"kind"`
	TreeID int    `db:"tree_id" json:"tree_id"`
	Head   string `db:"head" json:"head"`
	Tail   string `db:"tail" json:"tail"`
	Size   int    `db:"size" json:"size"`
	Bonded bool   `db:"bonded" json:"bonded"`
}

// BondRecord is one applied refactoring bond
type BondRecord struct {
	RunID       string `db:"run_id" json:"-"`
	Seq         int    `db:"seq" json:"-"`
	Source      string `db:"source" json:"source"`
	Target      string `db:"target" json:"target"`
	Kind        string `db:"kind" json:"kind"`
	Revision    int    `db:"revision" json:"revision"`
	Outcome     string `db:"outcome" json:"outcome"`
	Description string `db:"description" json:"description,omitempty"`
}

// EditRecord is one edit of a node's script
type EditRecord struct {
	RunID    string         `db:"run_id" json:"-"`
	Location string         `db:"location" json:"location"`
	Slot     int            `db:"slot" json:"slot"`
	Seq      int            `db:"seq" json:"-"`
	Kind     string         `db:"kind" json:"kind"`
	Entity   string         `db:"entity" json:"entity"`
	Key      string         `db:"entity_key" json:"key"`
	Child    sql.NullString `db:"child" json:"-"`
	Parent   sql.NullString `db:"parent" json:"-"`
}

// UnresolvedRecord is one refactoring record that could not be stitched
type UnresolvedRecord struct {
	RunID      string `db:"run_id" json:"-"`
	Seq        int    `db:"seq" json:"-"`
	Revision   int    `db:"revision" json:"revision"`
	RevisionID string `db:"revision_id" json:"revision_id"`
	Kind       string `db:"kind" json:"kind"`
	Before     string `db:"before_path" json:"before"`
	After      string `db:"after_path" json:"after"`
	Reason     string `db:"reason" json:"reason"`
}

// snapshot flattens a result into rows
type snapshot struct {
	run        *Run
	nodes      []*NodeRecord
	trees      []*TreeRecord
	bonds      []*BondRecord
	edits      []*EditRecord
	unresolved []*UnresolvedRecord
}

func newSnapshot(res *analysis.Result) (*snapshot, error) {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{run: &Run{
		ID:          res.RunID,
		Repository:  res.Repository,
		StartedAt:   res.StartedAt.UTC(),
		DurationMS:  res.Duration.Milliseconds(),
		Revisions:   res.Summary.Revisions,
		Bonds:       res.Summary.Bonds,
		Unresolved:  res.Summary.Unresolved,
		Diagnostics: len(res.Diagnostics),
		SummaryJSON: string(summary),
	}}

	idx := res.Store.Index()
	for _, kind := range lineage.Kinds {
		f := res.Forest(kind)
		pos := make(map[lineage.Location]int)
		for _, t := range f.Trees() {
			for i, loc := range t.Nodes {
				pos[loc] = i
			}
			snap.trees = append(snap.trees, &TreeRecord{
				RunID:  res.RunID,
				Kind:   kind.String(),
				TreeID: t.ID,
				Head:   t.Head().String(),
				Tail:   t.Tail().String(),
				Size:   t.Len(),
				Bonded: t.Bonded,
			})
		}

		for _, n := range res.Store.Nodes(kind) {
			rec := &NodeRecord{
				RunID:    res.RunID,
				Location: n.Loc.String(),
				Kind:     kind.String(),
				Revision: n.Loc.Revision,
				Change:   string(n.Change),
				Key:      n.Key,
				Path:     n.Path,
			}
			if rn := idx.ByPosition(n.Loc.Revision); rn != nil {
				rec.RevisionID = rn.ID()
			}
			if t, ok := f.TreeOf(n.Loc); ok {
				rec.TreeID = sql.NullInt64{Int64: int64(t.ID), Valid: true}
				rec.TreePos = sql.NullInt64{Int64: int64(pos[n.Loc]), Valid: true}
			}
			if p, ok := n.Parent(revision.First); ok {
				rec.Parent = sql.NullString{String: p.String(), Valid: true}
			}
			if p, ok := n.Parent(revision.Second); ok {
				rec.SideParent = sql.NullString{String: p.String(), Valid: true}
			}
			if s := n.Script(revision.First); s != nil {
				rec.Summary = string(s.Summary())
			}
			snap.nodes = append(snap.nodes, rec)

			for _, slot := range []revision.Slot{revision.First, revision.Second} {
				s := n.Script(slot)
				if s == nil {
					continue
				}
				for i, e := range s.Edits {
					er := &EditRecord{
						RunID:    res.RunID,
						Location: n.Loc.String(),
						Slot:     int(slot),
						Seq:      i,
						Kind:     string(e.Kind),
						Entity:   e.Entity.String(),
						Key:      e.Key,
					}
					if e.HasChild {
						er.Child = sql.NullString{String: e.Child.String(), Valid: true}
					}
					if e.HasParent {
						er.Parent = sql.NullString{String: e.Parent.String(), Valid: true}
					}
					snap.edits = append(snap.edits, er)
				}
			}
		}
	}

	forest := res.Forest(lineage.KindFile)
	for i, b := range forest.Bonds() {
		snap.bonds = append(snap.bonds, &BondRecord{
			RunID:       res.RunID,
			Seq:         i,
			Source:      b.Source.String(),
			Target:      b.Target.String(),
			Kind:        b.Kind,
			Revision:    b.Revision,
			Outcome:     string(b.Outcome),
			Description: b.Description,
		})
	}
	if res.Bonds == nil {
		return snap, nil
	}
	for i, u := range res.Bonds.Unresolved {
		snap.unresolved = append(snap.unresolved, &UnresolvedRecord{
			RunID:      res.RunID,
			Seq:        i,
			Revision:   u.Revision,
			RevisionID: u.RevisionID,
			Kind:       u.Record.Kind,
			Before:     u.Record.BeforePath(),
			After:      u.Record.AfterPath(),
			Reason:     u.Reason,
		})
	}
	return snap, nil
}
