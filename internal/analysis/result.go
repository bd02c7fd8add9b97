package analysis

import (
	"time"

	"github.com/rohankatakam/codelineage/internal/diff"
	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/refactoring"
)

// Result is the outcome of one repository analysis
type Result struct {
	RunID      string
	Repository string
	StartedAt  time.Time
	Duration   time.Duration

	Store       *lineage.Store
	Forests     map[lineage.Kind]*lineage.Forest
	Bonds       *refactoring.Report
	Diagnostics []*errors.Error
	Summary     Summary
}

// Summary holds the counts reported per analysis, keyed by entity kind name
type Summary struct {
	Revisions    int            `json:"revisions"`
	Merges       int            `json:"merges"`
	Contributors int            `json:"contributors"`
	Versions     map[string]int `json:"versions"`
	Trees        map[string]int `json:"trees"`
	Dropped      map[string]int `json:"dropped"`
	Bonds        int            `json:"bonds"`
	Unresolved   int            `json:"unresolved"`
	Edits        diff.Stats     `json:"edits"`
}

// Forest returns the forest of one entity kind
func (r *Result) Forest(kind lineage.Kind) *lineage.Forest {
	return r.Forests[kind]
}

// Node returns the version at loc, whether or not it belongs to a tree
func (r *Result) Node(loc lineage.Location) (*lineage.Node, bool) {
	return r.Store.Node(loc)
}

// TreeOf returns the tree containing loc in the forest of loc's kind
func (r *Result) TreeOf(loc lineage.Location) (*lineage.Tree, bool) {
	f, ok := r.Forests[loc.Kind]
	if !ok {
		return nil, false
	}
	return f.TreeOf(loc)
}

// History returns the tree containing loc from loc back to its oldest version
func (r *Result) History(loc lineage.Location) []*lineage.Node {
	t, ok := r.TreeOf(loc)
	if !ok {
		return nil
	}
	var out []*lineage.Node
	found := false
	for _, l := range t.Nodes {
		if l == loc {
			found = true
		}
		if found {
			out = append(out, r.Store.MustNode(l))
		}
	}
	return out
}

// DiagnosticCounts groups diagnostics by error type name
func (r *Result) DiagnosticCounts() map[string]int {
	counts := make(map[string]int)
	for _, d := range r.Diagnostics {
		counts[errors.TypeName(d.Type)]++
	}
	return counts
}
