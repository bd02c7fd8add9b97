package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/term"

	"github.com/rohankatakam/codelineage/internal/analysis"
)

// useJSON reports whether output should be JSON. Auto picks JSON when stdout
// is not a terminal.
func useJSON() (bool, error) {
	switch outputFormat {
	case "json":
		return true, nil
	case "text":
		return false, nil
	case "auto", "":
		return !term.IsTerminal(int(os.Stdout.Fd())), nil
	}
	return false, fmt.Errorf("unknown output format %q (want auto, text or json)", outputFormat)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report is what analyze and batch print per repository
type report struct {
	Repository  string           `json:"repository"`
	RunID       string           `json:"run_id"`
	Cached      bool             `json:"cached"`
	DurationMS  int64            `json:"duration_ms"`
	Summary     analysis.Summary `json:"summary"`
	Diagnostics map[string]int   `json:"diagnostics,omitempty"`
}

func newReport(res *analysis.Result) report {
	return report{
		Repository:  res.Repository,
		RunID:       res.RunID,
		DurationMS:  res.Duration.Milliseconds(),
		Summary:     res.Summary,
		Diagnostics: res.DiagnosticCounts(),
	}
}

var kindOrder = []string{"file", "declaration", "method", "field"}

func printReport(w io.Writer, r report) {
	header := fmt.Sprintf("%s  run %s", r.Repository, r.RunID)
	if r.Cached {
		header += "  (cached)"
	}
	fmt.Fprintln(w, header)

	s := r.Summary
	fmt.Fprintf(w, "  revisions %d (%d merges), contributors %d\n", s.Revisions, s.Merges, s.Contributors)
	fmt.Fprintf(w, "  %-12s %9s %7s %8s\n", "kind", "versions", "trees", "dropped")
	for _, k := range kindOrder {
		fmt.Fprintf(w, "  %-12s %9d %7d %8d\n", k, s.Versions[k], s.Trees[k], s.Dropped[k])
	}
	fmt.Fprintf(w, "  bonds %d, unresolved %d\n", s.Bonds, s.Unresolved)
	fmt.Fprintf(w, "  edits: %d scripts, %d added, %d removed, %d modified, %d unchanged\n",
		s.Edits.Scripts, s.Edits.Added, s.Edits.Removed, s.Edits.Modified, s.Edits.Unchanged)

	if len(r.Diagnostics) > 0 {
		names := make([]string, 0, len(r.Diagnostics))
		for name := range r.Diagnostics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprint(w, "  diagnostics:")
		for _, name := range names {
			fmt.Fprintf(w, " %s=%d", name, r.Diagnostics[name])
		}
		fmt.Fprintln(w)
	}
}
