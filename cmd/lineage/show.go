package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/storage"
)

var (
	runsRepository string
	runsLimit      int
	showKind       string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored analysis runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var showCmd = &cobra.Command{
	Use:   "show RUN_ID [LOCATION]",
	Short: "Show a stored run, or the lineage of one version",
	Long: `Without LOCATION, show prints the run summary and its trees. With a
LOCATION such as 3:0 (file), 3:0/d1 (declaration), 3:0/d1/m2 (method) or
3:0/d1/f0 (field), it prints that version's tree newest first with the
edit script of each version.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShow,
}

func init() {
	runsCmd.Flags().StringVar(&runsRepository, "repository", "", "only runs of this repository")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	showCmd.Flags().StringVar(&showKind, "kind", "file", "tree kind to list without LOCATION (empty for all)")
}

func requireStore() (storage.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("storage is disabled (storage.type = %q)", cfg.Storage.Type)
	}
	return store, nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	asJSON, err := useJSON()
	if err != nil {
		return err
	}
	store, err := requireStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), runsRepository, runsLimit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), runs)
	}
	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s %s  %d revisions, %d bonds, %d diagnostics\n",
			r.ID, r.Repository, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Revisions, r.Bonds, r.Diagnostics)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	asJSON, err := useJSON()
	if err != nil {
		return err
	}
	store, err := requireStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}

	if len(args) == 1 {
		if showKind != "" {
			if _, err := lineage.ParseKind(showKind); err != nil {
				return err
			}
		}
		summary, err := run.Summary()
		if err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		trees, err := store.GetTrees(ctx, run.ID, showKind)
		if err != nil {
			return err
		}
		unresolved, err := store.GetUnresolved(ctx, run.ID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"run":        run,
				"summary":    summary,
				"trees":      trees,
				"unresolved": unresolved,
			})
		}
		printReport(cmd.OutOrStdout(), report{Repository: run.Repository, RunID: run.ID, Summary: summary})
		for _, t := range trees {
			bonded := ""
			if t.Bonded {
				bonded = " bonded"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s tree %d: %s .. %s (%d versions)%s\n", t.Kind, t.TreeID, t.Head, t.Tail, t.Size, bonded)
		}
		for _, u := range unresolved {
			fmt.Fprintf(cmd.OutOrStdout(), "  unresolved at %s: %s %s -> %s: %s\n", u.RevisionID, u.Kind, u.Before, u.After, u.Reason)
		}
		return nil
	}

	loc, err := lineage.ParseLocation(args[1])
	if err != nil {
		return err
	}
	history, err := store.GetLineage(ctx, run.ID, loc.String())
	if err != nil {
		return fmt.Errorf("location %s: %w", loc, err)
	}

	type version struct {
		*storage.NodeRecord
		Edits []*storage.EditRecord `json:"edits"`
	}
	versions := make([]version, 0, len(history))
	for _, n := range history {
		edits, err := store.GetEdits(ctx, run.ID, n.Location)
		if err != nil {
			return err
		}
		versions = append(versions, version{NodeRecord: n, Edits: edits})
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), versions)
	}
	for _, v := range versions {
		fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-9s %-8s %s  %s\n", v.Location, v.RevisionID, v.Change, v.Key, v.Path)
		for _, e := range v.Edits {
			fmt.Fprintf(cmd.OutOrStdout(), "    [%d] %-9s %s %s\n", e.Slot, e.Kind, e.Entity, e.Key)
		}
	}
	return nil
}
