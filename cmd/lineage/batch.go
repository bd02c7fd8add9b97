package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codelineage/internal/config"
	"github.com/rohankatakam/codelineage/internal/ingest"
	"github.com/rohankatakam/codelineage/internal/models"
)

var batchConcurrency int

var batchCmd = &cobra.Command{
	Use:   "batch DIR",
	Short: "Analyze every revision stream in a directory",
	Long: `Batch analyzes each repository found in DIR concurrently. A repository
that fails is reported and the others still complete.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	addAnalysisFlags(batchCmd)
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "j", 0, "repositories analyzed at once (default: batch.concurrency)")
	batchCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist results")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if batchConcurrency > 0 {
		cfg.Batch.Concurrency = batchConcurrency
	}
	if result := cfg.Validate(config.ValidationContextBatch); result.HasErrors() {
		return result.Err()
	}
	asJSON, err := useJSON()
	if err != nil {
		return err
	}

	inputs, err := ingest.LoadDir(args[0])
	if err != nil {
		return err
	}
	var repos []*models.Repository
	for _, in := range inputs {
		repos = append(repos, in.Repositories...)
	}
	if len(repos) == 0 {
		return fmt.Errorf("no revision streams in %s", args[0])
	}

	analyzer, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}
	batch := analyzer.Batch(ctx, repos, cfg.Batch.Concurrency)

	if !noStore {
		store, err := openStore()
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
			for _, res := range batch.Results {
				if err := store.SaveRun(ctx, res); err != nil {
					return fmt.Errorf("save run %s: %w", res.RunID, err)
				}
			}
		}
	}

	type failure struct {
		Repository string `json:"repository"`
		Error      string `json:"error"`
	}
	out := struct {
		Reports    []report  `json:"reports"`
		Failures   []failure `json:"failures"`
		DurationMS int64     `json:"duration_ms"`
	}{Reports: []report{}, Failures: []failure{}, DurationMS: batch.Duration.Milliseconds()}
	for _, res := range batch.Results {
		out.Reports = append(out.Reports, newReport(res))
	}
	for _, f := range batch.Failures {
		out.Failures = append(out.Failures, failure{Repository: f.Repository, Error: f.Err.Error()})
	}

	if asJSON {
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		for _, r := range out.Reports {
			printReport(cmd.OutOrStdout(), r)
		}
		for _, f := range out.Failures {
			fmt.Fprintf(cmd.OutOrStdout(), "FAILED %s: %s\n", f.Repository, f.Error)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d analyzed, %d failed in %s\n", len(out.Reports), len(out.Failures), batch.Duration)
	}

	if len(out.Failures) > 0 {
		return fmt.Errorf("%d of %d repositories failed", len(out.Failures), len(repos))
	}
	return nil
}
