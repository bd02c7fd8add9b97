package main

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codelineage/internal/analysis"
	"github.com/rohankatakam/codelineage/internal/cache"
	"github.com/rohankatakam/codelineage/internal/config"
	"github.com/rohankatakam/codelineage/internal/graph"
	"github.com/rohankatakam/codelineage/internal/ingest"
	"github.com/rohankatakam/codelineage/internal/refactoring"
	"github.com/rohankatakam/codelineage/internal/storage"
)

var (
	strict             bool
	bondKinds          []string
	searchMergeParents bool
	refactoringsFile   string
	noCache            bool
	noStore            bool
	exportGraph        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Build entity lineage for a revision stream",
	Long: `Analyze reads a revision stream (YAML or JSON), builds file, declaration,
method and field lineage, stitches refactorings and computes edit scripts.

Examples:
  # Analyze and print a summary
  lineage analyze history.yaml

  # Only trust class renames, read detector output from a separate file
  lineage analyze history.yaml --bond-kinds "Rename Class" --refactorings detected.yaml

  # Persist and push the lineage graph to Neo4j
  lineage analyze history.yaml --export`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	addAnalysisFlags(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore and do not update the result cache")
	analyzeCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the result")
	analyzeCmd.Flags().BoolVar(&exportGraph, "export", false, "export lineage to Neo4j")
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&strict, "strict", false, "abort on duplicate claims")
	cmd.Flags().StringSliceVar(&bondKinds, "bond-kinds", nil, "refactoring kinds to apply (default: all)")
	cmd.Flags().BoolVar(&searchMergeParents, "search-merge-parents", false, "search second parents for refactoring pre-images")
	cmd.Flags().StringVar(&refactoringsFile, "refactorings", "", "refactoring records keyed by revision id")
}

// analysisOptions merges explicit flags over configuration
func analysisOptions(cmd *cobra.Command) analysis.Options {
	opts := analysis.Options{
		Strict:             cfg.Analysis.Strict,
		BondKinds:          cfg.Analysis.BondKinds,
		SearchMergeParents: cfg.Analysis.SearchMergeParents,
	}
	if cmd.Flags().Changed("strict") {
		opts.Strict = strict
	}
	if cmd.Flags().Changed("bond-kinds") {
		opts.BondKinds = bondKinds
	}
	if cmd.Flags().Changed("search-merge-parents") {
		opts.SearchMergeParents = searchMergeParents
	}
	return opts
}

func newAnalyzer(cmd *cobra.Command) (*analysis.Analyzer, error) {
	var oracle refactoring.Oracle = refactoring.EmbeddedOracle{}
	if refactoringsFile != "" {
		records, err := ingest.LoadRefactorings(refactoringsFile)
		if err != nil {
			return nil, err
		}
		oracle = refactoring.StaticOracle(records)
	}
	return analysis.NewAnalyzer(oracle, analysisOptions(cmd), logger), nil
}

// openStore returns nil when storage is disabled
func openStore() (storage.Store, error) {
	store, err := storage.Open(cfg.Storage, logger)
	if stderrors.Is(err, storage.ErrDisabled) {
		logger.Debug("Storage disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Type, err)
	}
	return store, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if result := cfg.Validate(config.ValidationContextAnalyze); result.HasErrors() {
		return result.Err()
	}
	if exportGraph {
		if result := cfg.Validate(config.ValidationContextExport); result.HasErrors() {
			return result.Err()
		}
	}
	asJSON, err := useJSON()
	if err != nil {
		return err
	}

	in, err := ingest.Load(args[0])
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}
	opts := analysisOptions(cmd)

	// Cached summaries depend on the stream digest, which does not cover a
	// separate refactorings file
	var cacheMgr *cache.Manager
	if cfg.Cache.Enabled && !noCache && refactoringsFile == "" {
		cacheMgr, err = cache.NewManager(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Cache unavailable")
		} else {
			defer cacheMgr.Close()
		}
	}

	var store storage.Store
	if !noStore {
		if store, err = openStore(); err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}
	}

	var exporter *graph.Exporter
	if exportGraph {
		client, err := graph.NewClient(ctx, cfg.Graph, logger)
		if err != nil {
			return err
		}
		defer client.Close(ctx)
		exporter = graph.NewExporter(client, graph.DefaultBatchConfig())
	}

	var reports []report
	for _, repo := range in.Repositories {
		key := cache.Key(in.Digest, repo.Name, opts)
		if cacheMgr != nil && exporter == nil {
			entry, found, err := cacheMgr.Get(ctx, key)
			if err != nil {
				logger.WithError(err).Warn("Cache lookup failed")
			}
			if found {
				reports = append(reports, report{
					Repository: entry.Repository,
					RunID:      entry.RunID,
					Cached:     true,
					Summary:    entry.Summary,
				})
				continue
			}
		}

		res, err := analyzer.Analyze(ctx, repo)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", repo.Name, err)
		}

		if store != nil {
			if err := store.SaveRun(ctx, res); err != nil {
				return fmt.Errorf("save run %s: %w", res.RunID, err)
			}
		}
		if cacheMgr != nil {
			if err := cacheMgr.Put(ctx, key, res); err != nil {
				logger.WithError(err).Warn("Cache update failed")
			}
		}
		if exporter != nil {
			if _, err := exporter.Export(ctx, res); err != nil {
				return fmt.Errorf("export %s: %w", repo.Name, err)
			}
		}
		reports = append(reports, newReport(res))
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), reports)
	}
	for _, r := range reports {
		printReport(cmd.OutOrStdout(), r)
	}
	return nil
}
