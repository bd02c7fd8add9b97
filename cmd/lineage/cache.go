package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codelineage/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := cache.NewManager(cfg.Cache, logger)
		if err != nil {
			return err
		}
		defer mgr.Close()

		n, err := mgr.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached summaries from %s\n", n, cfg.Cache.Directory)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
