package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Task orchestration engine",
	Long: `Cascade decomposes a request into a dependency graph of
capability-bound subtasks, executes the graph with bounded concurrency,
and aggregates the results into a single answer with a confidence score.

Core capabilities:
- Plans a request into a DAG of subtasks via the model
- Executes graphs sequentially, in parallel, or dependency-ordered
- Retries failed tasks and skips their dependents
- Substitutes upstream outputs into downstream queries
- Merges results with dedup, ranking, or model synthesis`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}
