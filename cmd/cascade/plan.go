package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cascade/internal/capability"
	"github.com/ShayCichocki/cascade/internal/config"
	"github.com/ShayCichocki/cascade/internal/planner"
	"github.com/ShayCichocki/cascade/pkg/models"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Decompose a request into a task plan without running it",
	Long: `Decompose a request into a dependency graph of subtasks and print it.

The plan is generated by the model and validated (unique IDs, known
capability kinds, acyclic dependencies) before being shown. Nothing is
executed.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}

	// Planning never invokes tools, so every kind is offered to the model.
	registry := capability.NewRegistry()
	for _, kind := range models.AllCapabilityKinds {
		if err := registry.Register(kind, func(context.Context, string, map[string]any) (any, error) {
			return nil, fmt.Errorf("planning only")
		}); err != nil {
			return err
		}
	}

	p := planner.New(completer, registry, planner.WithMaxSubtasks(cfg.Planner.MaxSubtasks))
	plan := p.Decompose(cmd.Context(), args[0])

	if planJSON {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	color.New(color.Bold).Printf("Plan for: %s\n\n", args[0])
	fmt.Print(planner.Visualize(plan))
	return nil
}
