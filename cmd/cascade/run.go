package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cascade/internal/aggregator"
	"github.com/ShayCichocki/cascade/internal/capability"
	"github.com/ShayCichocki/cascade/internal/config"
	"github.com/ShayCichocki/cascade/internal/llm"
	"github.com/ShayCichocki/cascade/internal/orchestrator"
	"github.com/ShayCichocki/cascade/internal/planner"
	"github.com/ShayCichocki/cascade/internal/scheduler"
	"github.com/ShayCichocki/cascade/internal/workflow"
	"github.com/ShayCichocki/cascade/pkg/models"
)

var (
	runWorkflowFile string
	runMode         string
	runStrategy     string
	runJSON         bool
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run a request through the full pipeline",
	Long: `Run a request end to end: decompose it into a task graph, execute the
graph, and aggregate the results into a single answer.

Only the converse capability is built in; it answers queries with the
model directly. Plans are restricted to it unless tasks come from a
workflow file.

With --workflow, the graph is read from a YAML file instead of being
planned, and the request argument is optional context for aggregation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringVar(&runWorkflowFile, "workflow", "", "Execute a workflow YAML file instead of planning")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Execution mode: sequential, parallel, or dag")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Aggregation strategy: concatenate, rank, or synthesize")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the final result as JSON")
}

func runRequest(cmd *cobra.Command, args []string) error {
	if runWorkflowFile == "" && len(args) == 0 {
		return fmt.Errorf("provide a request or --workflow")
	}
	request := ""
	if len(args) > 0 {
		request = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runMode != "" {
		cfg.Scheduler.Mode = runMode
	}
	if runStrategy != "" {
		cfg.Aggregator.Strategy = runStrategy
	}
	if !scheduler.ExecutionMode(cfg.Scheduler.Mode).Valid() {
		return fmt.Errorf("unknown execution mode %q", cfg.Scheduler.Mode)
	}
	if !aggregator.Strategy(cfg.Aggregator.Strategy).Valid() {
		return fmt.Errorf("unknown aggregation strategy %q", cfg.Aggregator.Strategy)
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}

	registry := capability.NewRegistry()
	if err := registry.Register(models.KindConverse, converseTool(completer)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runWorkflowFile != "" {
		return runWorkflowGraph(ctx, cfg, completer, registry, request)
	}
	return runPipeline(ctx, cfg, completer, registry, request)
}

// converseTool answers a query with a direct model completion.
func converseTool(completer llm.Completer) capability.ToolFunc {
	return func(ctx context.Context, query string, _ map[string]any) (any, error) {
		return completer.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: query}}, 0.7, 2048)
	}
}

func runPipeline(ctx context.Context, cfg *config.Config, completer llm.Completer, registry *capability.Registry, request string) error {
	orch, err := orchestrator.New(orchestrator.Config{
		Planner:    planner.New(completer, registry, planner.WithMaxSubtasks(cfg.Planner.MaxSubtasks)),
		Registry:   registry,
		Aggregator: aggregator.New(completer, aggregator.WithSimilarityThreshold(cfg.Aggregator.SimilarityThreshold), aggregator.WithTopN(cfg.Aggregator.TopN)),
	},
		orchestrator.WithMode(scheduler.ExecutionMode(cfg.Scheduler.Mode)),
		orchestrator.WithStrategy(aggregator.Strategy(cfg.Aggregator.Strategy)),
		orchestrator.WithMaxParallel(cfg.Scheduler.MaxParallel),
		orchestrator.WithMaxRetries(cfg.Scheduler.MaxRetries),
		orchestrator.WithTaskTimeout(cfg.Scheduler.TaskTimeout),
	)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range orch.Events() {
			printEvent(ev)
		}
	}()

	exec, runErr := orch.Run(ctx, request)
	orch.CloseEvents()
	wg.Wait()
	if runErr != nil {
		return runErr
	}

	return printExecution(exec)
}

func runWorkflowGraph(ctx context.Context, cfg *config.Config, completer llm.Completer, registry *capability.Registry, request string) error {
	def, err := workflow.Load(runWorkflowFile)
	if err != nil {
		return err
	}

	graph, err := workflow.Build(def, registry, workflow.BuildOptions{
		MaxRetries:  cfg.Scheduler.MaxRetries,
		TaskTimeout: cfg.Scheduler.TaskTimeout,
	})
	if err != nil {
		return err
	}

	result, err := graph.Execute(ctx, func(taskID string, status models.TaskStatus, detail any) {
		printTaskStatus(taskID, status, detail)
	})
	if err != nil {
		return err
	}

	if request == "" {
		request = def.Name
	}
	agg := aggregator.New(completer,
		aggregator.WithSimilarityThreshold(cfg.Aggregator.SimilarityThreshold),
		aggregator.WithTopN(cfg.Aggregator.TopN),
	)
	outputs := make(map[string]string, len(result.Results))
	for id, raw := range result.Results {
		outputs[id] = scheduler.Stringify(raw)
	}
	exec := &orchestrator.Execution{
		ID:         def.Name,
		Request:    request,
		Result:     result,
		Aggregated: agg.SynthesizeFromNamedOutputs(ctx, request, outputs),
	}
	return printExecution(exec)
}

func printEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventPlanCreated:
		fmt.Printf("plan: %s\n", ev.Message)
	case orchestrator.EventTaskStarted:
		fmt.Printf("  %s %s\n", color.CyanString("->"), ev.TaskID)
	case orchestrator.EventTaskCompleted:
		fmt.Printf("  %s %s\n", color.GreenString("ok"), ev.TaskID)
	case orchestrator.EventTaskFailed:
		fmt.Printf("  %s %s: %v\n", color.RedString("fail"), ev.TaskID, ev.Error)
	case orchestrator.EventTaskSkipped:
		fmt.Printf("  %s %s (%s)\n", color.YellowString("skip"), ev.TaskID, ev.Message)
	case orchestrator.EventWorkflowCompleted:
		fmt.Printf("done: %s in %s\n", ev.Message, ev.Duration.Round(10*time.Millisecond))
	}
}

func printTaskStatus(taskID string, status models.TaskStatus, detail any) {
	switch status {
	case models.TaskStatusRunning:
		fmt.Printf("  %s %s\n", color.CyanString("->"), taskID)
	case models.TaskStatusSucceeded:
		fmt.Printf("  %s %s\n", color.GreenString("ok"), taskID)
	case models.TaskStatusFailed:
		fmt.Printf("  %s %s: %v\n", color.RedString("fail"), taskID, detail)
	case models.TaskStatusSkipped:
		fmt.Printf("  %s %s (dependency %v did not succeed)\n", color.YellowString("skip"), taskID, detail)
	}
}

func printExecution(exec *orchestrator.Execution) error {
	if runJSON {
		data, err := json.MarshalIndent(map[string]any{
			"id":         exec.ID,
			"result":     exec.Result,
			"aggregated": exec.Aggregated,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	agg := exec.Aggregated
	fmt.Println()
	color.New(color.Bold).Println(agg.Summary)
	for _, kp := range agg.KeyPoints {
		fmt.Printf("  - %s\n", kp)
	}
	if len(agg.Sources) > 0 {
		fmt.Printf("\nSources:")
		for _, s := range agg.Sources {
			fmt.Printf(" %s", s.Origin)
		}
		fmt.Println()
	}
	fmt.Printf("Confidence: %.2f\n", agg.Confidence)

	if exec.Result != nil && !exec.Result.Success {
		color.Yellow("%d/%d tasks did not succeed", exec.Result.FailedCount+exec.Result.SkippedCount, exec.Result.TaskCount)
		for id, msg := range exec.Result.Errors {
			fmt.Printf("  %s: %s\n", id, msg)
		}
	}
	return nil
}
