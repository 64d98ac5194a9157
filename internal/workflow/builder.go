package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/cascade/internal/capability"
	"github.com/ShayCichocki/cascade/internal/scheduler"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// BuildOptions carries the execution defaults a built graph inherits when
// the workflow file does not override them.
type BuildOptions struct {
	// MaxRetries is the default per-task retry budget.
	MaxRetries int
	// TaskTimeout is the default per-attempt timeout. Zero disables it.
	TaskTimeout time.Duration
}

// Build turns a validated definition into an executable graph, binding each
// task's capability kind through the registry.
func Build(def *Definition, registry *capability.Registry, opts BuildOptions) (*scheduler.Graph, error) {
	mode := scheduler.ExecutionMode(def.Mode)

	var graphOpts []scheduler.GraphOption
	if def.MaxParallel > 0 {
		graphOpts = append(graphOpts, scheduler.WithMaxParallel(def.MaxParallel))
	}
	g := scheduler.NewGraph(def.Name, mode, graphOpts...)

	producers := make(map[string]string, len(def.Tasks))
	for _, td := range def.Tasks {
		if td.Output != "" {
			producers[td.Output] = td.ID
		}
	}

	for _, td := range def.Tasks {
		kind := models.CapabilityKind(td.Kind)
		tool, err := registry.Bind(kind)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", td.ID, err)
		}

		task := scheduler.NewTask(td.ID, func(ctx context.Context, query string) (any, error) {
			return tool(ctx, query, nil)
		})
		task.Name = td.Description
		task.Query = td.Query
		task.Dependencies = td.DependsOn
		task.MaxRetries = opts.MaxRetries
		if td.Retries != nil {
			task.MaxRetries = *td.Retries
		}
		task.Timeout = opts.TaskTimeout
		if td.Timeout != "" {
			// validate() already checked the duration parses.
			task.Timeout, _ = time.ParseDuration(td.Timeout)
		}
		task.Vars = bindVars(td.Query, producers)

		if err := g.AddTask(task); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// bindVars maps each placeholder in the query to the task publishing that
// output variable. Unknown placeholders stay unbound and fail at runtime
// with a substitution error.
func bindVars(query string, producers map[string]string) map[string]string {
	names := scheduler.Placeholders(query)
	if len(names) == 0 {
		return nil
	}
	vars := make(map[string]string, len(names))
	for _, name := range names {
		if producer, ok := producers[name]; ok {
			vars[name] = producer
		}
	}
	return vars
}
