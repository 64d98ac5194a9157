package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/cascade/internal/aggregator"
	"github.com/ShayCichocki/cascade/internal/capability"
	"github.com/ShayCichocki/cascade/internal/planner"
	"github.com/ShayCichocki/cascade/internal/scheduler"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// Config holds the required collaborators for an Orchestrator.
type Config struct {
	// Planner decomposes requests into task plans.
	Planner *planner.Planner
	// Registry binds capability kinds to tool implementations.
	Registry *capability.Registry
	// Aggregator merges task outputs into the final answer.
	Aggregator *aggregator.Aggregator
}

// Orchestrator runs the full pipeline for a request: plan, execute the
// resulting task graph, aggregate the outputs.
type Orchestrator struct {
	planner    *planner.Planner
	registry   *capability.Registry
	aggregator *aggregator.Aggregator
	emitter    *EventEmitter

	mode        scheduler.ExecutionMode
	strategy    aggregator.Strategy
	maxParallel int
	maxRetries  int
	taskTimeout time.Duration
}

// Option adjusts orchestrator behavior.
type Option func(*Orchestrator)

// WithMode sets the execution mode for built graphs. Default is DAG.
func WithMode(mode scheduler.ExecutionMode) Option {
	return func(o *Orchestrator) {
		if mode.Valid() {
			o.mode = mode
		}
	}
}

// WithStrategy sets the aggregation strategy. Default is synthesize.
func WithStrategy(s aggregator.Strategy) Option {
	return func(o *Orchestrator) {
		if s.Valid() {
			o.strategy = s
		}
	}
}

// WithMaxParallel bounds concurrent task execution.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithMaxRetries sets the per-task retry budget.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithTaskTimeout sets the per-attempt timeout applied to every task.
// Zero means no timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.taskTimeout = d
		}
	}
}

// WithEventBuffer sets the event channel buffer size.
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) {
		o.emitter = NewEventEmitter(n)
	}
}

// New creates an orchestrator from the given collaborators.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("orchestrator requires a planner")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires a capability registry")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("orchestrator requires an aggregator")
	}

	o := &Orchestrator{
		planner:     cfg.Planner,
		registry:    cfg.Registry,
		aggregator:  cfg.Aggregator,
		emitter:     NewEventEmitter(100),
		mode:        scheduler.ModeDAG,
		strategy:    aggregator.StrategySynthesize,
		maxParallel: scheduler.DefaultMaxParallel,
		maxRetries:  scheduler.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Events returns the stream of progress events for all runs through this
// orchestrator.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// DroppedEventCount returns how many events were dropped because the
// subscriber fell behind.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.emitter.DroppedCount()
}

// CloseEvents closes the event stream. Call only after all runs finish.
func (o *Orchestrator) CloseEvents() {
	o.emitter.Close()
}

// Run executes the full pipeline for a request under a fresh workflow ID.
func (o *Orchestrator) Run(ctx context.Context, request string) (*Execution, error) {
	return o.RunWithID(ctx, uuid.New().String()[:8], request)
}

// RunWithID executes the pipeline under a caller-chosen workflow ID.
// The returned Execution is populated as far as the run got; the error is
// non-nil when the graph could not be built or the context ended the run
// early.
func (o *Orchestrator) RunWithID(ctx context.Context, id, request string) (*Execution, error) {
	started := time.Now()
	exec := &Execution{
		ID:        id,
		Request:   request,
		StartedAt: started,
	}
	o.emit(Event{Type: EventWorkflowStarted, WorkflowID: id, Message: request})

	plan := o.planner.Decompose(ctx, request)
	exec.Plan = plan
	o.emit(Event{
		Type:       EventPlanCreated,
		WorkflowID: id,
		Message:    fmt.Sprintf("%d subtasks, complexity %s", len(plan.SubTasks), plan.Complexity),
	})

	graph, err := o.BuildGraph(id, plan)
	if err != nil {
		exec.CompletedAt = time.Now()
		o.emit(Event{Type: EventWorkflowFailed, WorkflowID: id, Error: err})
		return exec, err
	}

	result, execErr := graph.Execute(ctx, o.progressFunc(id))
	exec.Result = result

	exec.Aggregated = o.aggregator.Aggregate(ctx, request, o.sources(plan, result), o.strategy)
	exec.CompletedAt = time.Now()

	o.emit(Event{
		Type:       EventWorkflowCompleted,
		WorkflowID: id,
		Message:    fmt.Sprintf("%d/%d tasks succeeded", result.CompletedCount, result.TaskCount),
		Duration:   exec.CompletedAt.Sub(started),
	})
	return exec, execErr
}

// BuildGraph turns a task plan into an executable graph, binding every
// subtask kind through the capability registry. It fails when a kind has
// no registered tool or when the plan's edges are structurally invalid.
func (o *Orchestrator) BuildGraph(id string, plan *models.TaskPlan) (*scheduler.Graph, error) {
	g := scheduler.NewGraph(id, o.mode, scheduler.WithMaxParallel(o.maxParallel))

	// Output variables name the tasks that produce them.
	producers := make(map[string]string, len(plan.SubTasks))
	for _, st := range plan.SubTasks {
		if st.OutputVariable != "" {
			producers[st.OutputVariable] = st.ID
		}
	}

	for _, st := range plan.SubTasks {
		tool, err := o.registry.Bind(st.Kind)
		if err != nil {
			return nil, fmt.Errorf("subtask %s: %w", st.ID, err)
		}

		task := scheduler.NewTask(st.ID, func(ctx context.Context, query string) (any, error) {
			return tool(ctx, query, nil)
		})
		task.Name = st.Description
		task.Query = st.Query
		task.Dependencies = st.Dependencies
		task.MaxRetries = o.maxRetries
		task.Timeout = o.taskTimeout
		task.Vars = bindVars(st.Query, producers)

		if err := g.AddTask(task); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// bindVars maps each placeholder in the query to the task that produces it.
// Unresolvable placeholders are left unbound so execution fails fast with a
// substitution error naming the variable.
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

// sources converts per-task results into attributable aggregator inputs,
// one per succeeded subtask in plan order.
func (o *Orchestrator) sources(plan *models.TaskPlan, result *models.WorkflowResult) []models.SourceResult {
	var out []models.SourceResult
	for _, st := range plan.SubTasks {
		raw, ok := result.Results[st.ID]
		if !ok {
			continue
		}
		origin := st.OutputVariable
		if origin == "" {
			origin = st.ID
		}
		out = append(out, models.SourceResult{
			Origin:  origin,
			Content: scheduler.Stringify(raw),
		})
	}
	return out
}

func (o *Orchestrator) progressFunc(id string) scheduler.ProgressFunc {
	return func(taskID string, status models.TaskStatus, detail any) {
		ev := Event{WorkflowID: id, TaskID: taskID}
		switch status {
		case models.TaskStatusRunning:
			ev.Type = EventTaskStarted
		case models.TaskStatusSucceeded:
			ev.Type = EventTaskCompleted
		case models.TaskStatusFailed:
			ev.Type = EventTaskFailed
			if msg, ok := detail.(string); ok && msg != "" {
				ev.Error = errors.New(msg)
			}
		case models.TaskStatusSkipped:
			ev.Type = EventTaskSkipped
			if dep, ok := detail.(string); ok {
				ev.Message = fmt.Sprintf("dependency %s did not succeed", dep)
			}
		default:
			return
		}
		o.emit(ev)
	}
}

func (o *Orchestrator) emit(ev Event) {
	ev.Timestamp = time.Now()
	o.emitter.Emit(ev)
}
