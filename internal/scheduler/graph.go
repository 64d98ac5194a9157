package scheduler

import (
	"fmt"
	"sync"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// ExecutionMode selects how a graph's tasks are driven.
type ExecutionMode string

const (
	// ModeSequential runs tasks one at a time in insertion order.
	ModeSequential ExecutionMode = "sequential"
	// ModeParallel runs every task concurrently; the graph must have no
	// dependency edges.
	ModeParallel ExecutionMode = "parallel"
	// ModeDAG runs tasks in dependency order under a bounded worker pool.
	ModeDAG ExecutionMode = "dag"
)

// Valid returns true if the mode is a known value.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeSequential, ModeParallel, ModeDAG:
		return true
	default:
		return false
	}
}

// DefaultMaxParallel bounds concurrent task invocations in DAG mode.
const DefaultMaxParallel = 5

// Graph is a set of tasks with dependency edges, executed under one mode.
// Tasks are nodes, and edges represent "blocked by" relationships.
type Graph struct {
	mu sync.RWMutex
	// id identifies this graph in results and progress events.
	id string
	// mode selects the execution algorithm.
	mode ExecutionMode
	// tasks maps task ID to the task itself.
	tasks map[string]*Task
	// order preserves insertion order for sequential execution.
	order []string
	// maxParallel bounds the DAG worker pool.
	maxParallel int
	// executed guards against re-running a graph.
	executed bool
	// progressMu serializes progress callback invocations.
	progressMu sync.Mutex
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithMaxParallel overrides the DAG-mode worker pool size.
func WithMaxParallel(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxParallel = n
		}
	}
}

// NewGraph creates an empty graph with the given execution mode.
func NewGraph(id string, mode ExecutionMode, opts ...GraphOption) *Graph {
	g := &Graph{
		id:          id,
		mode:        mode,
		tasks:       make(map[string]*Task),
		maxParallel: DefaultMaxParallel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the graph identifier.
func (g *Graph) ID() string {
	return g.id
}

// Mode returns the graph's execution mode.
func (g *Graph) Mode() ExecutionMode {
	return g.mode
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Task returns the task for a given ID, or nil if not found.
func (g *Graph) Task(id string) *Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tasks[id]
}

// AddTask appends a task to the graph. The task's ID must be unique and
// every dependency must already be present; this build-time ordering keeps
// the dependency relation acyclic by construction.
func (g *Graph) AddTask(t *Task) error {
	if t == nil || t.ID == "" {
		return &StructuralError{GraphID: g.id, Err: fmt.Errorf("task without id")}
	}
	if t.Fn == nil {
		return &StructuralError{GraphID: g.id, Err: fmt.Errorf("task %s has no callable", t.ID)}
	}
	if t.MaxRetries < 0 {
		return &StructuralError{GraphID: g.id, Err: fmt.Errorf("task %s has negative retry count", t.ID)}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[t.ID]; exists {
		return &StructuralError{GraphID: g.id, Err: fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)}
	}
	for _, dep := range t.Dependencies {
		if _, exists := g.tasks[dep]; !exists {
			return &StructuralError{GraphID: g.id, Err: fmt.Errorf("%w: task %s depends on %s", ErrUnknownDependency, t.ID, dep)}
		}
	}

	if t.Name == "" {
		t.Name = t.ID
	}
	t.status = models.TaskStatusPending
	g.tasks[t.ID] = t
	g.order = append(g.order, t.ID)
	return nil
}

// Validate re-confirms the graph is executable: acyclic via topological
// sort, and free of dependency edges in parallel mode. It is also invoked
// by Execute, so calling it explicitly is optional.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.validateLocked()
}

// validateLocked assumes g.mu is held (read or write).
func (g *Graph) validateLocked() error {
	if !g.mode.Valid() {
		return &StructuralError{GraphID: g.id, Err: fmt.Errorf("unknown execution mode %q", g.mode)}
	}

	if g.mode == ModeParallel {
		for _, t := range g.tasks {
			if len(t.Dependencies) > 0 {
				return &StructuralError{GraphID: g.id, Err: fmt.Errorf("parallel mode cannot express dependencies (task %s)", t.ID)}
			}
		}
	}

	if _, err := g.topologicalOrderLocked(); err != nil {
		return &StructuralError{GraphID: g.id, Err: err}
	}
	return nil
}

// topologicalOrderLocked returns task IDs with all dependencies before
// their dependents, or ErrCycleDetected. Assumes g.mu is held.
func (g *Graph) topologicalOrderLocked() ([]string, error) {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.tasks))
	result := make([]string, 0, len(g.tasks))

	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = 1

		for _, dep := range g.tasks[id].Dependencies {
			switch colors[dep] {
			case 1:
				// Back edge.
				return fmt.Errorf("%w: involving %s", ErrCycleDetected, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		colors[id] = 2
		result = append(result, id)
		return nil
	}

	// Walk in insertion order for a deterministic result.
	for _, id := range g.order {
		if colors[id] == 0 {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// readyLocked returns pending tasks whose dependencies have all reached a
// terminal state and none of them failed or was skipped. Tasks with a
// failed or skipped dependency are returned separately for skip
// propagation. Assumes g.mu is held.
func (g *Graph) readyLocked() (ready []*Task, toSkip []*Task) {
	for _, id := range g.order {
		t := g.tasks[id]
		if t.status != models.TaskStatusPending {
			continue
		}

		allTerminal := true
		var failedDep string
		for _, dep := range t.Dependencies {
			depTask := g.tasks[dep]
			if !depTask.status.Terminal() {
				allTerminal = false
				break
			}
			if depTask.status != models.TaskStatusSucceeded {
				failedDep = dep
			}
		}
		if !allTerminal {
			continue
		}

		if failedDep != "" {
			t.skipDep = failedDep
			toSkip = append(toSkip, t)
			continue
		}
		ready = append(ready, t)
	}
	return ready, toSkip
}
